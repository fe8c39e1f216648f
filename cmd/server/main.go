package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/config"
	adminapi "github.com/Nixie-Tech-LLC/routine/internal/http/api/admin/control/endpoints"
	"github.com/Nixie-Tech-LLC/routine/internal/notify"
	"github.com/Nixie-Tech-LLC/routine/internal/push"
	"github.com/Nixie-Tech-LLC/routine/internal/redis"
	"github.com/Nixie-Tech-LLC/routine/internal/routine"
)

func main() {
	// load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := notify.NewHub()

	store, err := InitStore(ctx, cfg, hub)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize routine store")
	}

	// redis serves as the document source, the cache relay, or both
	if cfg.RedisAddress != "" {
		if err := redis.InitRedis(cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword); err != nil {
			log.Fatal().Err(err).Msg("redis init")
		}
		defer func() { _ = redis.Rdb.Close() }()

		if err := redis.NewRelay(redis.Rdb, hub, cfg.InstanceID).Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to start cache relay")
		}
	}

	remote, err := InitRemote(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize remote source")
	}

	repo := routine.NewRepository(store, remote)

	var notifier adminapi.Notifier
	if cfg.MQTTBrokerURL != "" {
		client, err := push.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			log.Fatal().Err(err).Msg("mqtt init")
		}
		defer push.Disconnect(client)

		notifier = push.NewPublisher(client)
		startSyncTrigger(ctx, client, repo)
	}

	// catch up on anything published while this instance was down
	go func() {
		replaced, err := repo.SyncAll(ctx)
		if err != nil {
			log.Error().Err(err).Msg("startup sync failed")
			return
		}
		log.Info().Int("replaced", replaced).Msg("startup sync finished")
	}()

	// set up gin router
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	RegisterRoutes(r, cfg, repo, remote, notifier)

	srv := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: r,
	}

	go func() {
		log.Info().Str("address", cfg.ServerAddress).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// startSyncTrigger syncs a department whenever its update is announced.
// Announcements are handled one at a time, off the MQTT callback goroutine.
func startSyncTrigger(ctx context.Context, client mqtt.Client, repo *routine.Repository) {
	notices := make(chan push.Notice, 64)

	err := push.SubscribeUpdates(client, func(n push.Notice) {
		select {
		case notices <- n:
		default:
			log.Warn().Str("department", n.Department).Msg("sync trigger backlog full, dropping notice")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe to routine updates")
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n := <-notices:
				replaced, err := repo.SyncSnapshot(ctx, n.Department)
				if err != nil {
					log.Error().Err(err).Str("department", n.Department).Msg("triggered sync failed")
					continue
				}
				log.Debug().Str("department", n.Department).Int64("version", n.Version).Bool("replaced", replaced).Msg("triggered sync")
			}
		}
	}()
}
