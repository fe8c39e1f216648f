package endpoints

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Nixie-Tech-LLC/routine/internal/http/api"
	"github.com/Nixie-Tech-LLC/routine/internal/http/api/routine/packets"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /api/routine/departments/:department/watch
//
// Streams the cached routine of a department: one frame on connect, then one
// after every change. The stream ends when the client disconnects.
func (r *RoutineController) watch(c *gin.Context) {
	dept, apiErr := api.DepartmentParam(c)
	if apiErr != nil {
		c.JSON(apiErr.Code, gin.H{"error": apiErr.Message})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Str("department", dept).Msg("websocket upgrade failed")
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// the read loop only notices the client going away
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debug().Str("department", dept).Msg("routine watch connected")
	for u := range r.repo.ObserveLatestSnapshot(ctx, dept) {
		msg := packets.WatchMessage{Snapshot: packets.NewSnapshotResponse(u.Snapshot)}
		if u.Err != nil {
			msg.Error = u.Err.Error()
		}
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			log.Debug().Err(err).Str("department", dept).Msg("routine watch closed")
			return
		}
	}
}
