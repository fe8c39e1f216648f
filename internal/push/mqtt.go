// Package push announces published routines over MQTT and lets the server
// react to announcements made by other publishers.
package push

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// UpdatesTopic matches the update topic of every department.
const UpdatesTopic = "campus/+/routine"

func Topic(department string) string {
	return "campus/" + department + "/routine"
}

// departmentFromTopic extracts <dept> from campus/<dept>/routine.
func departmentFromTopic(topic string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "campus" || parts[2] != "routine" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// Notice is the payload announcing a new routine version.
type Notice struct {
	Department string `json:"department"`
	Version    int64  `json:"version"`
}

var connectHandler mqtt.OnConnectHandler = func(client mqtt.Client) {
	log.Info().Msg("Connected to MQTT broker")
}

var connectLostHandler mqtt.ConnectionLostHandler = func(client mqtt.Client, err error) {
	log.Warn().Err(err).Msg("MQTT connection lost")
}

// Connect opens a client to brokerURL. The client reconnects on its own
// after a lost connection.
func Connect(brokerURL, clientID string) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)
	opts.OnConnect = connectHandler
	opts.OnConnectionLost = connectLostHandler

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	log.Info().Str("broker", brokerURL).Str("client_id", clientID).Msg("MQTT client initialized successfully")
	return client, nil
}

type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

// NotifyDepartment announces version of department's routine.
func (p *Publisher) NotifyDepartment(department string, version int64) error {
	payload, err := json.Marshal(Notice{Department: department, Version: version})
	if err != nil {
		return err
	}

	topic := Topic(department)
	token := p.client.Publish(topic, 1, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}

	log.Debug().Str("topic", topic).Int64("version", version).Msg("routine update announced")
	return nil
}

// SubscribeUpdates calls handle for every announcement on UpdatesTopic. The
// department is taken from the topic; a malformed payload still triggers
// handle with a zero version.
func SubscribeUpdates(client mqtt.Client, handle func(Notice)) error {
	token := client.Subscribe(UpdatesTopic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		department, ok := departmentFromTopic(msg.Topic())
		if !ok {
			log.Warn().Str("topic", msg.Topic()).Msg("ignoring message on unexpected topic")
			return
		}

		var n Notice
		if err := json.Unmarshal(msg.Payload(), &n); err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic()).Msg("malformed routine notice")
		}
		n.Department = department
		handle(n)
	})
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", UpdatesTopic, token.Error())
	}
	return nil
}

func Disconnect(client mqtt.Client) {
	if client != nil && client.IsConnected() {
		client.Disconnect(250)
		log.Info().Msg("MQTT client disconnected")
	}
}
