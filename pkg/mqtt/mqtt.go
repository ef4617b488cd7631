// Package mqtt publishes accepted readings to an mqtt broker.
package mqtt

import (
	"encoding/json"

	mqttlib "github.com/eclipse/paho.mqtt.golang"
	"github.com/womat/debug"

	"p506log/pkg/protek506"
)

// quiesce is the number of milliseconds to wait for pending work on disconnect.
const quiesce = 250

// Handler contains the client of the mqtt broker.
type Handler struct {
	client mqttlib.Client
	topic  string

	// C is the channel to service outgoing messages.
	// Sending a message to C publishes it.
	C chan Message
}

// Message contains the properties of one mqtt message.
type Message struct {
	Topic    string
	Payload  []byte
	Qos      byte
	Retained bool
}

// New generates a new mqtt broker client publishing readings to topic.
func New(topic string) *Handler {
	return &Handler{
		topic: topic,
		C:     make(chan Message),
	}
}

// Connect connects to the mqtt broker.
// If no broker is defined, messages are silently dropped.
func (m *Handler) Connect(broker string) error {
	if broker == "" {
		return nil
	}

	opts := mqttlib.NewClientOptions().AddBroker(broker)
	m.client = mqttlib.NewClient(opts)
	return m.ReConnect()
}

// ReConnect reconnects to the defined mqtt broker.
func (m *Handler) ReConnect() error {
	t := m.client.Connect()
	<-t.Done()
	return t.Error()
}

// Disconnect ends the connection to the broker.
func (m *Handler) Disconnect() error {
	if m.client == nil {
		return nil
	}

	m.client.Disconnect(quiesce)
	return nil
}

// Emit publishes one reading as a JSON document to the configured topic.
// Marshalling errors are logged and absorbed.
func (m *Handler) Emit(r protek506.Reading) {
	b, err := json.Marshal(struct {
		TimeStamp string `json:"timestamp"`
		Mode      string `json:"mode"`
		Reading   string `json:"reading"`
		Units     string `json:"units"`
	}{
		TimeStamp: r.TimeStamp.Format("2006-01-02T15:04:05.000Z07:00"),
		Mode:      r.Mode,
		Reading:   r.Value.String(),
		Units:     r.Units,
	})
	if err != nil {
		debug.ErrorLog.Printf("mqtt marshal: %v", err)
		return
	}

	m.C <- Message{Topic: m.topic, Payload: b, Retained: true}
}

// Service listens on channel C and publishes each message.
// If no client or topic is defined, the message is ignored.
func (m *Handler) Service() {
	for d := range m.C {
		if m.client == nil || d.Topic == "" {
			continue
		}

		go func(msg Message) {
			if !m.client.IsConnected() {
				debug.DebugLog.Printf("mqtt broker isn't connected, reconnect it")

				if err := m.ReConnect(); err != nil {
					debug.ErrorLog.Printf("can't reconnect to mqtt broker %v", err)
					return
				}
			}

			debug.DebugLog.Printf("publishing %v bytes to topic %v", len(msg.Payload), msg.Topic)
			t := m.client.Publish(msg.Topic, msg.Qos, msg.Retained, msg.Payload)

			go func() {
				<-t.Done()
				if err := t.Error(); err != nil {
					debug.ErrorLog.Printf("publishing topic %v: %v", msg.Topic, err)
				}
			}()
		}(d)
	}
}
