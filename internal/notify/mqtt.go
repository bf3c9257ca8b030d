package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"ps2cfg/internal/pkg"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

func init() {
	Register("mqtt", NewMqttPublisher)
}

// MQTTClientInterface 用到的 MQTT 客户端方法
type MQTTClientInterface interface {
	IsConnected() bool
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MqttInfo mqtt 下游配置，事件发布到 <topic>/<gameID>
type MqttInfo struct {
	Broker         string        `mapstructure:"broker"`
	Port           int           `mapstructure:"port"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	ClientID       string        `mapstructure:"clientID"`
	Topic          string        `mapstructure:"topic"`
	QoS            byte          `mapstructure:"qos"`
	Retained       bool          `mapstructure:"retained"`
	KeepAliveSec   uint          `mapstructure:"keepAliveSec"`
	PublishTimeout time.Duration `mapstructure:"publishTimeout"`
}

type MqttPublisher struct {
	client MQTTClientInterface
	info   MqttInfo
	logger *zap.Logger
}

func NewMqttPublisher(ctx context.Context, para map[string]interface{}) (Publisher, error) {
	log := pkg.LoggerFromContext(ctx)
	var info MqttInfo
	if err := decodeInfo(para, &info); err != nil {
		return nil, fmt.Errorf("failed to decode MQTT config: %w", err)
	}
	if info.Broker == "" {
		return nil, fmt.Errorf("mqtt config validation failed: 'broker' is required")
	}
	if info.Topic == "" {
		return nil, fmt.Errorf("mqtt config validation failed: 'topic' is required")
	}
	if info.Port == 0 {
		info.Port = 1883
	}
	if info.ClientID == "" {
		info.ClientID = fmt.Sprintf("ps2cfg-%d", time.Now().UnixNano())
	}
	if info.KeepAliveSec == 0 {
		info.KeepAliveSec = 60
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", info.Broker, info.Port))
	opts.SetClientID(info.ClientID)
	opts.SetUsername(info.Username)
	opts.SetPassword(info.Password)
	opts.SetKeepAlive(time.Duration(info.KeepAliveSec) * time.Second)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(10 * time.Second)
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Error("MQTT connection lost", zap.Error(err), zap.String("broker", info.Broker))
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt connection failed for %s: %w", info.Broker, token.Error())
	}
	return newMqttPublisher(client, info, log), nil
}

func newMqttPublisher(client MQTTClientInterface, info MqttInfo, log *zap.Logger) *MqttPublisher {
	if info.PublishTimeout <= 0 {
		info.PublishTimeout = 5 * time.Second
	}
	return &MqttPublisher{
		client: client,
		info:   info,
		logger: log.With(zap.String("sink_type", "mqtt"), zap.String("base_topic", info.Topic)),
	}
}

func (m *MqttPublisher) GetType() string { return "mqtt" }

// TopicFor 事件的发布主题
func (m *MqttPublisher) TopicFor(ev Event) string {
	gameID := ev.GameID
	if gameID == "" {
		gameID = "unknown"
	}
	return strings.TrimSuffix(m.info.Topic, "/") + "/" + gameID
}

func (m *MqttPublisher) Publish(_ context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	topic := m.TopicFor(ev)
	token := m.client.Publish(topic, m.info.QoS, m.info.Retained, payload)
	if !token.WaitTimeout(m.info.PublishTimeout) {
		return fmt.Errorf("publish to %s timed out", topic)
	}
	if err := token.Error(); err != nil {
		return err
	}
	m.logger.Debug("decode event published", zap.String("topic", topic))
	return nil
}

func (m *MqttPublisher) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}
