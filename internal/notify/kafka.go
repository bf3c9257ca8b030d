package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ps2cfg/internal/pkg"

	"github.com/mitchellh/mapstructure"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func init() {
	Register("kafka", NewKafkaPublisher)
}

// KafkaInfo kafka 下游配置
type KafkaInfo struct {
	Brokers         []string `mapstructure:"brokers"`
	Topic           string   `mapstructure:"topic"`
	Async           bool     `mapstructure:"async"`
	WriteTimeoutSec int      `mapstructure:"writeTimeoutSec"`
	RequiredAcks    int      `mapstructure:"requiredAcks"`
}

// messageWriter kafka.Writer 中用到的方法
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher 以 gameID 为 key 把事件写入 kafka
type KafkaPublisher struct {
	writer messageWriter
	info   KafkaInfo
	logger *zap.Logger
}

func decodeInfo(para map[string]interface{}, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return err
	}
	return decoder.Decode(para)
}

func NewKafkaPublisher(ctx context.Context, para map[string]interface{}) (Publisher, error) {
	var info KafkaInfo
	if err := decodeInfo(para, &info); err != nil {
		return nil, fmt.Errorf("error decoding Kafka config: %w", err)
	}
	if len(info.Brokers) == 0 {
		return nil, fmt.Errorf("kafka config validation failed: 'brokers' is required")
	}
	if info.Topic == "" {
		return nil, fmt.Errorf("kafka config validation failed: 'topic' is required")
	}
	if info.WriteTimeoutSec == 0 {
		info.WriteTimeoutSec = 10
	}
	acks := kafka.RequireOne
	switch info.RequiredAcks {
	case -1:
		acks = kafka.RequireAll
	case 0:
		acks = kafka.RequireNone
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(info.Brokers...),
		Topic:        info.Topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: time.Duration(info.WriteTimeoutSec) * time.Second,
		RequiredAcks: acks,
		Async:        info.Async,
	}
	return newKafkaPublisher(writer, info, pkg.LoggerFromContext(ctx)), nil
}

func newKafkaPublisher(w messageWriter, info KafkaInfo, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		info:   info,
		logger: log.With(zap.String("sink_type", "kafka"), zap.String("topic", info.Topic)),
	}
}

func (k *KafkaPublisher) GetType() string { return "kafka" }

func (k *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.GameID), Value: payload, Time: ev.Ts}); err != nil {
		return err
	}
	k.logger.Debug("decode event sent to kafka", zap.String("gameID", ev.GameID))
	return nil
}

func (k *KafkaPublisher) Close() error { return k.writer.Close() }
