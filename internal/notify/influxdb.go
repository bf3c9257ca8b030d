package notify

import (
	"context"
	"fmt"

	"ps2cfg/internal/pkg"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"go.uber.org/zap"
)

func init() {
	Register("influxdb", NewInfluxDbPublisher)
}

// InfluxDbInfo influxdb 下游配置
type InfluxDbInfo struct {
	URL         string `mapstructure:"url"`
	Org         string `mapstructure:"org"`
	Token       string `mapstructure:"token"`
	Bucket      string `mapstructure:"bucket"`
	Measurement string `mapstructure:"measurement"`
}

// InfluxDbPublisher 每个事件写入一个点，gameID 和 strategy 作为 tag
type InfluxDbPublisher struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	info     InfluxDbInfo
	logger   *zap.Logger
}

func NewInfluxDbPublisher(ctx context.Context, para map[string]interface{}) (Publisher, error) {
	var info InfluxDbInfo
	if err := decodeInfo(para, &info); err != nil {
		return nil, fmt.Errorf("[NewInfluxDbPublisher] Error decoding map to struct: %v", err)
	}
	if info.URL == "" || info.Bucket == "" {
		return nil, fmt.Errorf("influxdb config validation failed: 'url' and 'bucket' are required")
	}
	if info.Measurement == "" {
		info.Measurement = "netemu_decode"
	}
	log := pkg.LoggerFromContext(ctx)
	log.Debug("InfluxDB配置", zap.String("url", info.URL), zap.String("bucket", info.Bucket))

	client := influxdb2.NewClient(info.URL, info.Token)
	return &InfluxDbPublisher{
		client:   client,
		writeAPI: client.WriteAPIBlocking(info.Org, info.Bucket),
		info:     info,
		logger:   log,
	}, nil
}

func (b *InfluxDbPublisher) GetType() string { return "influxdb" }

func (b *InfluxDbPublisher) Publish(ctx context.Context, ev Event) error {
	p := influxdb2.NewPoint(b.info.Measurement,
		map[string]string{"gameID": ev.GameID, "strategy": ev.Strategy},
		map[string]interface{}{
			"sections":    ev.Sections,
			"occurrences": ev.Occurrences,
			"patches":     ev.Patches,
		},
		ev.Ts)
	return b.writeAPI.WritePoint(ctx, p)
}

func (b *InfluxDbPublisher) Close() error {
	b.client.Close()
	return nil
}
