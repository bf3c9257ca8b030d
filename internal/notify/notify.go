package notify

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ps2cfg/internal/pkg"

	"go.uber.org/zap"
)

// Event 一次上传解码完成后发布的摘要
type Event struct {
	GameID      string    `json:"gameID"`
	Hash        string    `json:"hash,omitempty"`
	Strategy    string    `json:"strategy"`
	Sections    int       `json:"sections"`
	Occurrences int       `json:"occurrences"`
	Patches     int       `json:"patches"`
	Ts          time.Time `json:"ts"`
}

// Publisher 事件的下游
type Publisher interface {
	GetType() string
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// FactoryFunc 由 config 段创建 Publisher
type FactoryFunc func(ctx context.Context, para map[string]interface{}) (Publisher, error)

// Factories 已注册的下游类型，可能包含未启用的
var Factories = make(map[string]FactoryFunc)

// Register 注册一个下游类型
func Register(publisherType string, factory FactoryFunc) {
	Factories[publisherType] = factory
}

// RegisteredTypes 已注册的下游类型，按名称排序
func RegisteredTypes() []string {
	types := make([]string, 0, len(Factories))
	for key := range Factories {
		types = append(types, key)
	}
	sort.Strings(types)
	return types
}

const eventBuffer = 64

// Hub 把事件异步分发给所有启用的下游
type Hub struct {
	publishers []Publisher
	events     chan Event
	log        *zap.Logger
	wg         sync.WaitGroup
}

// NewHub 按配置创建启用的下游，未注册的类型返回错误
func NewHub(ctx context.Context, configs []pkg.NotifyConfig) (*Hub, error) {
	log := pkg.LoggerFromContext(ctx)
	log.Debug("已注册的通知类型", zap.Strings("Factories", RegisteredTypes()))

	h := &Hub{events: make(chan Event, eventBuffer), log: log}
	for _, c := range configs {
		if !c.Enable {
			continue
		}
		factory, ok := Factories[c.Type]
		if !ok {
			h.closePublishers()
			return nil, fmt.Errorf("未找到通知类型: %s", c.Type)
		}
		p, err := factory(ctx, c.Para)
		if err != nil {
			h.closePublishers()
			return nil, fmt.Errorf("初始化通知 %s 失败: %w", c.Type, err)
		}
		h.publishers = append(h.publishers, p)
	}
	return h, nil
}

// NewHubWith 使用现成的下游创建 Hub
func NewHubWith(log *zap.Logger, publishers ...Publisher) *Hub {
	return &Hub{publishers: publishers, events: make(chan Event, eventBuffer), log: log}
}

// Len 启用的下游数
func (h *Hub) Len() int {
	if h == nil {
		return 0
	}
	return len(h.publishers)
}

// Start 启动分发循环，ctx 结束或 Close 后退出
func (h *Hub) Start(ctx context.Context) {
	if h.Len() == 0 {
		return
	}
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-h.events:
				if !ok {
					return
				}
				h.dispatch(ctx, ev)
			}
		}
	}()
}

func (h *Hub) dispatch(ctx context.Context, ev Event) {
	for _, p := range h.publishers {
		if err := p.Publish(ctx, ev); err != nil {
			h.log.Error("发布解码事件失败", zap.String("type", p.GetType()), zap.String("gameID", ev.GameID), zap.Error(err))
			pkg.ReportErr(ctx, fmt.Errorf("notify %s: %w", p.GetType(), err))
		}
	}
}

// Notify 非阻塞地投递事件，队列已满或没有下游时丢弃并返回 false
func (h *Hub) Notify(ev Event) bool {
	if h.Len() == 0 {
		return false
	}
	select {
	case h.events <- ev:
		return true
	default:
		h.log.Warn("notify queue full, event dropped", zap.String("gameID", ev.GameID))
		return false
	}
}

// Close 停止分发并关闭所有下游
func (h *Hub) Close() {
	if h == nil {
		return
	}
	close(h.events)
	h.wg.Wait()
	h.closePublishers()
}

func (h *Hub) closePublishers() {
	for _, p := range h.publishers {
		if err := p.Close(); err != nil {
			h.log.Warn("关闭通知下游失败", zap.String("type", p.GetType()), zap.Error(err))
		}
	}
}
