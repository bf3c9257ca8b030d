package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"ps2cfg/internal/pkg"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) GetType() string { return "mock" }

func (m *mockPublisher) Publish(ctx context.Context, ev Event) error {
	return m.Called(ctx, ev).Error(0)
}

func (m *mockPublisher) Close() error { return m.Called().Error(0) }

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockWriter) Close() error { return m.Called().Error(0) }

var sampleEvent = Event{
	GameID:      "SLUS_123.45",
	Hash:        "2B 3C 4D",
	Strategy:    "catalog",
	Sections:    2,
	Occurrences: 2,
	Patches:     1,
	Ts:          time.Unix(1700000000, 0).UTC(),
}

func TestHubDispatch(t *testing.T) {
	p := &mockPublisher{}
	done := make(chan struct{})
	p.On("Publish", mock.Anything, sampleEvent).Return(errors.New("broker down")).Run(func(mock.Arguments) { close(done) })
	p.On("Close").Return(nil)

	errChan := make(chan error, 1)
	ctx := pkg.WithErrChan(context.Background(), errChan)

	h := NewHubWith(zap.NewNop(), p)
	h.Start(ctx)
	require.True(t, h.Notify(sampleEvent))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not dispatched")
	}
	h.Close()
	p.AssertExpectations(t)

	select {
	case err := <-errChan:
		assert.Contains(t, err.Error(), "broker down")
	case <-time.After(time.Second):
		t.Fatal("publish error was not reported")
	}
}

func TestHubWithoutPublishers(t *testing.T) {
	var nilHub *Hub
	assert.False(t, nilHub.Notify(sampleEvent))
	assert.NotPanics(t, nilHub.Close)

	h, err := NewHub(context.Background(), []pkg.NotifyConfig{{Type: "kafka", Enable: false}})
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
	assert.False(t, h.Notify(sampleEvent))
}

func TestNewHubErrors(t *testing.T) {
	_, err := NewHub(context.Background(), []pkg.NotifyConfig{{Type: "carrier-pigeon", Enable: true}})
	assert.Error(t, err)

	_, err = NewHub(context.Background(), []pkg.NotifyConfig{{Type: "kafka", Enable: true, Para: map[string]interface{}{"topic": "x"}}})
	assert.ErrorContains(t, err, "brokers")

	assert.Equal(t, []string{"influxdb", "kafka", "mqtt"}, RegisteredTypes())
}

func TestKafkaPublisher(t *testing.T) {
	w := &mockWriter{}
	w.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 || string(msgs[0].Key) != "SLUS_123.45" {
			return false
		}
		var got Event
		return json.Unmarshal(msgs[0].Value, &got) == nil && got.Patches == 1 && got.Ts.Equal(sampleEvent.Ts)
	})).Return(nil)
	w.On("Close").Return(nil)

	k := newKafkaPublisher(w, KafkaInfo{Topic: "netemu.decodes"}, zap.NewNop())
	require.NoError(t, k.Publish(context.Background(), sampleEvent))
	require.NoError(t, k.Close())
	w.AssertExpectations(t)
}

func TestNewKafkaPublisherConfig(t *testing.T) {
	p, err := NewKafkaPublisher(context.Background(), map[string]interface{}{
		"brokers":      []interface{}{"localhost:9092"},
		"topic":        "netemu.decodes",
		"requiredAcks": "-1",
	})
	require.NoError(t, err)
	kp := p.(*KafkaPublisher)
	assert.Equal(t, 10, kp.info.WriteTimeoutSec)
	assert.Equal(t, kafka.RequireAll, kp.writer.(*kafka.Writer).RequiredAcks)
	assert.NoError(t, p.Close())
}

func TestInfluxDbPublisher(t *testing.T) {
	body := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v2/write" {
			raw, _ := io.ReadAll(r.Body)
			body <- string(raw)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, err := NewInfluxDbPublisher(context.Background(), map[string]interface{}{
		"url": srv.URL, "org": "ps2", "bucket": "decodes",
	})
	require.NoError(t, err)
	defer p.Close()

	require.NoError(t, p.Publish(context.Background(), sampleEvent))
	line := <-body
	assert.True(t, strings.HasPrefix(line, "netemu_decode,gameID=SLUS_123.45,strategy=catalog "), line)
	assert.Contains(t, line, "patches=1i")
	assert.Contains(t, line, "sections=2i")

	_, err = NewInfluxDbPublisher(context.Background(), map[string]interface{}{"org": "ps2"})
	assert.Error(t, err)
}
