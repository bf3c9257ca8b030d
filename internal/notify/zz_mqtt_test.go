package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/mochi-co/mqtt/server"
	"github.com/mochi-co/mqtt/server/listeners"
	. "github.com/smartystreets/goconvey/convey"
)

const testBroker = "localhost:18883"

func TestMqttPublisher(t *testing.T) {
	Convey("通过内存 broker 发布解码事件", t, func() {
		srv := server.New()
		So(srv.AddListener(listeners.NewTCP("t1", testBroker), nil), ShouldBeNil)
		go func() { _ = srv.Serve() }()
		defer srv.Close()
		time.Sleep(100 * time.Millisecond)

		received := make(chan []byte, 1)
		sub := MQTT.NewClient(MQTT.NewClientOptions().AddBroker("tcp://" + testBroker).SetClientID("subscriber"))
		token := sub.Connect()
		So(token.Wait() && token.Error() == nil, ShouldBeTrue)
		defer sub.Disconnect(250)
		token = sub.Subscribe("netemu/decodes/#", 1, func(_ MQTT.Client, msg MQTT.Message) {
			received <- msg.Payload()
		})
		So(token.Wait() && token.Error() == nil, ShouldBeTrue)

		p, err := NewMqttPublisher(context.Background(), map[string]interface{}{
			"broker":         "localhost",
			"port":           18883,
			"clientID":       "publisher",
			"topic":          "netemu/decodes/",
			"qos":            1,
			"publishTimeout": "2s",
		})
		So(err, ShouldBeNil)
		defer p.Close()

		mp := p.(*MqttPublisher)
		So(mp.TopicFor(sampleEvent), ShouldEqual, "netemu/decodes/SLUS_123.45")
		So(mp.TopicFor(Event{}), ShouldEqual, "netemu/decodes/unknown")
		So(mp.info.PublishTimeout, ShouldEqual, 2*time.Second)

		So(p.Publish(context.Background(), sampleEvent), ShouldBeNil)

		select {
		case payload := <-received:
			var got Event
			So(json.Unmarshal(payload, &got), ShouldBeNil)
			So(got.GameID, ShouldEqual, sampleEvent.GameID)
			So(got.Hash, ShouldEqual, "2B 3C 4D")
			So(got.Ts.Equal(sampleEvent.Ts), ShouldBeTrue)
		case <-time.After(2 * time.Second):
			So("timeout", ShouldBeEmpty)
		}
	})

	Convey("缺少 broker 时返回错误", t, func() {
		_, err := NewMqttPublisher(context.Background(), map[string]interface{}{"topic": "x"})
		So(err, ShouldNotBeNil)
	})
}
