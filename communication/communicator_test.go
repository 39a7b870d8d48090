package communication

import (
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"myohand/config"
	"myohand/control"
	"myohand/define"
)

var (
	_ Communicator       = (*MQTTClient)(nil)
	_ control.IntentSink = (*MQTTClient)(nil)
	_ EventSink          = (*control.Loop)(nil)
)

func newTestClient() *MQTTClient {
	return NewMQTTClient(config.GetDefaultConfig().MQTT, 0.5)
}

func TestParseMessage(t *testing.T) {
	c := newTestClient()
	topics := c.cfg.Topics

	cases := []struct {
		name    string
		topic   string
		payload string
		want    control.Event
	}{
		{"activate", topics.Active, "1", control.ActivateEvent{Active: true}},
		{"deactivate", topics.Active, "off", control.ActivateEvent{Active: false}},
		{"mode fsr", topics.Mode, "fsr", control.ModeEvent{Mode: define.MODE_ALT_SENSOR}},
		{"mode myo", topics.Mode, " myo\n", control.ModeEvent{Mode: define.MODE_POSE_CLASSIFIER}},
		{"sensor close", topics.AltSensor, "close", control.IntentEvent{Intent: control.AltSensorIntent{Pose: define.POSE_FIST}}},
		{"sensor analogue", topics.AltSensor, "0.1", control.IntentEvent{Intent: control.AltSensorIntent{Pose: define.POSE_RELAXED}}},
		{
			"manual start", topics.Manual,
			`{"type":"control","motor":1,"action":"start","dir":"backward"}`,
			control.IntentEvent{Intent: control.ManualIntent{ActuatorID: 1, Action: control.MANUAL_START, Direction: control.DIRECTION_BACKWARD}},
		},
		{
			"manual move", topics.Manual,
			`{"motor":2,"action":"move","position":4200}`,
			control.IntentEvent{Intent: control.ManualIntent{ActuatorID: 2, Action: control.MANUAL_MOVE, Position: 4200}},
		},
		{"reset", topics.Reset, "2", control.ResetFaultEvent{ActuatorID: 2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := c.ParseMessage(tc.topic, []byte(tc.payload))
			if err != nil {
				t.Fatalf("ParseMessage: %v", err)
			}
			if got != tc.want {
				t.Errorf("got %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseMessageRejects(t *testing.T) {
	c := newTestClient()
	topics := c.cfg.Topics

	cases := []struct {
		topic   string
		payload string
	}{
		{topics.Active, "maybe"},
		{topics.Mode, "telepathy"},
		{topics.AltSensor, "squeeze"},
		{topics.Manual, `{"motor":1,"action":"move"}`},
		{topics.Manual, `not json`},
		{topics.Reset, "all"},
		{"other/topic", "1"},
	}
	for _, tc := range cases {
		if ev, err := c.ParseMessage(tc.topic, []byte(tc.payload)); err == nil {
			t.Errorf("ParseMessage(%q, %q) = %#v, want error", tc.topic, tc.payload, ev)
		}
	}
}

func TestPublishTargetRequiresConnection(t *testing.T) {
	c := newTestClient()
	if err := c.PublishTarget(define.ActuatorTarget{ActuatorID: 1, Position: -1000}); err == nil {
		t.Fatal("publish without connection succeeded")
	}
	if st := c.Stats(); st.Errors != 1 || st.Connected {
		t.Errorf("stats = %+v", st)
	}
}

// pendingToken 在 release 关闭前保持未完成
type pendingToken struct {
	release chan struct{}
	err     error
}

func (t *pendingToken) Wait() bool {
	<-t.release
	return true
}

func (t *pendingToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.release:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *pendingToken) Done() <-chan struct{} { return t.release }

func (t *pendingToken) Error() error { return t.err }

// publishClient 只实现 Publish，其余方法不会被调用
type publishClient struct {
	mqtt.Client
	tokens []*pendingToken
}

func (p *publishClient) Publish(string, byte, bool, interface{}) mqtt.Token {
	tok := p.tokens[0]
	p.tokens = p.tokens[1:]
	return tok
}

func waitStats(t *testing.T, c *MQTTClient, ok func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		st := c.Stats()
		if ok(st) || time.Now().After(deadline) {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPublishTargetDoesNotWaitForBroker(t *testing.T) {
	stalled := &pendingToken{release: make(chan struct{})}
	acked := &pendingToken{release: make(chan struct{})}
	failed := &pendingToken{release: make(chan struct{}), err: errors.New("broker refused")}
	close(acked.release)
	close(failed.release)

	c := newTestClient()
	c.client = &publishClient{tokens: []*pendingToken{stalled, acked, failed}}
	c.publishTimeout = 20 * time.Millisecond
	c.setConnected(true)

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.PublishTarget(define.ActuatorTarget{ActuatorID: 1, Position: int32(i)}); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed >= c.publishTimeout {
		t.Errorf("publish blocked for %v", elapsed)
	}

	st := waitStats(t, c, func(st Stats) bool { return st.Published == 1 && st.Errors == 2 })
	if st.Published != 1 || st.Errors != 2 {
		t.Errorf("stats = %+v", st)
	}
	close(stalled.release)
}
