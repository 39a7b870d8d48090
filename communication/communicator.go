package communication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"myohand/config"
	"myohand/control"
	"myohand/define"
)

// Communicator 与外部消息总线通信：接收控制面消息，发布已接受的指令
type Communicator interface {
	// Connect 连接消息代理并订阅控制主题
	Connect(ctx context.Context) error

	// PublishTarget 发布一个已接受的执行器目标，不阻塞调用方
	PublishTarget(target define.ActuatorTarget) error

	// Disconnect 断开连接
	Disconnect()

	// IsConnected 检查连接状态
	IsConnected() bool
}

// EventSink 控制事件的接收方，由 control.Loop 实现
type EventSink interface {
	Submit(ev control.Event) bool
}

// MQTTClient 基于 paho 的 MQTT 通信实现
type MQTTClient struct {
	cfg       config.MQTTConfig
	threshold float64
	sink      EventSink
	client    mqtt.Client

	mu        sync.RWMutex
	connected bool
	stats     Stats

	publishTimeout time.Duration
}

// Stats 消息统计
type Stats struct {
	Connected bool   `json:"connected"`
	Received  uint64 `json:"received"`
	Rejected  uint64 `json:"rejected"`
	Published uint64 `json:"published"`
	Errors    uint64 `json:"errors"`
}

// NewMQTTClient 创建 MQTT 通信客户端；threshold 为备用传感器模拟量的握紧阈值
func NewMQTTClient(cfg config.MQTTConfig, threshold float64) *MQTTClient {
	return &MQTTClient{cfg: cfg, threshold: threshold, publishTimeout: 2 * time.Second}
}

// Bind 设置控制事件的接收方，须在 Connect 之前调用
func (c *MQTTClient) Bind(sink EventSink) {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
}

func (c *MQTTClient) brokerURL() string {
	return fmt.Sprintf("tcp://%s:%d", c.cfg.Broker, c.cfg.Port)
}

func (c *MQTTClient) Connect(ctx context.Context) error {
	clientID := fmt.Sprintf("%s-%s", c.cfg.ClientID, uuid.NewString())

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.brokerURL())
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	// 每次（重新）连接后重新订阅
	opts.OnConnect = func(client mqtt.Client) {
		c.setConnected(true)
		slog.Info("📡 MQTT 已连接", "broker", c.brokerURL(), "client_id", clientID)
		c.subscribe(client)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		c.setConnected(false)
		slog.Warn("📡 MQTT 连接断开，等待自动重连", "broker", c.brokerURL(), "error", err)
	}

	c.client = mqtt.NewClient(opts)
	slog.Info("🔗 正在连接 MQTT 代理", "broker", c.brokerURL())

	token := c.client.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("连接 MQTT 代理被取消：%w", ctx.Err())
	case <-time.After(5 * time.Second):
		return fmt.Errorf("连接 MQTT 代理超时：%s", c.brokerURL())
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("连接 MQTT 代理失败：%w", err)
	}
	return nil
}

func (c *MQTTClient) subscribe(client mqtt.Client) {
	filters := make(map[string]byte)
	for _, topic := range c.controlTopics() {
		filters[topic] = c.cfg.QoS
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(5 * time.Second) {
		slog.Error("❌ 订阅控制主题超时")
		return
	}
	if err := token.Error(); err != nil {
		slog.Error("❌ 订阅控制主题失败", "error", err)
		return
	}
	slog.Info("📥 已订阅控制主题", "topics", c.controlTopics())
}

func (c *MQTTClient) controlTopics() []string {
	t := c.cfg.Topics
	var topics []string
	for _, topic := range []string{t.Active, t.Mode, t.AltSensor, t.Manual, t.Reset} {
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

func (c *MQTTClient) onMessage(_ mqtt.Client, msg mqtt.Message) {
	c.mu.Lock()
	c.stats.Received++
	c.mu.Unlock()

	ev, err := c.ParseMessage(msg.Topic(), msg.Payload())
	if err != nil {
		c.mu.Lock()
		c.stats.Rejected++
		c.mu.Unlock()
		slog.Warn("⚠️ 无法解析控制消息", "topic", msg.Topic(), "payload", string(msg.Payload()), "error", err)
		return
	}
	c.mu.RLock()
	sink := c.sink
	c.mu.RUnlock()
	if sink == nil {
		slog.Warn("⚠️ 控制事件无人接收，已丢弃", "topic", msg.Topic())
		return
	}
	sink.Submit(ev)
}

// ParseMessage 将控制主题上的消息转换为控制事件
func (c *MQTTClient) ParseMessage(topic string, payload []byte) (control.Event, error) {
	text := strings.TrimSpace(string(payload))
	t := c.cfg.Topics

	switch topic {
	case t.Active:
		active, err := parseSwitch(text)
		if err != nil {
			return nil, err
		}
		return control.ActivateEvent{Active: active}, nil

	case t.Mode:
		mode, ok := define.ControlModeFromString(text)
		if !ok {
			return nil, fmt.Errorf("未知的控制模式：%s", text)
		}
		return control.ModeEvent{Mode: mode}, nil

	case t.AltSensor:
		intent, err := control.ParseAltSensor(text, c.threshold)
		if err != nil {
			return nil, err
		}
		return control.IntentEvent{Intent: intent}, nil

	case t.Manual:
		var cmd control.ManualCommand
		if err := json.Unmarshal(payload, &cmd); err != nil {
			return nil, fmt.Errorf("手动控制消息格式错误：%w", err)
		}
		intent, err := cmd.Intent()
		if err != nil {
			return nil, err
		}
		return control.IntentEvent{Intent: intent}, nil

	case t.Reset:
		id, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("无效的执行器 ID：%s", text)
		}
		return control.ResetFaultEvent{ActuatorID: id}, nil
	}
	return nil, fmt.Errorf("未订阅的主题：%s", topic)
}

// parseSwitch 解析开关量消息
func parseSwitch(text string) (bool, error) {
	switch strings.ToLower(text) {
	case "1", "true", "on", "start":
		return true, nil
	case "0", "false", "off", "stop":
		return false, nil
	}
	return false, fmt.Errorf("无效的开关值：%s", text)
}

// targetMessage 指令镜像消息
type targetMessage struct {
	ID       int   `json:"id"`
	Position int32 `json:"position"`
}

func (c *MQTTClient) PublishTarget(target define.ActuatorTarget) error {
	if !c.IsConnected() {
		c.countError()
		return fmt.Errorf("MQTT 未连接")
	}
	payload, err := json.Marshal(targetMessage{ID: target.ActuatorID, Position: target.Position})
	if err != nil {
		c.countError()
		return fmt.Errorf("序列化指令失败：%w", err)
	}

	// 在控制循环中调用，不等待代理确认
	token := c.client.Publish(c.cfg.Topics.Motor, c.cfg.QoS, false, payload)
	go c.awaitPublish(token, target)
	return nil
}

// awaitPublish 等待发布确认并记录结果
func (c *MQTTClient) awaitPublish(token mqtt.Token, target define.ActuatorTarget) {
	if !token.WaitTimeout(c.publishTimeout) {
		c.countError()
		slog.Warn("⚠️ 指令发布超时", "target", target.String(), "timeout", c.publishTimeout)
		return
	}
	if err := token.Error(); err != nil {
		c.countError()
		slog.Warn("⚠️ 指令发布失败", "target", target.String(), "error", err)
		return
	}

	c.mu.Lock()
	c.stats.Published++
	c.mu.Unlock()
	slog.Debug("📤 指令已发布", "topic", c.cfg.Topics.Motor, "target", target.String())
}

func (c *MQTTClient) Disconnect() {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(250)
		slog.Info("📡 MQTT 已断开")
	}
	c.setConnected(false)
}

func (c *MQTTClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Stats 返回消息统计
func (c *MQTTClient) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st := c.stats
	st.Connected = c.connected
	return st
}

func (c *MQTTClient) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

func (c *MQTTClient) countError() {
	c.mu.Lock()
	c.stats.Errors++
	c.mu.Unlock()
}
