package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 应用配置
type Config struct {
	Signal     SignalConfig             `yaml:"signal"`
	Classifier ClassifierConfig         `yaml:"classifier"`
	Control    ControlConfig            `yaml:"control"`
	Retry      RetryConfig              `yaml:"retry"`
	Bus        BusConfig                `yaml:"bus"`
	Actuators  []ActuatorConfig         `yaml:"actuators"`
	Poses      map[string]map[int]int32 `yaml:"poses"` // 姿态名 → 执行器 ID → 目标位置
	MQTT       MQTTConfig               `yaml:"mqtt"`
	Server     ServerConfig             `yaml:"server"`
	Storage    StorageConfig            `yaml:"storage"`
	Log        LogConfig                `yaml:"log"`
}

// SignalConfig 肌电信号与滑动窗口参数
type SignalConfig struct {
	SampleRateHz float64 `yaml:"sample_rate_hz"`
	WindowMs     float64 `yaml:"window_ms"`
	Overlap      float64 `yaml:"overlap"` // 0 ≤ overlap < 1
	Channels     int     `yaml:"channels"`
	Replay       string  `yaml:"replay"` // 录制数据文件，为空时使用模拟信号源
}

// ClassifierConfig 分类模型配置
type ClassifierConfig struct {
	ModelPath string `yaml:"model_path"`
	History   int    `yaml:"history"` // 多数票平滑的窗口数
}

// ControlConfig 控制循环配置
type ControlConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval"`
	QueueSize          int           `yaml:"queue_size"`
	AltSensorThreshold float64       `yaml:"alt_sensor_threshold"`
}

// RetryConfig 通信失败时的重试策略
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Backoff     time.Duration `yaml:"backoff"`
}

// BusConfig 舵机总线配置
type BusConfig struct {
	Type                string        `yaml:"type"` // "dynamixel" 或 "sim"
	Device              string        `yaml:"device"`
	BaudRate            int           `yaml:"baud_rate"`
	Timeout             time.Duration `yaml:"timeout"`
	ProfileAcceleration uint32        `yaml:"profile_acceleration"`
	ProfileVelocity     uint32        `yaml:"profile_velocity"`
}

// ActuatorConfig 单个执行器的位置边界
type ActuatorConfig struct {
	ID   int    `yaml:"id"`
	Name string `yaml:"name"`
	Min  int32  `yaml:"min"`
	Max  int32  `yaml:"max"`
}

// MQTTConfig 消息总线配置
type MQTTConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Broker   string     `yaml:"broker"`
	Port     int        `yaml:"port"`
	ClientID string     `yaml:"client_id"`
	QoS      byte       `yaml:"qos"`
	Topics   MQTTTopics `yaml:"topics"`
}

// MQTTTopics 控制面与输出主题
type MQTTTopics struct {
	Active    string `yaml:"active"`
	Mode      string `yaml:"mode"`
	AltSensor string `yaml:"alt_sensor"`
	Manual    string `yaml:"manual"`
	Reset     string `yaml:"reset"`
	Motor     string `yaml:"motor"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port       string `yaml:"port"`
	EnableCORS bool   `yaml:"enable_cors"`
}

// StorageConfig 故障记录存储配置
type StorageConfig struct {
	FaultDir string `yaml:"fault_dir"` // 为空时使用内存模式
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"`
}

// LoadConfig 从文件加载配置
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败：%w", err)
	}

	cfg := GetDefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败：%w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("配置无效：%w", err)
	}

	return cfg, nil
}

// SaveConfig 保存配置到文件
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("序列化配置失败：%w", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return fmt.Errorf("保存配置文件失败：%w", err)
	}
	return nil
}

// GetDefaultConfig 获取默认配置
func GetDefaultConfig() *Config {
	return &Config{
		Signal: SignalConfig{
			SampleRateHz: 200,
			WindowMs:     200,
			Overlap:      0.4,
			Channels:     8,
		},
		Classifier: ClassifierConfig{ModelPath: "model.yaml", History: 6},
		Control: ControlConfig{
			PollInterval:       20 * time.Millisecond,
			QueueSize:          64,
			AltSensorThreshold: 0.5,
		},
		Retry: RetryConfig{MaxAttempts: 3, Backoff: 40 * time.Millisecond},
		Bus: BusConfig{
			Type:                "sim",
			Device:              "/dev/ttyUSB0",
			BaudRate:            1000000,
			Timeout:             50 * time.Millisecond,
			ProfileAcceleration: 50,
			ProfileVelocity:     300,
		},
		Actuators: []ActuatorConfig{
			{ID: 1, Name: "m1", Min: -1000, Max: 500},
			{ID: 2, Name: "m2", Min: 2000, Max: 8000},
		},
		Poses: map[string]map[int]int32{
			"fist":    {1: -1000, 2: 7000},
			"relaxed": {1: -1000, 2: 3000},
		},
		MQTT: MQTTConfig{
			Enabled:  true,
			Broker:   "localhost",
			Port:     1883,
			ClientID: "myohand",
			Topics: MQTTTopics{
				Active:    "fsr/mode",
				Mode:      "system/control_mode",
				AltSensor: "fsr/finger",
				Manual:    "system/manual",
				Reset:     "system/reset",
				Motor:     "motor/command",
			},
		},
		Server:  ServerConfig{Port: "9099", EnableCORS: true},
		Storage: StorageConfig{FaultDir: "data/faults"},
		Log:     LogConfig{Level: "info"},
	}
}

// Actuator 按 ID 查找执行器配置
func (c *Config) Actuator(id int) (ActuatorConfig, bool) {
	for _, a := range c.Actuators {
		if a.ID == id {
			return a, true
		}
	}
	return ActuatorConfig{}, false
}
