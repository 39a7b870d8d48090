package config

import (
	"fmt"

	"myohand/define"
)

// Validate 检查配置并补全缺省值
func Validate(cfg *Config) error {
	if cfg.Signal.SampleRateHz <= 0 {
		return fmt.Errorf("signal.sample_rate_hz 必须大于 0")
	}
	if cfg.Signal.WindowMs <= 0 {
		return fmt.Errorf("signal.window_ms 必须大于 0")
	}
	if cfg.Signal.Overlap < 0 || cfg.Signal.Overlap >= 1 {
		return fmt.Errorf("signal.overlap 必须在 [0, 1) 之间，当前为 %v", cfg.Signal.Overlap)
	}
	if cfg.Signal.Channels <= 0 {
		cfg.Signal.Channels = 8
	}

	// 0 表示关闭平滑
	if cfg.Classifier.History < 1 {
		cfg.Classifier.History = 1
	}

	if cfg.Control.PollInterval <= 0 {
		return fmt.Errorf("control.poll_interval 必须大于 0")
	}
	if cfg.Control.QueueSize <= 0 {
		cfg.Control.QueueSize = 64
	}

	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	// 退避间隔不得小于控制循环周期
	if cfg.Retry.Backoff < cfg.Control.PollInterval {
		cfg.Retry.Backoff = cfg.Control.PollInterval
	}

	if len(cfg.Actuators) == 0 {
		return fmt.Errorf("至少需要配置一个执行器")
	}
	seen := make(map[int]bool, len(cfg.Actuators))
	for _, a := range cfg.Actuators {
		if seen[a.ID] {
			return fmt.Errorf("执行器 ID %d 重复", a.ID)
		}
		seen[a.ID] = true
		if a.Min > a.Max {
			return fmt.Errorf("执行器 %d 边界无效：min %d > max %d", a.ID, a.Min, a.Max)
		}
	}

	for name, targets := range cfg.Poses {
		if _, ok := define.PoseFromString(name); !ok {
			return fmt.Errorf("未知的姿态名称：%s", name)
		}
		for id := range targets {
			if !seen[id] {
				return fmt.Errorf("姿态 %s 引用了未配置的执行器 %d", name, id)
			}
		}
	}

	if cfg.Bus.Type == "" {
		cfg.Bus.Type = "sim"
	}

	if cfg.MQTT.Enabled && cfg.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker 不能为空")
	}
	if cfg.MQTT.Port == 0 {
		cfg.MQTT.Port = 1883
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "9099"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	return nil
}
