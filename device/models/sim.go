package models

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"myohand/config"
	"myohand/device"
)

// simServo 模拟舵机的寄存器
type simServo struct {
	torque   bool
	mode     byte
	acc, vel uint32
	goal     int32
	present  int32

	commFailures int  // 剩余需要注入的通信失败次数
	hwError      byte // 非零时所有操作返回该错误码
}

// SimBus 无硬件时使用的内存总线，支持故障注入
type SimBus struct {
	mu     sync.Mutex
	servos map[int]*simServo
	writes int
	opened bool
}

// NewSimBus 创建模拟总线，配置中未出现的执行器 ID 会在首次访问时创建
func NewSimBus(config.BusConfig) (device.Bus, error) {
	return NewSimulatedBus(), nil
}

// NewSimulatedBus 创建具体类型的模拟总线，便于测试时注入故障
func NewSimulatedBus() *SimBus {
	return &SimBus{servos: make(map[int]*simServo)}
}

func (b *SimBus) Open() error {
	b.mu.Lock()
	b.opened = true
	b.mu.Unlock()
	slog.Info("🧪 使用模拟总线")
	return nil
}

func (b *SimBus) Close() error {
	b.mu.Lock()
	b.opened = false
	b.mu.Unlock()
	return nil
}

// InjectCommFailures 接下来 n 次对该执行器的访问返回通信失败
func (b *SimBus) InjectCommFailures(id, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servo(id).commFailures = n
}

// InjectHardwareFault 该执行器之后的所有访问都返回硬件错误码
func (b *SimBus) InjectHardwareFault(id int, code byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servo(id).hwError = code
}

// ClearFaults 清除所有注入的故障
func (b *SimBus) ClearFaults() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.servos {
		s.commFailures = 0
		s.hwError = 0
	}
}

// SetPresent 直接设置当前位置（模拟外力移动手指）
func (b *SimBus) SetPresent(id int, pos int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.servo(id).present = pos
}

// Goal 返回执行器最近一次写入的目标位置
func (b *SimBus) Goal(id int) int32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servo(id).goal
}

// TorqueEnabled 返回执行器的力矩使能状态
func (b *SimBus) TorqueEnabled(id int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.servo(id).torque
}

// Writes 返回成功写入目标位置的次数
func (b *SimBus) Writes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.writes
}

func (b *SimBus) servo(id int) *simServo {
	s, ok := b.servos[id]
	if !ok {
		s = &simServo{}
		b.servos[id] = s
	}
	return s
}

// access 检查总线状态与注入的故障；调用方需持有 b.mu
func (b *SimBus) access(ctx context.Context, id int) (*simServo, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w：%w", device.ErrCommunication, err)
	}
	if !b.opened {
		return nil, fmt.Errorf("%w：总线未打开", device.ErrCommunication)
	}
	s := b.servo(id)
	if s.commFailures > 0 {
		s.commFailures--
		return nil, fmt.Errorf("%w：执行器 %d 无响应（模拟）", device.ErrCommunication, id)
	}
	if s.hwError != 0 {
		return nil, statusError(id, s.hwError)
	}
	return s, nil
}

func (b *SimBus) SetTorque(ctx context.Context, id int, enable bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.access(ctx, id)
	if err != nil {
		return err
	}
	s.torque = enable
	return nil
}

func (b *SimBus) SetOperatingMode(ctx context.Context, id int, mode byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.access(ctx, id)
	if err != nil {
		return err
	}
	if s.torque {
		// 真实舵机在力矩使能时拒绝修改 EEPROM 区
		return statusError(id, STATUS_ACCESS_ERROR)
	}
	s.mode = mode
	return nil
}

func (b *SimBus) SetProfile(ctx context.Context, id int, acceleration, velocity uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.access(ctx, id)
	if err != nil {
		return err
	}
	s.acc, s.vel = acceleration, velocity
	return nil
}

// SetGoalPosition 模拟舵机立即到达目标位置
func (b *SimBus) SetGoalPosition(ctx context.Context, id int, position int32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.access(ctx, id)
	if err != nil {
		return err
	}
	s.goal = position
	if s.torque {
		s.present = position
	}
	b.writes++
	return nil
}

func (b *SimBus) ReadPosition(ctx context.Context, id int) (int32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, err := b.access(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.present, nil
}
