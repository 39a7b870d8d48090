package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Bus 舵机总线的寄存器级操作（使能、运行模式、目标位置、当前位置）
type Bus interface {
	Open() error                                                                 // 打开总线
	Close() error                                                                // 关闭总线
	SetTorque(ctx context.Context, id int, enable bool) error                    // 使能/释放力矩
	SetOperatingMode(ctx context.Context, id int, mode byte) error               // 设置运行模式
	SetProfile(ctx context.Context, id int, acceleration, velocity uint32) error // 设置运动曲线
	SetGoalPosition(ctx context.Context, id int, position int32) error           // 写目标位置
	ReadPosition(ctx context.Context, id int) (int32, error)                     // 读当前位置
}

// Result 设备操作结果分类
type Result int

const (
	ResultSuccess              Result = iota // 成功
	ResultCommunicationFailure               // 通信失败，可重试
	ResultHardwareFault                      // 硬件故障，不可重试，需要人工处理
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultCommunicationFailure:
		return "communication_failure"
	case ResultHardwareFault:
		return "hardware_fault"
	}
	return "unknown"
}

var (
	// ErrCommunication 传输层失败（超时、校验错误、串口断开）
	ErrCommunication = errors.New("总线通信失败")
	// ErrActuatorFaulted 执行器处于故障锁定状态，需显式复位
	ErrActuatorFaulted = errors.New("执行器处于故障状态")
	// ErrUnknownActuator 未配置的执行器
	ErrUnknownActuator = errors.New("未知的执行器")
)

// HardwareError 设备上报的错误（过载、过热、指令被拒绝等）
type HardwareError struct {
	ID    int
	Code  byte // 状态包错误码（低 7 位）
	Alert bool // 硬件告警位
}

func (e *HardwareError) Error() string {
	if e.Alert {
		return fmt.Sprintf("执行器 %d 硬件告警（错误码 0x%02X）", e.ID, e.Code)
	}
	return fmt.Sprintf("执行器 %d 返回错误码 0x%02X", e.ID, e.Code)
}

// Classify 将设备错误归类为三种结果之一
func Classify(err error) Result {
	if err == nil {
		return ResultSuccess
	}
	var hw *HardwareError
	if errors.As(err, &hw) || errors.Is(err, ErrActuatorFaulted) || errors.Is(err, ErrUnknownActuator) {
		return ResultHardwareFault
	}
	return ResultCommunicationFailure
}

// Fault 执行器故障记录
type Fault struct {
	ActuatorID int       `json:"actuatorId"`
	Reason     string    `json:"reason"`
	Code       byte      `json:"code,omitempty"`
	At         time.Time `json:"at"`
}

// FaultStore 故障记录持久化，重启后故障执行器依旧保持锁定
type FaultStore interface {
	RecordFault(f Fault) error
	ClearFault(actuatorID int) error
	Faults() ([]Fault, error)
}
