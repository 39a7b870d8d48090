package api

import (
	"time"

	"myohand/control"
	"myohand/define"
	"myohand/device"
)

// ===== 控制相关模型 =====

// ActiveRequest 激活/停用请求
type ActiveRequest struct {
	Active *bool `json:"active" binding:"required"`
}

// ModeRequest 控制模式切换请求
type ModeRequest struct {
	Mode string `json:"mode" binding:"required"`
}

// AltSensorRequest 备用传感器读数（open/close 或数值）
type AltSensorRequest struct {
	Value string `json:"value" binding:"required"`
}

// IntentResponse 意图提交结果
type IntentResponse struct {
	Outcome string `json:"outcome"`
}

// SimulateRequest 模拟信号源姿态切换
type SimulateRequest struct {
	Fist *bool `json:"fist" binding:"required"`
}

// ===== 执行器相关模型 =====

// ActuatorListResponse 执行器列表响应
type ActuatorListResponse struct {
	Actuators []device.ActuatorStatus `json:"actuators"`
	Total     int                     `json:"total"`
}

// PositionResponse 执行器当前位置
type PositionResponse struct {
	ID       int   `json:"id"`
	Position int32 `json:"position"`
}

// PoseTableResponse 姿态映射表
type PoseTableResponse struct {
	Poses map[string][]define.ActuatorTarget `json:"poses"`
}

// FaultHistoryResponse 故障历史
type FaultHistoryResponse struct {
	Faults []device.Fault `json:"faults"`
	Total  int            `json:"total"`
}

// ===== 系统相关模型 =====

// SystemStatusResponse 系统状态响应
type SystemStatusResponse struct {
	Control    control.Status `json:"control"`
	Components map[string]any `json:"components,omitempty"`
	BusTypes   []string       `json:"busTypes"`
	Uptime     time.Duration  `json:"uptime"`
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}
