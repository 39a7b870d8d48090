package define

import "fmt"

// API 响应结构体
type ApiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ActuatorTarget 单个执行器的目标位置（设备单位，有符号）
type ActuatorTarget struct {
	ActuatorID int   `json:"id"`
	Position   int32 `json:"position"`
}

func (t ActuatorTarget) String() string {
	return fmt.Sprintf("M%d→%d", t.ActuatorID, t.Position)
}
