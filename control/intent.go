package control

import (
	"fmt"
	"strconv"
	"strings"

	"myohand/define"
)

// Intent 来自某个指令来源的控制意图
type Intent interface {
	Source() define.ControlMode
}

// PoseIntent 肌电分类器给出的姿态
type PoseIntent struct {
	Pose define.Pose
}

func (PoseIntent) Source() define.ControlMode { return define.MODE_POSE_CLASSIFIER }

// AltSensorIntent 备用传感器（FSR）给出的张开/握紧
type AltSensorIntent struct {
	Pose define.Pose
}

func (AltSensorIntent) Source() define.ControlMode { return define.MODE_ALT_SENSOR }

// ManualAction 手动控制动作
type ManualAction int

const (
	MANUAL_START ManualAction = iota // 朝某个方向运动到边界
	MANUAL_MOVE                      // 运动到指定位置
	MANUAL_STOP                      // 停在当前位置
)

func (a ManualAction) String() string {
	switch a {
	case MANUAL_START:
		return "start"
	case MANUAL_MOVE:
		return "move"
	case MANUAL_STOP:
		return "stop"
	}
	return "unknown"
}

// Direction 手动运动方向：forward 趋向上界，backward 趋向下界
type Direction int

const (
	DIRECTION_FORWARD Direction = iota
	DIRECTION_BACKWARD
)

func (d Direction) String() string {
	if d == DIRECTION_BACKWARD {
		return "backward"
	}
	return "forward"
}

// ManualIntent 针对单个执行器的手动指令
type ManualIntent struct {
	ActuatorID int
	Action     ManualAction
	Direction  Direction
	Position   int32
}

func (ManualIntent) Source() define.ControlMode { return define.MODE_MANUAL }

// ParseAltSensor 解析备用传感器读数：open/close，或与阈值比较的模拟量（不低于阈值视为握紧）
func ParseAltSensor(raw string, threshold float64) (AltSensorIntent, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch s {
	case "open", "relaxed":
		return AltSensorIntent{Pose: define.POSE_RELAXED}, nil
	case "close", "closed", "fist":
		return AltSensorIntent{Pose: define.POSE_FIST}, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return AltSensorIntent{}, fmt.Errorf("无法解析传感器读数 %q：%w", raw, err)
	}
	if v >= threshold {
		return AltSensorIntent{Pose: define.POSE_FIST}, nil
	}
	return AltSensorIntent{Pose: define.POSE_RELAXED}, nil
}

// ManualCommand 手动控制消息（MQTT 与 HTTP 共用）
type ManualCommand struct {
	Type     string `json:"type,omitempty"`
	Motor    int    `json:"motor"`
	Action   string `json:"action"`
	Dir      string `json:"dir,omitempty"`
	Position *int32 `json:"position,omitempty"`
}

// Intent 校验消息并转换为手动意图
func (c ManualCommand) Intent() (ManualIntent, error) {
	if c.Type != "" && c.Type != "control" {
		return ManualIntent{}, fmt.Errorf("不支持的消息类型：%s", c.Type)
	}
	intent := ManualIntent{ActuatorID: c.Motor}
	switch strings.ToLower(c.Action) {
	case "start":
		intent.Action = MANUAL_START
		switch strings.ToLower(c.Dir) {
		case "forward", "":
			intent.Direction = DIRECTION_FORWARD
		case "backward":
			intent.Direction = DIRECTION_BACKWARD
		default:
			return ManualIntent{}, fmt.Errorf("无效的运动方向：%s", c.Dir)
		}
	case "move":
		if c.Position == nil {
			return ManualIntent{}, fmt.Errorf("move 指令缺少 position")
		}
		intent.Action = MANUAL_MOVE
		intent.Position = *c.Position
	case "stop":
		intent.Action = MANUAL_STOP
	default:
		return ManualIntent{}, fmt.Errorf("无效的动作：%s", c.Action)
	}
	return intent, nil
}
