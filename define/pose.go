package define

import "strings"

// Pose 分类器输出的离散手部姿态
type Pose int32

const (
	POSE_RELAXED Pose = 0 // 放松（空闲默认值）
	POSE_FIST    Pose = 1 // 握拳
)

// IdlePose 通道初始化与分类器未就绪时使用的姿态
const IdlePose = POSE_RELAXED

// KnownPoses 当前支持的姿态集合
var KnownPoses = []Pose{POSE_RELAXED, POSE_FIST}

func (p Pose) String() string {
	switch p {
	case POSE_RELAXED:
		return "relaxed"
	case POSE_FIST:
		return "fist"
	}
	return "unknown"
}

// Valid 判断姿态是否属于已知集合
func (p Pose) Valid() bool {
	for _, k := range KnownPoses {
		if k == p {
			return true
		}
	}
	return false
}

// PoseFromString 解析姿态名称，兼容 open/close 写法
func PoseFromString(s string) (Pose, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "relaxed", "open", "0":
		return POSE_RELAXED, true
	case "fist", "close", "closed", "1":
		return POSE_FIST, true
	}
	return IdlePose, false
}

// ControlMode 当前具有控制权的指令来源
type ControlMode int

const (
	MODE_POSE_CLASSIFIER ControlMode = iota // 肌电分类器
	MODE_ALT_SENSOR                         // 备用传感器（FSR）
	MODE_MANUAL                             // 手动控制
)

func (m ControlMode) String() string {
	switch m {
	case MODE_POSE_CLASSIFIER:
		return "myo"
	case MODE_ALT_SENSOR:
		return "fsr"
	case MODE_MANUAL:
		return "manual"
	}
	return "unknown"
}

// ControlModeFromString 解析模式名称
func ControlModeFromString(s string) (ControlMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "myo", "pose", "pose_classifier", "emg":
		return MODE_POSE_CLASSIFIER, true
	case "fsr", "alt", "alt_sensor", "sensor":
		return MODE_ALT_SENSOR, true
	case "manual":
		return MODE_MANUAL, true
	}
	return MODE_POSE_CLASSIFIER, false
}
