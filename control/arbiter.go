package control

import "myohand/define"

// Arbiter 决定当前由哪个指令来源控制手部，以及系统是否处于激活状态。
// 激活标志与模式相互独立；仅由控制循环所在的 goroutine 访问。
type Arbiter struct {
	mode   define.ControlMode
	active bool
}

// NewArbiter 初始为肌电分类器模式、未激活
func NewArbiter() *Arbiter {
	return &Arbiter{mode: define.MODE_POSE_CLASSIFIER}
}

// SetActive 设置激活标志，返回是否发生变化
func (a *Arbiter) SetActive(active bool) bool {
	if a.active == active {
		return false
	}
	a.active = active
	return true
}

// SetMode 切换控制模式，不影响激活标志
func (a *Arbiter) SetMode(mode define.ControlMode) bool {
	if a.mode == mode {
		return false
	}
	a.mode = mode
	return true
}

func (a *Arbiter) Active() bool             { return a.active }
func (a *Arbiter) Mode() define.ControlMode { return a.mode }

// Accepts 来源的指令是否可以驱动执行器
func (a *Arbiter) Accepts(source define.ControlMode) bool {
	return a.active && source == a.mode
}
