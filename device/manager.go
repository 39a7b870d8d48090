package device

import (
	"fmt"
	"slices"
	"sync"

	"myohand/config"
)

// actuator 单个执行器的运行状态；mu 保证同一执行器的总线操作严格串行
type actuator struct {
	mu  sync.Mutex
	cfg config.ActuatorConfig

	last    int32 // 最近一次成功下发的目标位置
	hasLast bool
	fault   *Fault

	writes       uint64
	commFailures uint64
}

// clamp 将请求位置限制在执行器边界内
func (a *actuator) clamp(pos int32) int32 {
	return min(max(pos, a.cfg.Min), a.cfg.Max)
}

// ActuatorManager 管理已配置的执行器，集合在创建后不再变化
type ActuatorManager struct {
	actuators map[int]*actuator
	ids       []int
}

// NewActuatorManager 根据配置创建执行器集合
func NewActuatorManager(cfgs []config.ActuatorConfig) (*ActuatorManager, error) {
	m := &ActuatorManager{actuators: make(map[int]*actuator, len(cfgs))}
	for _, c := range cfgs {
		if _, exists := m.actuators[c.ID]; exists {
			return nil, fmt.Errorf("执行器 %d 已存在", c.ID)
		}
		if c.Min > c.Max {
			return nil, fmt.Errorf("执行器 %d 边界无效：[%d, %d]", c.ID, c.Min, c.Max)
		}
		m.actuators[c.ID] = &actuator{cfg: c}
		m.ids = append(m.ids, c.ID)
	}
	slices.Sort(m.ids)
	return m, nil
}

func (m *ActuatorManager) get(id int) (*actuator, error) {
	a, ok := m.actuators[id]
	if !ok {
		return nil, fmt.Errorf("%w：%d", ErrUnknownActuator, id)
	}
	return a, nil
}

// Bounds 返回执行器的位置边界
func (m *ActuatorManager) Bounds(id int) (minPos, maxPos int32, err error) {
	a, err := m.get(id)
	if err != nil {
		return 0, 0, err
	}
	return a.cfg.Min, a.cfg.Max, nil
}
