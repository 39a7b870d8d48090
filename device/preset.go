package device

import (
	"fmt"
	"slices"

	"myohand/define"
)

// PoseTable 姿态到各执行器目标位置的固定映射
type PoseTable struct {
	targets map[define.Pose][]define.ActuatorTarget
}

// NewPoseTable 由配置创建映射表（姿态名 → 执行器 ID → 位置）
func NewPoseTable(poses map[string]map[int]int32) (*PoseTable, error) {
	t := &PoseTable{targets: make(map[define.Pose][]define.ActuatorTarget)}
	for name, positions := range poses {
		pose, ok := define.PoseFromString(name)
		if !ok {
			return nil, fmt.Errorf("未知的姿态名称：%s", name)
		}
		t.Register(pose, positions)
	}
	return t, nil
}

// DefaultPoseTable 默认手部几何下的映射
func DefaultPoseTable() *PoseTable {
	t := &PoseTable{targets: make(map[define.Pose][]define.ActuatorTarget)}
	t.Register(define.POSE_FIST, map[int]int32{1: -1000, 2: 7000})
	t.Register(define.POSE_RELAXED, map[int]int32{1: -1000, 2: 3000})
	return t
}

// Register 注册或覆盖一个姿态的目标位置
func (t *PoseTable) Register(pose define.Pose, positions map[int]int32) {
	targets := make([]define.ActuatorTarget, 0, len(positions))
	for id, pos := range positions {
		targets = append(targets, define.ActuatorTarget{ActuatorID: id, Position: pos})
	}
	slices.SortFunc(targets, func(a, b define.ActuatorTarget) int { return a.ActuatorID - b.ActuatorID })
	t.targets[pose] = targets
}

// Targets 获取姿态对应的目标位置（按执行器 ID 排序）
func (t *PoseTable) Targets(pose define.Pose) ([]define.ActuatorTarget, bool) {
	targets, ok := t.targets[pose]
	return slices.Clone(targets), ok
}

// Poses 获取所有已注册姿态名称
func (t *PoseTable) Poses() []string {
	names := make([]string, 0, len(t.targets))
	for p := range t.targets {
		names = append(names, p.String())
	}
	slices.Sort(names)
	return names
}
