package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"myohand/config"
	"myohand/define"
)

// OPERATING_MODE_EXTENDED_POSITION 多圈位置控制模式
const OPERATING_MODE_EXTENDED_POSITION byte = 4

// SetupOptions 启动时对每个执行器执行一次的配置
type SetupOptions struct {
	OperatingMode       byte
	ProfileAcceleration uint32
	ProfileVelocity     uint32
}

// Dispatcher 对执行器下发有界指令并对设备结果进行分类。
//
// 同一执行器的调用按顺序串行执行（物理总线为单线程），
// 不同执行器之间互不阻塞。
type Dispatcher struct {
	bus       Bus
	actuators *ActuatorManager
	faults    FaultStore
	now       func() time.Time
}

// NewDispatcher 创建分发器；store 为 nil 时故障仅保存在内存中
func NewDispatcher(bus Bus, cfgs []config.ActuatorConfig, store FaultStore) (*Dispatcher, error) {
	actuators, err := NewActuatorManager(cfgs)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{bus: bus, actuators: actuators, faults: store, now: time.Now}

	if store != nil {
		faults, err := store.Faults()
		if err != nil {
			return nil, fmt.Errorf("读取故障记录失败：%w", err)
		}
		for _, f := range faults {
			a, err := actuators.get(f.ActuatorID)
			if err != nil {
				continue
			}
			fault := f
			a.fault = &fault
			slog.Warn("⛔ 执行器存在未复位的故障记录", "actuator", f.ActuatorID, "reason", f.Reason)
		}
	}
	return d, nil
}

// Dispatch 下发目标位置：越界静默截断，与上次下发相同则不访问设备
func (d *Dispatcher) Dispatch(ctx context.Context, target define.ActuatorTarget) (Result, error) {
	a, err := d.actuators.get(target.ActuatorID)
	if err != nil {
		return Classify(err), err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fault != nil {
		return ResultHardwareFault, fmt.Errorf("%w：执行器 %d（%s）", ErrActuatorFaulted, a.cfg.ID, a.fault.Reason)
	}

	pos := a.clamp(target.Position)
	if pos != target.Position {
		slog.Debug("✂️ 目标位置越界，已截断", "actuator", a.cfg.ID, "requested", target.Position, "clamped", pos)
	}
	if a.hasLast && a.last == pos {
		return ResultSuccess, nil
	}

	err = d.bus.SetGoalPosition(ctx, a.cfg.ID, pos)
	result := d.record(a, err)
	if result != ResultSuccess {
		return result, fmt.Errorf("执行器 %d 写入目标位置 %d 失败：%w", a.cfg.ID, pos, err)
	}

	a.last, a.hasLast = pos, true
	a.writes++
	slog.Debug("🎯 目标位置已下发", "actuator", a.cfg.ID, "position", pos)
	return ResultSuccess, nil
}

// ReadPosition 读取执行器当前位置，结果分类与写入一致
func (d *Dispatcher) ReadPosition(ctx context.Context, id int) (int32, Result, error) {
	a, err := d.actuators.get(id)
	if err != nil {
		return 0, Classify(err), err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	pos, err := d.bus.ReadPosition(ctx, id)
	if result := d.record(a, err); result != ResultSuccess {
		return 0, result, fmt.Errorf("读取执行器 %d 当前位置失败：%w", id, err)
	}
	return pos, ResultSuccess, nil
}

// Hold 读取当前位置并将其设为目标位置，使执行器停在原地
func (d *Dispatcher) Hold(ctx context.Context, id int) (int32, Result, error) {
	a, err := d.actuators.get(id)
	if err != nil {
		return 0, Classify(err), err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.fault != nil {
		return 0, ResultHardwareFault, fmt.Errorf("%w：执行器 %d（%s）", ErrActuatorFaulted, id, a.fault.Reason)
	}

	current, err := d.bus.ReadPosition(ctx, id)
	if result := d.record(a, err); result != ResultSuccess {
		return 0, result, fmt.Errorf("保持位置前读取执行器 %d 失败：%w", id, err)
	}

	pos := a.clamp(current)
	err = d.bus.SetGoalPosition(ctx, id, pos)
	if result := d.record(a, err); result != ResultSuccess {
		return 0, result, fmt.Errorf("执行器 %d 保持位置 %d 失败：%w", id, pos, err)
	}

	a.last, a.hasLast = pos, true
	a.writes++
	slog.Info("✋ 执行器已停在当前位置", "actuator", id, "position", pos)
	return pos, ResultSuccess, nil
}

// record 统计并处理一次总线操作结果；调用方需持有 a.mu
func (d *Dispatcher) record(a *actuator, err error) Result {
	result := Classify(err)
	switch result {
	case ResultCommunicationFailure:
		a.commFailures++
		slog.Warn("📶 总线通信失败", "actuator", a.cfg.ID, "error", err)
	case ResultHardwareFault:
		fault := Fault{ActuatorID: a.cfg.ID, Reason: err.Error(), At: d.now()}
		var hw *HardwareError
		if errors.As(err, &hw) {
			fault.Code = hw.Code
		}
		d.setFault(a, fault)
	}
	return result
}

// setFault 锁定执行器并持久化故障；调用方需持有 a.mu
func (d *Dispatcher) setFault(a *actuator, fault Fault) {
	a.fault = &fault
	slog.Error("⛔ 执行器进入故障锁定，需要人工复位", "actuator", a.cfg.ID, "reason", fault.Reason)
	if d.faults != nil {
		if err := d.faults.RecordFault(fault); err != nil {
			slog.Error("❌ 故障记录持久化失败", "actuator", a.cfg.ID, "error", err)
		}
	}
}

// MarkFaulted 将执行器标记为故障（例如通信重试耗尽）
func (d *Dispatcher) MarkFaulted(id int, reason string) error {
	a, err := d.actuators.get(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fault == nil {
		d.setFault(a, Fault{ActuatorID: id, Reason: reason, At: d.now()})
	}
	return nil
}

// ResetFault 重新初始化执行器并解除故障锁定；下一条指令会重新下发
func (d *Dispatcher) ResetFault(ctx context.Context, id int, opts SetupOptions) error {
	a, err := d.actuators.get(id)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := d.setupActuator(ctx, a, opts); err != nil {
		_ = d.bus.SetTorque(ctx, id, false)
		return fmt.Errorf("执行器 %d 复位失败：%w", id, err)
	}

	a.fault = nil
	a.hasLast = false
	if d.faults != nil {
		if err := d.faults.ClearFault(id); err != nil {
			slog.Warn("⚠️ 清除故障记录失败", "actuator", id, "error", err)
		}
	}
	slog.Info("✅ 执行器故障已复位", "actuator", id)
	return nil
}

// Setup 启动时配置所有执行器；任何一步失败都会释放全部力矩，
// 不会留下力矩已使能但目标位置不确定的执行器。
func (d *Dispatcher) Setup(ctx context.Context, opts SetupOptions) error {
	for _, id := range d.actuators.ids {
		a := d.actuators.actuators[id]
		a.mu.Lock()
		if a.fault != nil {
			slog.Warn("⏭️ 跳过故障执行器的初始化", "actuator", id, "reason", a.fault.Reason)
			a.mu.Unlock()
			continue
		}
		err := d.setupActuator(ctx, a, opts)
		a.mu.Unlock()

		if err != nil {
			if shutdownErr := d.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
				slog.Error("❌ 初始化失败后释放力矩出错", "error", shutdownErr)
			}
			return fmt.Errorf("执行器 %d 初始化失败：%w", id, err)
		}
		slog.Info("✅ 执行器就绪", "actuator", id, "mode", opts.OperatingMode)
	}
	return nil
}

func (d *Dispatcher) setupActuator(ctx context.Context, a *actuator, opts SetupOptions) error {
	id := a.cfg.ID
	if err := d.bus.SetTorque(ctx, id, false); err != nil {
		return fmt.Errorf("释放力矩：%w", err)
	}
	if err := d.bus.SetOperatingMode(ctx, id, opts.OperatingMode); err != nil {
		return fmt.Errorf("设置运行模式：%w", err)
	}
	if err := d.bus.SetProfile(ctx, id, opts.ProfileAcceleration, opts.ProfileVelocity); err != nil {
		return fmt.Errorf("设置运动曲线：%w", err)
	}
	if err := d.bus.SetTorque(ctx, id, true); err != nil {
		return fmt.Errorf("使能力矩：%w", err)
	}
	return nil
}

// Shutdown 释放所有执行器力矩
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	var errs []error
	for _, id := range d.actuators.ids {
		a := d.actuators.actuators[id]
		a.mu.Lock()
		if err := d.bus.SetTorque(ctx, id, false); err != nil {
			errs = append(errs, fmt.Errorf("执行器 %d 释放力矩失败：%w", id, err))
		}
		a.hasLast = false
		a.mu.Unlock()
	}
	return errors.Join(errs...)
}

// ActuatorStatus 执行器状态快照
type ActuatorStatus struct {
	ID           int    `json:"id"`
	Name         string `json:"name,omitempty"`
	Min          int32  `json:"min"`
	Max          int32  `json:"max"`
	LastPosition *int32 `json:"lastPosition,omitempty"`
	Faulted      bool   `json:"faulted"`
	Fault        *Fault `json:"fault,omitempty"`
	Writes       uint64 `json:"writes"`
	CommFailures uint64 `json:"commFailures"`
}

// Snapshot 返回所有执行器的状态
func (d *Dispatcher) Snapshot() []ActuatorStatus {
	out := make([]ActuatorStatus, 0, len(d.actuators.ids))
	for _, id := range d.actuators.ids {
		a := d.actuators.actuators[id]
		a.mu.Lock()
		st := ActuatorStatus{
			ID:           id,
			Name:         a.cfg.Name,
			Min:          a.cfg.Min,
			Max:          a.cfg.Max,
			Faulted:      a.fault != nil,
			Writes:       a.writes,
			CommFailures: a.commFailures,
		}
		if a.hasLast {
			last := a.last
			st.LastPosition = &last
		}
		if a.fault != nil {
			fault := *a.fault
			st.Fault = &fault
		}
		a.mu.Unlock()
		out = append(out, st)
	}
	return out
}

// Bounds 返回执行器的位置边界
func (d *Dispatcher) Bounds(id int) (int32, int32, error) {
	return d.actuators.Bounds(id)
}
