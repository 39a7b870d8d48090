package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"myohand/define"
	"myohand/device"
)

// ErrRetriesExhausted 通信失败重试次数用尽，执行器已被锁定
var ErrRetriesExhausted = errors.New("通信重试次数已用尽")

// ErrUnmappedPose 姿态在映射表中没有对应的目标位置
var ErrUnmappedPose = errors.New("姿态没有配置目标位置")

// Dispatcher 路由器依赖的执行器操作，由 device.Dispatcher 实现
type Dispatcher interface {
	Dispatch(ctx context.Context, target define.ActuatorTarget) (device.Result, error)
	Hold(ctx context.Context, id int) (int32, device.Result, error)
	Bounds(id int) (int32, int32, error)
	MarkFaulted(id int, reason string) error
	ResetFault(ctx context.Context, id int, opts device.SetupOptions) error
}

// IntentSink 接收已成功下发的目标位置（已截断到边界内），例如镜像到 MQTT。
// 在控制 goroutine 中调用，实现不应阻塞。
type IntentSink interface {
	PublishTarget(target define.ActuatorTarget) error
}

// Outcome 一次路由的结果
type Outcome int

const (
	OutcomeInactive   Outcome = iota // 未激活，丢弃
	OutcomeWrongMode                 // 来源不是当前模式，丢弃
	OutcomeUnchanged                 // 与上次相同，不再下发
	OutcomeDispatched                // 已转发给执行器
	OutcomeApplied                   // 控制面事件（激活、模式、复位）已生效
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInactive:
		return "inactive"
	case OutcomeWrongMode:
		return "wrong_mode"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeDispatched:
		return "dispatched"
	case OutcomeApplied:
		return "applied"
	}
	return "unknown"
}

// RetryPolicy 通信失败的重试策略
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// RouterOptions 路由器配置
type RouterOptions struct {
	Retry RetryPolicy
	Setup device.SetupOptions // 故障复位时重新执行的初始化
	Sink  IntentSink
}

// RouterStats 各类结果的累计次数
type RouterStats struct {
	Inactive   uint64 `json:"inactive"`
	WrongMode  uint64 `json:"wrongMode"`
	Unchanged  uint64 `json:"unchanged"`
	Dispatched uint64 `json:"dispatched"`
	Failures   uint64 `json:"failures"`
}

// Router 按仲裁结果过滤意图，经姿态映射后交给执行器分发器。
// 非并发安全，只在控制循环的 goroutine 中使用。
type Router struct {
	arbiter    *Arbiter
	poses      *device.PoseTable
	dispatcher Dispatcher
	opts       RouterOptions

	// 每个来源最近一次被接受的姿态，用于变化检测
	memo map[define.ControlMode]define.Pose
	// 手动模式下每个执行器最近一次被接受的目标
	manualMemo map[int]int32

	stats RouterStats
}

// NewRouter 创建路由器
func NewRouter(arbiter *Arbiter, poses *device.PoseTable, dispatcher Dispatcher, opts RouterOptions) *Router {
	if opts.Retry.MaxAttempts < 1 {
		opts.Retry.MaxAttempts = 1
	}
	return &Router{
		arbiter:    arbiter,
		poses:      poses,
		dispatcher: dispatcher,
		opts:       opts,
		memo:       make(map[define.ControlMode]define.Pose),
		manualMemo: make(map[int]int32),
	}
}

// Arbiter 返回路由器使用的仲裁器
func (r *Router) Arbiter() *Arbiter { return r.arbiter }

// Stats 返回累计统计
func (r *Router) Stats() RouterStats { return r.stats }

// ResetMemo 清空变化检测记录，下一个意图一定会被下发
func (r *Router) ResetMemo() {
	clear(r.memo)
	clear(r.manualMemo)
}

// SetActive 设置激活标志；从未激活变为激活时清空记录，使当前意图重新下发
func (r *Router) SetActive(active bool) bool {
	changed := r.arbiter.SetActive(active)
	if changed {
		if active {
			r.ResetMemo()
		}
		slog.Info("🔔 激活状态已变更", "active", active)
	}
	return changed
}

// SetMode 切换控制模式；新模式下的第一个意图一定会被下发
func (r *Router) SetMode(mode define.ControlMode) bool {
	changed := r.arbiter.SetMode(mode)
	if changed {
		r.ResetMemo()
		slog.Info("🔀 控制模式已切换", "mode", mode.String())
	}
	return changed
}

// ResetFault 复位执行器故障并清空记录
func (r *Router) ResetFault(ctx context.Context, id int) error {
	if err := r.dispatcher.ResetFault(ctx, id, r.opts.Setup); err != nil {
		return err
	}
	r.ResetMemo()
	return nil
}

// Handle 路由一个意图
func (r *Router) Handle(ctx context.Context, intent Intent) (Outcome, error) {
	if !r.arbiter.Active() {
		r.stats.Inactive++
		return OutcomeInactive, nil
	}
	if !r.arbiter.Accepts(intent.Source()) {
		r.stats.WrongMode++
		slog.Debug("🚫 非当前模式的指令已忽略", "source", intent.Source().String(), "mode", r.arbiter.Mode().String())
		return OutcomeWrongMode, nil
	}

	var err error
	switch in := intent.(type) {
	case PoseIntent:
		if r.unchanged(in.Source(), in.Pose) {
			return OutcomeUnchanged, nil
		}
		err = r.routePose(ctx, in.Source(), in.Pose)
	case AltSensorIntent:
		if r.unchanged(in.Source(), in.Pose) {
			return OutcomeUnchanged, nil
		}
		err = r.routePose(ctx, in.Source(), in.Pose)
	case ManualIntent:
		if in.Action != MANUAL_STOP {
			// 先校验执行器，未知 ID 不进入记录
			target, terr := r.manualTarget(in)
			if terr != nil {
				r.stats.Failures++
				return OutcomeDispatched, terr
			}
			if last, ok := r.manualMemo[in.ActuatorID]; ok && last == target.Position {
				r.stats.Unchanged++
				return OutcomeUnchanged, nil
			}
			r.manualMemo[in.ActuatorID] = target.Position
			err = r.forward(ctx, []define.ActuatorTarget{target})
		} else {
			delete(r.manualMemo, in.ActuatorID)
			err = r.hold(ctx, in.ActuatorID)
		}
	default:
		return OutcomeDispatched, fmt.Errorf("未知的意图类型：%T", intent)
	}

	r.stats.Dispatched++
	if err != nil {
		r.stats.Failures++
	}
	return OutcomeDispatched, err
}

func (r *Router) unchanged(source define.ControlMode, pose define.Pose) bool {
	if last, ok := r.memo[source]; ok && last == pose {
		r.stats.Unchanged++
		return true
	}
	return false
}

// routePose 记录已接受的姿态并下发映射后的目标。
// 无论下发结果如何都更新记录，故障执行器不会在每个轮询周期被反复访问。
func (r *Router) routePose(ctx context.Context, source define.ControlMode, pose define.Pose) error {
	r.memo[source] = pose
	targets, ok := r.poses.Targets(pose)
	if !ok {
		return fmt.Errorf("%w：%s", ErrUnmappedPose, pose)
	}
	slog.Info("✋ 姿态指令", "source", source.String(), "pose", pose.String(), "targets", len(targets))
	return r.forward(ctx, targets)
}

// manualTarget 将手动意图转换为边界内的目标位置
func (r *Router) manualTarget(in ManualIntent) (define.ActuatorTarget, error) {
	target := define.ActuatorTarget{ActuatorID: in.ActuatorID, Position: in.Position}
	minPos, maxPos, err := r.dispatcher.Bounds(in.ActuatorID)
	if err != nil {
		return target, err
	}
	switch {
	case in.Action == MANUAL_START && in.Direction == DIRECTION_BACKWARD:
		target.Position = minPos
	case in.Action == MANUAL_START:
		target.Position = maxPos
	default:
		target.Position = min(max(target.Position, minPos), maxPos)
	}
	return target, nil
}

// forward 按顺序下发每个目标，单个执行器失败不影响其他执行器
func (r *Router) forward(ctx context.Context, targets []define.ActuatorTarget) error {
	var errs []error
	for _, t := range targets {
		err := r.withRetry(ctx, t.ActuatorID, func() (device.Result, error) {
			return r.dispatcher.Dispatch(ctx, t)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.mirror(t)
	}
	return errors.Join(errs...)
}

func (r *Router) hold(ctx context.Context, id int) error {
	var pos int32
	err := r.withRetry(ctx, id, func() (device.Result, error) {
		held, result, err := r.dispatcher.Hold(ctx, id)
		pos = held
		return result, err
	})
	if err != nil {
		return err
	}
	r.mirror(define.ActuatorTarget{ActuatorID: id, Position: pos})
	return nil
}

// mirror 发布已成功下发的目标，位置与执行器实际收到的一致（已截断）
func (r *Router) mirror(t define.ActuatorTarget) {
	if r.opts.Sink == nil {
		return
	}
	if minPos, maxPos, err := r.dispatcher.Bounds(t.ActuatorID); err == nil {
		t.Position = min(max(t.Position, minPos), maxPos)
	}
	if err := r.opts.Sink.PublishTarget(t); err != nil {
		slog.Warn("⚠️ 指令镜像发布失败", "target", t.String(), "error", err)
	}
}

// withRetry 仅对通信失败重试；重试用尽后锁定执行器
func (r *Router) withRetry(ctx context.Context, id int, op func() (device.Result, error)) error {
	policy := r.opts.Retry
	for attempt := 1; ; attempt++ {
		result, err := op()
		switch result {
		case device.ResultSuccess:
			return nil
		case device.ResultHardwareFault:
			slog.Error("⛔ 执行器硬件故障", "actuator", id, "error", err)
			return err
		}

		if attempt >= policy.MaxAttempts {
			slog.Error("❌ 通信重试次数已用尽，锁定执行器", "actuator", id, "attempts", attempt, "error", err)
			if markErr := r.dispatcher.MarkFaulted(id, "comm"); markErr != nil {
				slog.Error("❌ 锁定执行器失败", "actuator", id, "error", markErr)
			}
			return fmt.Errorf("%w：执行器 %d：%w", ErrRetriesExhausted, id, err)
		}

		slog.Warn("🔁 通信失败，准备重试", "actuator", id, "attempt", attempt, "error", err)
		timer := time.NewTimer(policy.Backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("执行器 %d 重试被取消：%w", id, ctx.Err())
		case <-timer.C:
		}
	}
}
