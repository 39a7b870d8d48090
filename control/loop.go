package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"myohand/define"
	"myohand/posestate"
)

// ErrQueueFull 事件队列已满，事件被丢弃
var ErrQueueFull = errors.New("控制事件队列已满")

// Event 控制面事件，由控制循环串行处理
type Event interface {
	apply(ctx context.Context, r *Router) (Outcome, error)
}

// ActivateEvent 设置激活标志
type ActivateEvent struct{ Active bool }

func (e ActivateEvent) apply(_ context.Context, r *Router) (Outcome, error) {
	r.SetActive(e.Active)
	return OutcomeApplied, nil
}

// ModeEvent 切换控制模式
type ModeEvent struct{ Mode define.ControlMode }

func (e ModeEvent) apply(_ context.Context, r *Router) (Outcome, error) {
	r.SetMode(e.Mode)
	return OutcomeApplied, nil
}

// IntentEvent 非轮询来源的意图（备用传感器、手动）
type IntentEvent struct{ Intent Intent }

func (e IntentEvent) apply(ctx context.Context, r *Router) (Outcome, error) {
	return r.Handle(ctx, e.Intent)
}

// ResetFaultEvent 人工复位执行器故障
type ResetFaultEvent struct{ ActuatorID int }

func (e ResetFaultEvent) apply(ctx context.Context, r *Router) (Outcome, error) {
	return OutcomeApplied, r.ResetFault(ctx, e.ActuatorID)
}

type result struct {
	outcome Outcome
	err     error
}

type envelope struct {
	event Event
	reply chan result
}

// Status 控制循环的状态快照，可在任意 goroutine 中读取
type Status struct {
	Active        bool        `json:"active"`
	Mode          string      `json:"mode"`
	Pose          string      `json:"pose"`
	PoseUpdates   uint64      `json:"poseUpdates"`
	Router        RouterStats `json:"router"`
	DroppedEvents uint64      `json:"droppedEvents"`
	LastError     string      `json:"lastError,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Loop 控制循环：定时轮询姿态通道，并串行处理控制面事件。
// 仲裁器与路由器的全部状态只在 Run 所在的 goroutine 中被修改。
type Loop struct {
	channel  *posestate.Channel
	router   *Router
	interval time.Duration

	events  chan envelope
	dropped atomic.Uint64
	status  atomic.Pointer[Status]

	lastError string
}

// NewLoop 创建控制循环
func NewLoop(channel *posestate.Channel, router *Router, interval time.Duration, queueSize int) *Loop {
	if queueSize < 1 {
		queueSize = 1
	}
	l := &Loop{
		channel:  channel,
		router:   router,
		interval: interval,
		events:   make(chan envelope, queueSize),
	}
	l.publish()
	return l
}

// Submit 非阻塞投递事件；队列已满时丢弃并计数
func (l *Loop) Submit(ev Event) bool {
	select {
	case l.events <- envelope{event: ev}:
		return true
	default:
		n := l.dropped.Add(1)
		slog.Warn("⚠️ 控制事件队列已满，事件被丢弃", "event", fmt.Sprintf("%T", ev), "dropped", n)
		return false
	}
}

// Request 投递事件并等待处理结果；意图事件返回路由结果，其余事件返回 OutcomeApplied
func (l *Loop) Request(ctx context.Context, ev Event) (Outcome, error) {
	reply := make(chan result, 1)
	select {
	case l.events <- envelope{event: ev, reply: reply}:
	default:
		l.dropped.Add(1)
		return 0, ErrQueueFull
	}
	select {
	case res := <-reply:
		return res.outcome, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Status 返回最近一次发布的状态快照
func (l *Loop) Status() Status {
	return *l.status.Load()
}

// Run 运行控制循环，直到 ctx 取消
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	slog.Info("🔄 控制循环已启动", "interval", l.interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("🛑 控制循环已停止")
			return nil
		case env := <-l.events:
			outcome, err := env.event.apply(ctx, l.router)
			l.record(err)
			l.publish()
			if env.reply != nil {
				env.reply <- result{outcome: outcome, err: err}
			}
		case <-ticker.C:
			l.poll(ctx)
		}
	}
}

// poll 读取最新姿态并作为分类器意图路由
func (l *Loop) poll(ctx context.Context) {
	_, err := l.router.Handle(ctx, PoseIntent{Pose: l.channel.Read()})
	l.record(err)
	l.publish()
}

func (l *Loop) record(err error) {
	if err != nil {
		l.lastError = err.Error()
		slog.Warn("⚠️ 控制指令执行失败", "error", err)
	}
}

func (l *Loop) publish() {
	arbiter := l.router.Arbiter()
	l.status.Store(&Status{
		Active:        arbiter.Active(),
		Mode:          arbiter.Mode().String(),
		Pose:          l.channel.Read().String(),
		PoseUpdates:   l.channel.Seq(),
		Router:        l.router.Stats(),
		DroppedEvents: l.dropped.Load(),
		LastError:     l.lastError,
		UpdatedAt:     time.Now(),
	})
}
