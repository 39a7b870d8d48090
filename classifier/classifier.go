package classifier

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"myohand/define"
	"myohand/emg"
	"myohand/posestate"
)

// Predictor 不透明的分类模型，只需提供预测能力
type Predictor interface {
	// Predict 对特征向量给出类别标签
	Predict(features []float64) (int, error)
	// Ready 模型是否已载入训练参数
	Ready() bool
}

// Adapter 将窗口转换为姿态并写入姿态通道。
//
// 单次分类失败（错误、panic、未知标签）只计数，不向调用方传播，
// 并保留上一次成功的姿态，避免瞬时坏窗口造成执行器抖动。
// 发布的姿态是最近 history 次成功分类的多数票。
// Classify 只能由采集 goroutine 调用。
type Adapter struct {
	predictor Predictor
	channel   *posestate.Channel

	history []define.Pose // 环形缓冲
	next    int
	filled  int

	last       atomic.Int32
	classified atomic.Uint64
	failures   atomic.Uint64
}

// NewAdapter 创建分类适配器；predictor 可以为 nil（视为未就绪）。
// history 为多数票平滑的窗口数，小于 1 时按 1 处理（不平滑）。
func NewAdapter(predictor Predictor, channel *posestate.Channel, history int) *Adapter {
	a := &Adapter{
		predictor: predictor,
		channel:   channel,
		history:   make([]define.Pose, max(history, 1)),
	}
	initial := define.IdlePose
	if channel != nil {
		initial = channel.Read()
	}
	a.last.Store(int32(initial))
	return a
}

// ClassifyWindow 展开窗口后分类
func (a *Adapter) ClassifyWindow(w emg.Window) define.Pose {
	return a.Classify(w.Flatten())
}

// Classify 对单个采样或已展开的窗口进行分类
func (a *Adapter) Classify(features []float64) define.Pose {
	if a.predictor == nil || !a.predictor.Ready() {
		a.next, a.filled = 0, 0
		a.publish(define.IdlePose)
		return define.IdlePose
	}

	pose, err := a.predict(features)
	if err != nil {
		n := a.failures.Add(1)
		slog.Debug("⚠️ 本周期分类失败，保留上一姿态",
			"error", err,
			"failures", n,
			"pose", define.Pose(a.last.Load()).String())
		return define.Pose(a.last.Load())
	}

	smoothed := a.vote(pose)
	a.publish(smoothed)
	return smoothed
}

// vote 记录本次结果并返回历史中的多数姿态；
// 平票时若当前姿态在并列之中则保持不变，否则取最近出现的一个
func (a *Adapter) vote(p define.Pose) define.Pose {
	a.history[a.next] = p
	a.next = (a.next + 1) % len(a.history)
	a.filled = min(a.filled+1, len(a.history))

	counts := make(map[define.Pose]int, len(define.KnownPoses))
	latest := make(map[define.Pose]int, len(define.KnownPoses))
	for i := 0; i < a.filled; i++ {
		// i 为 0 时是最早的记录
		idx := (a.next - a.filled + i + len(a.history)) % len(a.history)
		counts[a.history[idx]]++
		latest[a.history[idx]] = i
	}

	current := define.Pose(a.last.Load())
	best, bestCount := p, 0
	for pose, n := range counts {
		switch {
		case n > bestCount:
			best, bestCount = pose, n
		case n == bestCount && latest[pose] > latest[best]:
			best = pose
		}
	}
	if counts[current] == bestCount {
		return current
	}
	return best
}

func (a *Adapter) predict(features []float64) (pose define.Pose, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("分类模型 panic：%v", r)
		}
	}()

	label, err := a.predictor.Predict(features)
	if err != nil {
		return 0, err
	}
	pose = define.Pose(label)
	if !pose.Valid() {
		return 0, fmt.Errorf("未知的分类标签：%d", label)
	}
	return pose, nil
}

func (a *Adapter) publish(p define.Pose) {
	a.last.Store(int32(p))
	a.classified.Add(1)
	if a.channel != nil {
		a.channel.Write(p)
	}
}

// Stats 分类统计
type Stats struct {
	Ready      bool   `json:"ready"`
	Classified uint64 `json:"classified"`
	Failures   uint64 `json:"failures"`
	LastPose   string `json:"lastPose"`
}

// Stats 返回分类统计信息
func (a *Adapter) Stats() Stats {
	return Stats{
		Ready:      a.predictor != nil && a.predictor.Ready(),
		Classified: a.classified.Load(),
		Failures:   a.failures.Load(),
		LastPose:   define.Pose(a.last.Load()).String(),
	}
}

// Failures 返回累计分类失败次数
func (a *Adapter) Failures() uint64 { return a.failures.Load() }
