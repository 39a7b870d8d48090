package classifier

import (
	"errors"
	"testing"

	"myohand/define"
	"myohand/emg"
	"myohand/posestate"
)

// scriptedPredictor 按顺序返回预设结果
type scriptedPredictor struct {
	steps []func() (int, error)
	calls int
	ready bool
}

func (p *scriptedPredictor) Ready() bool { return p.ready }

func (p *scriptedPredictor) Predict([]float64) (int, error) {
	step := p.steps[p.calls%len(p.steps)]
	p.calls++
	return step()
}

func label(l int) func() (int, error) { return func() (int, error) { return l, nil } }

func TestUnfitPredictorYieldsIdlePose(t *testing.T) {
	ch := posestate.New(define.IdlePose)
	a := NewAdapter(&scriptedPredictor{ready: false, steps: []func() (int, error){label(1)}}, ch, 1)
	if got := a.Classify(make([]float64, 8)); got != define.IdlePose {
		t.Fatalf("Classify() = %v, want idle", got)
	}
	if ch.Read() != define.IdlePose {
		t.Fatalf("channel = %v, want idle", ch.Read())
	}

	nilAdapter := NewAdapter(nil, nil, 1)
	if got := nilAdapter.Classify(nil); got != define.IdlePose {
		t.Fatalf("nil predictor Classify() = %v", got)
	}
}

// 窗口 W-1 成功得到 FIST，窗口 W 失败时通道仍为 FIST
func TestFailSoftKeepsLastKnownGood(t *testing.T) {
	ch := posestate.New(define.IdlePose)
	p := &scriptedPredictor{ready: true, steps: []func() (int, error){
		label(int(define.POSE_FIST)),
		func() (int, error) { return 0, errors.New("bad window") },
		func() (int, error) { panic("model exploded") },
		label(42),
	}}
	a := NewAdapter(p, ch, 1)
	window := emg.Window{{1, 2, 3, 4, 5, 6, 7, 8}}

	if got := a.ClassifyWindow(window); got != define.POSE_FIST {
		t.Fatalf("first window = %v, want fist", got)
	}
	for i := 0; i < 3; i++ {
		if got := a.ClassifyWindow(window); got != define.POSE_FIST {
			t.Fatalf("failing window %d returned %v, want fist", i, got)
		}
		if ch.Read() != define.POSE_FIST {
			t.Fatalf("channel changed to %v after failure %d", ch.Read(), i)
		}
	}

	if a.Failures() != 3 {
		t.Fatalf("Failures() = %d, want 3", a.Failures())
	}
	st := a.Stats()
	if st.Classified != 1 || st.LastPose != "fist" || !st.Ready {
		t.Fatalf("Stats() = %+v", st)
	}
	if ch.Seq() != 1 {
		t.Fatalf("channel written %d times, want 1", ch.Seq())
	}
}

func TestAdapterStartsFromChannelValue(t *testing.T) {
	ch := posestate.New(define.POSE_FIST)
	p := &scriptedPredictor{ready: true, steps: []func() (int, error){
		func() (int, error) { return 0, errors.New("boom") },
	}}
	a := NewAdapter(p, ch, 1)
	if got := a.Classify([]float64{0}); got != define.POSE_FIST {
		t.Fatalf("Classify() = %v, want retained fist", got)
	}
}

func TestMajorityVoteSuppressesStrayLabel(t *testing.T) {
	relaxed, fist := label(int(define.POSE_RELAXED)), label(int(define.POSE_FIST))
	ch := posestate.New(define.IdlePose)
	p := &scriptedPredictor{ready: true, steps: []func() (int, error){
		relaxed, relaxed, relaxed, fist, relaxed, relaxed,
		fist, fist, fist, fist,
	}}
	a := NewAdapter(p, ch, 6)

	// 放松窗口中夹杂的一次握拳不会改变通道
	for i := 0; i < 6; i++ {
		if got := a.Classify([]float64{0}); got != define.POSE_RELAXED {
			t.Fatalf("window %d = %v, want relaxed", i, got)
		}
		if ch.Read() != define.POSE_RELAXED {
			t.Fatalf("channel flipped to %v at window %d", ch.Read(), i)
		}
	}

	// 历史：R R F R R + F → 4:2 仍为放松；再来 F → 3:3 平票保持放松；再来 F → 握拳占多数
	want := []define.Pose{define.POSE_RELAXED, define.POSE_RELAXED, define.POSE_FIST, define.POSE_FIST}
	for i, w := range want {
		if got := a.Classify([]float64{0}); got != w {
			t.Fatalf("sustained fist window %d = %v, want %v", i, got, w)
		}
	}
	if ch.Read() != define.POSE_FIST {
		t.Fatalf("channel = %v, want fist", ch.Read())
	}
}
