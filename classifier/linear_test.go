package classifier

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"myohand/define"
	"myohand/posestate"
)

func TestLinearModelArgmax(t *testing.T) {
	// 特征 0 高 → 放松，特征 1 高 → 握拳
	m, err := NewLinearModel([]int{0, 1}, [][]float64{{1, 0}, {0, 1}}, []float64{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Predict([]float64{5, 1}); got != 0 {
		t.Fatalf("Predict relaxed = %d", got)
	}
	if got, _ := m.Predict([]float64{1, 5}); got != 1 {
		t.Fatalf("Predict fist = %d", got)
	}
	if _, err := m.Predict([]float64{1, 2, 3}); err == nil {
		t.Fatal("expected feature length error")
	}
}

func TestLinearModelStandardization(t *testing.T) {
	m, _ := NewLinearModel([]int{0, 1}, [][]float64{{-1}, {1}}, []float64{0, 0})
	if err := m.SetStandardization([]float64{50}, []float64{10}); err != nil {
		t.Fatal(err)
	}
	if got, _ := m.Predict([]float64{40}); got != 0 {
		t.Fatalf("below mean should be relaxed, got %d", got)
	}
	if got, _ := m.Predict([]float64{70}); got != 1 {
		t.Fatalf("above mean should be fist, got %d", got)
	}
	if err := m.SetStandardization([]float64{1, 2}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestNewLinearModelValidates(t *testing.T) {
	if _, err := NewLinearModel(nil, nil, nil); err == nil {
		t.Fatal("expected error for empty model")
	}
	if _, err := NewLinearModel([]int{0}, [][]float64{{1}, {2}}, []float64{0, 0}); err == nil {
		t.Fatal("expected label count error")
	}
	if _, err := NewLinearModel([]int{0, 1}, [][]float64{{1, 2}, {3}}, []float64{0, 0}); err == nil {
		t.Fatal("expected ragged weights error")
	}
}

func TestLoadLinearModelDrivesAdapter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.yaml")
	modelYAML := strings.TrimSpace(`
labels: [0, 1]
weights:
  - [-1, -1]
  - [1, 1]
bias: [0, 0]
mean: [40, 40]
scale: [10, 10]
`)
	if err := os.WriteFile(path, []byte(modelYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadLinearModel(path)
	if err != nil {
		t.Fatalf("LoadLinearModel: %v", err)
	}
	if m.Features() != 2 {
		t.Fatalf("Features() = %d", m.Features())
	}

	ch := posestate.New(define.IdlePose)
	a := NewAdapter(m, ch, 1)
	if got := a.Classify([]float64{80, 75}); got != define.POSE_FIST {
		t.Fatalf("Classify = %v, want fist", got)
	}
	if ch.Read() != define.POSE_FIST {
		t.Fatalf("channel = %v", ch.Read())
	}
	// 特征长度不符按分类失败处理
	if got := a.Classify([]float64{1}); got != define.POSE_FIST || a.Failures() != 1 {
		t.Fatalf("mismatched features: pose %v failures %d", got, a.Failures())
	}
}

func TestLoadLinearModelMissingFile(t *testing.T) {
	_, err := LoadLinearModel(filepath.Join(t.TempDir(), "absent.yaml"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
	var unfit *LinearModel
	if unfit.Ready() {
		t.Fatal("nil model must not be ready")
	}
}
