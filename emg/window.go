package emg

import (
	"fmt"
	"math"
	"sync"
)

// Sample 一次采样的各通道读数（Myo 为 8 通道）
type Sample []float64

// Window 按时间顺序（旧→新）排列的定长采样序列
type Window []Sample

// Flatten 将窗口展开为分类用的特征向量
func (w Window) Flatten() []float64 {
	if len(w) == 0 {
		return nil
	}
	out := make([]float64, 0, len(w)*len(w[0]))
	for _, s := range w {
		out = append(out, s...)
	}
	return out
}

// WindowParams 根据窗口时长、采样率与重叠比例计算窗口大小和步长
func WindowParams(durationMs, sampleRateHz, overlap float64) (size, stride int, err error) {
	if overlap < 0 || overlap >= 1 {
		return 0, 0, fmt.Errorf("重叠比例必须在 [0, 1) 之间：%v", overlap)
	}
	size = int(math.Round(durationMs / 1000 * sampleRateHz))
	stride = int(math.Round(float64(size) * (1 - overlap)))
	if size < 1 || stride < 1 {
		return 0, 0, fmt.Errorf("窗口参数无效：size=%d stride=%d", size, stride)
	}
	return size, stride, nil
}

// WindowBuffer 定长环形缓冲区，每累计 stride 个新采样输出一个完整窗口。
//
// Add 只允许一个生产者 goroutine 调用；emit 回调在锁外执行，
// 因此回调耗时不会阻塞 Stats 等读取方。
type WindowBuffer struct {
	mu        sync.Mutex
	size      int
	stride    int
	ring      []Sample
	head      int // 下一个写入位置
	count     int
	sinceEmit int
	emitted   uint64
	emit      func(Window)
}

// NewWindowBuffer 创建滑动窗口缓冲区
func NewWindowBuffer(size, stride int, emit func(Window)) (*WindowBuffer, error) {
	if size < 1 || stride < 1 {
		return nil, fmt.Errorf("窗口大小和步长必须 ≥ 1：size=%d stride=%d", size, stride)
	}
	return &WindowBuffer{
		size:   size,
		stride: stride,
		ring:   make([]Sample, size),
		emit:   emit,
	}, nil
}

// Add 追加一个采样，满足条件时输出当前窗口
func (b *WindowBuffer) Add(s Sample) {
	sample := append(Sample(nil), s...)

	b.mu.Lock()
	b.ring[b.head] = sample
	b.head = (b.head + 1) % b.size
	if b.count < b.size {
		b.count++
	}
	b.sinceEmit++

	var window Window
	if b.count == b.size && b.sinceEmit >= b.stride {
		window = make(Window, b.size)
		for i := 0; i < b.size; i++ {
			window[i] = b.ring[(b.head+i)%b.size]
		}
		b.sinceEmit = 0
		b.emitted++
	}
	b.mu.Unlock()

	if window != nil && b.emit != nil {
		b.emit(window)
	}
}

// Size 窗口大小
func (b *WindowBuffer) Size() int { return b.size }

// Stride 步长
func (b *WindowBuffer) Stride() int { return b.stride }

// BufferStats 缓冲区统计
type BufferStats struct {
	Buffered int    `json:"buffered"`
	Emitted  uint64 `json:"emitted"`
}

// Stats 返回当前缓冲数量与已输出窗口数
func (b *WindowBuffer) Stats() BufferStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BufferStats{Buffered: b.count, Emitted: b.emitted}
}
