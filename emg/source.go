package emg

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Source 肌电信号来源，逐个推送采样直到 ctx 结束或数据耗尽
type Source interface {
	Run(ctx context.Context, sink func(Sample)) error
}

// SimulatedSource 以固定采样率生成模拟肌电数据，可在放松/握拳两种包络间切换
type SimulatedSource struct {
	channels int
	interval time.Duration
	fist     atomic.Bool
}

// NewSimulatedSource 创建模拟信号源
func NewSimulatedSource(channels int, sampleRateHz float64) *SimulatedSource {
	if channels <= 0 {
		channels = 8
	}
	interval := time.Second
	if sampleRateHz > 0 {
		interval = time.Duration(float64(time.Second) / sampleRateHz)
	}
	return &SimulatedSource{channels: channels, interval: interval}
}

// SetFist 切换模拟肌肉状态
func (s *SimulatedSource) SetFist(fist bool) { s.fist.Store(fist) }

// Next 生成一个采样
func (s *SimulatedSource) Next() Sample {
	base, spread := 10, 20
	if s.fist.Load() {
		base, spread = 60, 35
	}
	sample := make(Sample, s.channels)
	for i := range sample {
		sample[i] = float64(base + rand.Intn(spread+1))
	}
	return sample
}

func (s *SimulatedSource) Run(ctx context.Context, sink func(Sample)) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("📡 模拟肌电信号源已启动", "channels", s.channels, "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sink(s.Next())
		}
	}
}

// ReplaySource 回放录制的肌电数据，每行一个采样，逗号或空白分隔
type ReplaySource struct {
	r        io.Reader
	channels int
	interval time.Duration // 为 0 时不限速
}

// NewReplaySource 创建回放信号源
func NewReplaySource(r io.Reader, channels int, sampleRateHz float64) *ReplaySource {
	var interval time.Duration
	if sampleRateHz > 0 {
		interval = time.Duration(float64(time.Second) / sampleRateHz)
	}
	return &ReplaySource{r: r, channels: channels, interval: interval}
}

func (s *ReplaySource) Run(ctx context.Context, sink func(Sample)) error {
	scanner := bufio.NewScanner(s.r)
	line := 0
	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		sample, err := parseSample(text, s.channels)
		if err != nil {
			return fmt.Errorf("第 %d 行解析失败：%w", line, err)
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return nil
			case <-tick:
			}
		} else if ctx.Err() != nil {
			return nil
		}
		sink(sample)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("读取回放数据失败：%w", err)
	}
	return nil
}

func parseSample(text string, channels int) (Sample, error) {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == ';'
	})
	if channels > 0 && len(fields) != channels {
		return nil, fmt.Errorf("期望 %d 个通道，实际 %d 个", channels, len(fields))
	}
	sample := make(Sample, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("通道 %d 数值无效：%w", i, err)
		}
		sample[i] = v
	}
	return sample, nil
}
