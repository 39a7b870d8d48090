package emg

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestReplaySourceParsesLines(t *testing.T) {
	data := `# recorded fist
1,2,3,4,5,6,7,8

9 10 11 12 13 14 15 16
`
	var got []Sample
	src := NewReplaySource(strings.NewReader(data), 8, 0)
	if err := src.Run(context.Background(), func(s Sample) { got = append(got, s) }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d samples, want 2", len(got))
	}
	if got[1][0] != 9 || got[1][7] != 16 {
		t.Fatalf("second sample = %v", got[1])
	}
}

func TestReplaySourceRejectsWrongWidth(t *testing.T) {
	src := NewReplaySource(strings.NewReader("1,2,3\n"), 8, 0)
	if err := src.Run(context.Background(), func(Sample) {}); err == nil {
		t.Fatal("expected channel count error")
	}
}

func TestSimulatedSourceEnvelope(t *testing.T) {
	src := NewSimulatedSource(8, 1000)
	for i := 0; i < 50; i++ {
		for _, v := range src.Next() {
			if v < 10 || v > 30 {
				t.Fatalf("relaxed sample out of envelope: %v", v)
			}
		}
	}
	src.SetFist(true)
	for _, v := range src.Next() {
		if v < 60 {
			t.Fatalf("fist sample below envelope: %v", v)
		}
	}
}

func TestSimulatedSourceStopsOnCancel(t *testing.T) {
	src := NewSimulatedSource(8, 1000)
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	done := make(chan error, 1)
	go func() {
		done <- src.Run(ctx, func(Sample) { count++ })
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
