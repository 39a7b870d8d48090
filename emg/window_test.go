package emg

import "testing"

func sampleOf(v float64) Sample {
	return Sample{v, v, v, v, v, v, v, v}
}

func TestWindowParams(t *testing.T) {
	cases := []struct {
		duration, rate, overlap float64
		size, stride            int
	}{
		{200, 200, 0.4, 40, 24},
		{50, 200, 0.4, 10, 6},
		{50, 200, 0, 10, 10},
		{5, 200, 0.5, 1, 1},
	}
	for _, c := range cases {
		size, stride, err := WindowParams(c.duration, c.rate, c.overlap)
		if err != nil {
			t.Fatalf("WindowParams(%v,%v,%v): %v", c.duration, c.rate, c.overlap, err)
		}
		if size != c.size || stride != c.stride {
			t.Errorf("WindowParams(%v,%v,%v) = %d,%d; want %d,%d",
				c.duration, c.rate, c.overlap, size, stride, c.size, c.stride)
		}
	}

	if _, _, err := WindowParams(1, 200, 0.4); err == nil {
		t.Error("expected error for a window shorter than one sample")
	}
	if _, _, err := WindowParams(200, 200, 1); err == nil {
		t.Error("expected error for overlap = 1")
	}
}

func TestNewWindowBufferRejectsZero(t *testing.T) {
	if _, err := NewWindowBuffer(0, 1, nil); err == nil {
		t.Fatal("expected error for size 0")
	}
	if _, err := NewWindowBuffer(4, 0, nil); err == nil {
		t.Fatal("expected error for stride 0")
	}
}

// 输出窗口数满足 floor((N-w)/k)+1，且每个窗口都是最近 w 个采样（旧→新）
func TestWindowEmissionCountAndContents(t *testing.T) {
	cases := []struct{ w, k, n int }{
		{10, 6, 10},
		{10, 6, 16},
		{10, 6, 100},
		{4, 1, 20},
		{5, 5, 23},
		{1, 1, 7},
	}
	for _, c := range cases {
		var windows []Window
		var lastIndex []int
		added := 0
		buf, err := NewWindowBuffer(c.w, c.k, func(w Window) {
			windows = append(windows, w)
			lastIndex = append(lastIndex, added)
		})
		if err != nil {
			t.Fatal(err)
		}
		for i := 1; i <= c.n; i++ {
			added = i
			buf.Add(sampleOf(float64(i)))
		}

		want := (c.n-c.w)/c.k + 1
		if len(windows) != want {
			t.Fatalf("w=%d k=%d n=%d: got %d windows, want %d", c.w, c.k, c.n, len(windows), want)
		}
		for i, win := range windows {
			if len(win) != c.w {
				t.Fatalf("window %d has %d samples, want %d", i, len(win), c.w)
			}
			newest := lastIndex[i]
			for j, s := range win {
				if got, want := s[0], float64(newest-c.w+1+j); got != want {
					t.Fatalf("w=%d k=%d window %d sample %d = %v, want %v", c.w, c.k, i, j, got, want)
				}
			}
		}
		if st := buf.Stats(); st.Emitted != uint64(want) || st.Buffered != c.w {
			t.Fatalf("stats = %+v", st)
		}
	}
}

func TestWindowBufferNoEmissionBeforeFull(t *testing.T) {
	emitted := 0
	buf, _ := NewWindowBuffer(10, 6, func(Window) { emitted++ })
	for i := 0; i < 9; i++ {
		buf.Add(sampleOf(1))
	}
	if emitted != 0 {
		t.Fatalf("emitted %d windows before buffer was full", emitted)
	}
}

func TestWindowBufferCopiesSamples(t *testing.T) {
	var got Window
	buf, _ := NewWindowBuffer(2, 2, func(w Window) { got = w })
	s := sampleOf(1)
	buf.Add(s)
	s[0] = 99
	buf.Add(sampleOf(2))
	if got[0][0] != 1 {
		t.Fatalf("buffer aliased caller's sample: %v", got[0])
	}
}

func TestFlatten(t *testing.T) {
	w := Window{{1, 2}, {3, 4}, {5, 6}}
	f := w.Flatten()
	want := []float64{1, 2, 3, 4, 5, 6}
	if len(f) != len(want) {
		t.Fatalf("len = %d", len(f))
	}
	for i := range want {
		if f[i] != want[i] {
			t.Fatalf("Flatten() = %v, want %v", f, want)
		}
	}
}
