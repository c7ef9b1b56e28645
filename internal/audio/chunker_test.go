package audio

import "testing"

func ramp(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func expectedChunks(l, window, overlap int) int {
	if l < window {
		if l == 0 {
			return 0
		}
		return 1
	}
	hop := window - overlap
	return (l-window+hop-1)/hop + 1
}

func TestChunker_ChunkCount(t *testing.T) {
	const window, overlap = 10, 4
	for _, l := range []int{0, 3, 9, 10, 11, 15, 16, 17, 22, 23, 100} {
		c, err := NewChunker(window, overlap)
		if err != nil {
			t.Fatalf("NewChunker: %v", err)
		}
		chunks := c.Write(ramp(l))
		if last, ok := c.Flush(); ok {
			chunks = append(chunks, last)
		}
		if got, want := len(chunks), expectedChunks(l, window, overlap); got != want {
			t.Errorf("L=%d: expected %d chunks, got %d", l, want, got)
		}
	}
}

func TestChunker_WindowAndOverlap(t *testing.T) {
	const window, overlap = 8, 3
	c, _ := NewChunker(window, overlap)
	chunks := c.Write(ramp(40))

	if len(chunks) == 0 {
		t.Fatal("expected chunks")
	}
	for i, ch := range chunks {
		if len(ch.Samples) != window {
			t.Errorf("chunk %d: expected %d samples, got %d", i, window, len(ch.Samples))
		}
		if ch.Seq != uint64(i) {
			t.Errorf("chunk %d: expected seq %d, got %d", i, i, ch.Seq)
		}
		if ch.Start != int64(ch.Samples[0]) {
			t.Errorf("chunk %d: start %d does not match first sample %v", i, ch.Start, ch.Samples[0])
		}
		if i == 0 {
			continue
		}
		prev := chunks[i-1].Samples
		for k := 0; k < overlap; k++ {
			if ch.Samples[k] != prev[window-overlap+k] {
				t.Fatalf("chunk %d: overlap mismatch at %d", i, k)
			}
		}
	}
}

func TestChunker_PushEmitsSynchronously(t *testing.T) {
	c, _ := NewChunker(4, 2)
	for i := 0; i < 3; i++ {
		if _, ok := c.Push(float32(i)); ok {
			t.Fatalf("unexpected chunk after %d samples", i+1)
		}
	}
	chunk, ok := c.Push(3)
	if !ok {
		t.Fatal("expected chunk on the fourth push")
	}
	if len(chunk.Samples) != 4 || chunk.Samples[3] != 3 {
		t.Errorf("unexpected chunk: %+v", chunk)
	}
	if c.Buffered() != 2 {
		t.Errorf("expected overlap of 2 retained, got %d", c.Buffered())
	}
}

func TestChunker_FlushShortAndIdempotent(t *testing.T) {
	c, _ := NewChunker(10, 5)
	c.Write(ramp(13))

	last, ok := c.Flush()
	if !ok {
		t.Fatal("expected flushed chunk")
	}
	if !last.Final {
		t.Error("expected flushed chunk to be marked final")
	}
	// 5 retained overlap + 3 fresh samples
	if len(last.Samples) != 8 {
		t.Errorf("expected 8 samples, got %d", len(last.Samples))
	}
	if last.Start != 5 {
		t.Errorf("expected start 5, got %d", last.Start)
	}

	if _, ok := c.Flush(); ok {
		t.Error("second flush should emit nothing")
	}
	if c.Buffered() != 0 {
		t.Errorf("expected empty buffer, got %d", c.Buffered())
	}
}

func TestChunker_FlushAfterExactWindow(t *testing.T) {
	c, _ := NewChunker(10, 5)
	if got := len(c.Write(ramp(10))); got != 1 {
		t.Fatalf("expected 1 chunk, got %d", got)
	}
	if _, ok := c.Flush(); ok {
		t.Error("retained overlap alone must not be flushed")
	}
}

func TestNewChunker_Invalid(t *testing.T) {
	cases := []struct{ window, overlap int }{
		{0, 0}, {10, 10}, {10, -1}, {-5, 1},
	}
	for _, tc := range cases {
		if _, err := NewChunker(tc.window, tc.overlap); err == nil {
			t.Errorf("expected error for window=%d overlap=%d", tc.window, tc.overlap)
		}
	}
}

func TestDefaultChunker_Sizes(t *testing.T) {
	c := NewDefaultChunker()
	chunks := c.Write(make([]float32, WindowSamples+OverlapSamples))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].Start != OverlapSamples {
		t.Errorf("expected second chunk to start at %d, got %d", OverlapSamples, chunks[1].Start)
	}
	if chunks[0].Duration() != 5 {
		t.Errorf("expected 5s chunk, got %v", chunks[0].Duration())
	}
}
