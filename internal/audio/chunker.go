package audio

import "fmt"

const (
	// SampleRate is the rate every downstream component assumes.
	SampleRate = 16000

	// WindowSamples is the length of a full chunk (5 s).
	WindowSamples = 5 * SampleRate

	// OverlapSamples is the tail shared by consecutive chunks (2.5 s).
	OverlapSamples = WindowSamples / 2
)

// Chunk is one window of mono audio handed to the accurate transcription path.
type Chunk struct {
	Seq     uint64
	Start   int64 // absolute offset of Samples[0] in the stream
	Samples []float32
	Final   bool // emitted by Flush, may be shorter than the window
}

// End returns the absolute offset one past the last sample.
func (c Chunk) End() int64 {
	return c.Start + int64(len(c.Samples))
}

// Duration in seconds at SampleRate.
func (c Chunk) Duration() float64 {
	return float64(len(c.Samples)) / SampleRate
}

// Chunker accumulates samples into fixed windows that overlap their
// predecessor by a fixed tail. It is owned by a single producer goroutine.
type Chunker struct {
	window  int
	overlap int

	buf   []float32
	fresh int   // samples appended since the last emitted chunk
	total int64 // samples pushed over the chunker's lifetime
	seq   uint64
}

// NewChunker returns a chunker for the given window and overlap in samples.
func NewChunker(window, overlap int) (*Chunker, error) {
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive, got %d", window)
	}
	if overlap < 0 || overlap >= window {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", window, overlap)
	}
	return &Chunker{
		window:  window,
		overlap: overlap,
		buf:     make([]float32, 0, window),
	}, nil
}

// NewDefaultChunker returns the 5 s / 2.5 s chunker used by the pipeline.
func NewDefaultChunker() *Chunker {
	c, _ := NewChunker(WindowSamples, OverlapSamples)
	return c
}

// Push appends one sample. When the buffer reaches the window size the full
// window is returned and only the trailing overlap is kept.
func (c *Chunker) Push(sample float32) (Chunk, bool) {
	c.buf = append(c.buf, sample)
	c.fresh++
	c.total++
	if len(c.buf) < c.window {
		return Chunk{}, false
	}
	chunk := c.emit(false)
	n := copy(c.buf, c.buf[c.window-c.overlap:])
	c.buf = c.buf[:n]
	c.fresh = 0
	return chunk, true
}

// Write pushes every sample and returns the chunks completed along the way.
func (c *Chunker) Write(samples []float32) []Chunk {
	var out []Chunk
	for _, s := range samples {
		if chunk, ok := c.Push(s); ok {
			out = append(out, chunk)
		}
	}
	return out
}

// Flush emits the remaining samples as a final, possibly short, chunk. The
// retained overlap alone is not re-emitted, and a second Flush is a no-op.
func (c *Chunker) Flush() (Chunk, bool) {
	if c.fresh == 0 {
		c.buf = c.buf[:0]
		return Chunk{}, false
	}
	chunk := c.emit(true)
	c.buf = c.buf[:0]
	c.fresh = 0
	return chunk, true
}

// Buffered reports how many samples are held.
func (c *Chunker) Buffered() int {
	return len(c.buf)
}

func (c *Chunker) emit(final bool) Chunk {
	samples := make([]float32, len(c.buf))
	copy(samples, c.buf)
	chunk := Chunk{
		Seq:     c.seq,
		Start:   c.total - int64(len(samples)),
		Samples: samples,
		Final:   final,
	}
	c.seq++
	return chunk
}
