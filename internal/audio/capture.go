package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// Sink receives the output of a capture session. Both methods are called from
// the capture goroutine and must return without blocking.
type Sink interface {
	// OnFrame hands over a freshly captured block at SampleRate. start is the
	// absolute offset of frame[0].
	OnFrame(start int64, frame []float32)
	// OnChunk hands over a completed window.
	OnChunk(chunk Chunk)
}

// Capture is the audio producer: it drains a Source, normalizes it to
// SampleRate, taps raw frames and feeds the chunker.
type Capture struct {
	src       Source
	sink      Sink
	resampler *Resampler
	chunker   *Chunker
	frameSize int
	logger    *slog.Logger

	offset int64
}

// NewCapture validates the source format and prepares a session.
func NewCapture(src Source, sink Sink, logger *slog.Logger) (*Capture, error) {
	rate := src.Format().SampleRate
	rs, err := NewResampler(rate)
	if err != nil {
		return nil, err
	}
	frameSize := rate / 10 // 100 ms reads
	if frameSize < 1 {
		frameSize = 1
	}
	return &Capture{
		src:       src,
		sink:      sink,
		resampler: rs,
		chunker:   NewDefaultChunker(),
		frameSize: frameSize,
		logger:    logger,
	}, nil
}

// Run reads until the source ends or ctx is cancelled, then flushes the last
// partial window. Only source failures are returned.
func (c *Capture) Run(ctx context.Context) error {
	c.logger.Info("capture started",
		"source_rate", c.src.Format().SampleRate,
		"resampling", !c.resampler.Passthrough(),
	)
	buf := make([]float32, c.frameSize)
	for {
		if ctx.Err() != nil {
			c.flush()
			c.logger.Info("capture stopped", "samples", c.offset)
			return nil
		}

		n, err := c.src.ReadSamples(buf)
		if n > 0 {
			if perr := c.process(buf[:n]); perr != nil {
				c.flush()
				return perr
			}
		}
		if errors.Is(err, io.EOF) {
			c.flush()
			c.logger.Info("capture source ended", "samples", c.offset)
			return nil
		}
		if err != nil {
			c.flush()
			return fmt.Errorf("read audio: %w", err)
		}
	}
}

func (c *Capture) process(in []float32) error {
	out, err := c.resampler.Process(in)
	if err != nil {
		return err
	}
	c.emit(out)
	return nil
}

func (c *Capture) emit(out []float32) {
	if len(out) == 0 {
		return
	}
	frame := make([]float32, len(out))
	copy(frame, out)

	c.sink.OnFrame(c.offset, frame)
	c.offset += int64(len(frame))
	for _, chunk := range c.chunker.Write(frame) {
		c.sink.OnChunk(chunk)
	}
}

// flush drains the resampler tail into the chunker, then emits the last
// partial window.
func (c *Capture) flush() {
	tail, err := c.resampler.Flush()
	if err != nil {
		c.logger.Warn("resampler tail lost", "error", err)
	}
	c.emit(tail)
	if chunk, ok := c.chunker.Flush(); ok {
		c.sink.OnChunk(chunk)
	}
}
