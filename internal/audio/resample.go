package audio

import (
	"errors"
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// ErrUnsupportedRate is returned for sources that declare a non-positive rate.
var ErrUnsupportedRate = errors.New("unsupported sample rate")

// Resampler converts mono audio at an arbitrary rate to SampleRate. At
// SampleRate it is a passthrough.
type Resampler struct {
	inRate int
	rs     resampling.Resampler
	in     []float64
}

func NewResampler(inRate int) (*Resampler, error) {
	if inRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedRate, inRate)
	}
	r := &Resampler{inRate: inRate}
	if inRate == SampleRate {
		return r, nil
	}
	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(SampleRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("create resampler: %w", err)
	}
	r.rs = rs
	return r, nil
}

// Passthrough reports whether input already arrives at SampleRate.
func (r *Resampler) Passthrough() bool {
	return r.rs == nil
}

// Process converts one block of input samples.
func (r *Resampler) Process(samples []float32) ([]float32, error) {
	if r.rs == nil || len(samples) == 0 {
		return samples, nil
	}
	if cap(r.in) < len(samples) {
		r.in = make([]float64, len(samples))
	}
	in := r.in[:len(samples)]
	for i, s := range samples {
		in[i] = float64(s)
	}
	out, err := r.rs.Process(in)
	if err != nil {
		return nil, fmt.Errorf("resample: %w", err)
	}
	return toFloat32(out), nil
}

// Flush returns the samples still held by the filter. Call it once, at the
// end of the stream.
func (r *Resampler) Flush() ([]float32, error) {
	if r.rs == nil {
		return nil, nil
	}
	out, err := r.rs.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler: %w", err)
	}
	return toFloat32(out), nil
}

func toFloat32(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, s := range in {
		out[i] = float32(s)
	}
	return out
}
