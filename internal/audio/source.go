package audio

import (
	"fmt"
	"io"
	"os"
	"time"
)

// Format describes what a Source delivers.
type Format struct {
	SampleRate int
}

// Source delivers mono float samples at its declared rate. ReadSamples
// follows io.Reader conventions and returns io.EOF at end of stream.
type Source interface {
	Format() Format
	ReadSamples(p []float32) (int, error)
}

// PCMSource reads raw little-endian PCM16 mono audio from an io.Reader, such
// as stdin or the write end of a websocket ingest pipe.
type PCMSource struct {
	r     io.Reader
	rate  int
	buf   []byte
	carry []byte
}

func NewPCMSource(r io.Reader, sampleRate int) *PCMSource {
	return &PCMSource{r: r, rate: sampleRate}
}

func (s *PCMSource) Format() Format {
	return Format{SampleRate: s.rate}
}

func (s *PCMSource) ReadSamples(p []float32) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	need := len(p) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]
	k := copy(buf, s.carry)
	s.carry = s.carry[:0]

	n, err := s.r.Read(buf[k:])
	n += k
	whole := n - n%2
	if n%2 == 1 {
		s.carry = append(s.carry, buf[n-1])
	}
	for i := 0; i < whole/2; i++ {
		p[i] = float32(int16(uint16(buf[2*i])|uint16(buf[2*i+1])<<8)) / 32768
	}
	return whole / 2, err
}

// WAVSource replays a decoded WAV file.
type WAVSource struct {
	samples []float32
	rate    int
	pos     int
}

func NewWAVSource(data []byte) (*WAVSource, error) {
	samples, rate, err := DecodeWAV(data)
	if err != nil {
		return nil, err
	}
	return &WAVSource{samples: samples, rate: rate}, nil
}

// OpenWAV reads and decodes a WAV file from disk.
func OpenWAV(path string) (*WAVSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read wav file: %w", err)
	}
	return NewWAVSource(data)
}

func (s *WAVSource) Format() Format {
	return Format{SampleRate: s.rate}
}

func (s *WAVSource) ReadSamples(p []float32) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(p, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

// PacedSource releases samples no faster than real time, so a recorded file
// exercises silence timing and queue bounds the way a microphone would.
type PacedSource struct {
	src   Source
	rate  int
	began time.Time
	read  int64
	now   func() time.Time
	sleep func(time.Duration)
}

func NewPacedSource(src Source) *PacedSource {
	return &PacedSource{src: src, rate: src.Format().SampleRate, now: time.Now, sleep: time.Sleep}
}

func (s *PacedSource) Format() Format {
	return s.src.Format()
}

func (s *PacedSource) ReadSamples(p []float32) (int, error) {
	if s.began.IsZero() {
		s.began = s.now()
	}
	n, err := s.src.ReadSamples(p)
	s.read += int64(n)
	if s.rate > 0 {
		due := s.began.Add(time.Duration(s.read) * time.Second / time.Duration(s.rate))
		if wait := due.Sub(s.now()); wait > 0 {
			s.sleep(wait)
		}
	}
	return n, err
}
