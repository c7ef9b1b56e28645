package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func sine(n, rate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeWAV_Header(t *testing.T) {
	samples := sine(1600, SampleRate, 440)
	data, err := EncodeWAV(samples, SampleRate)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}
	if len(data) != 44+len(samples)*2 {
		t.Fatalf("expected %d bytes, got %d", 44+len(samples)*2, len(data))
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
		t.Error("missing RIFF/WAVE/data markers")
	}
	if rate := binary.LittleEndian.Uint32(data[24:28]); rate != SampleRate {
		t.Errorf("expected sample rate %d, got %d", SampleRate, rate)
	}
	if ch := binary.LittleEndian.Uint16(data[22:24]); ch != 1 {
		t.Errorf("expected mono, got %d channels", ch)
	}
}

func TestEncodeWAV_Invalid(t *testing.T) {
	if _, err := EncodeWAV(nil, SampleRate); err == nil {
		t.Error("expected error for empty samples")
	}
	if _, err := EncodeWAV([]float32{0.1}, 0); err == nil {
		t.Error("expected error for zero sample rate")
	}
}

func TestDecodeWAV_RoundTrip(t *testing.T) {
	samples := sine(800, 8000, 300)
	data, err := EncodeWAV(samples, 8000)
	if err != nil {
		t.Fatalf("EncodeWAV failed: %v", err)
	}

	decoded, rate, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if rate != 8000 {
		t.Errorf("expected rate 8000, got %d", rate)
	}
	if len(decoded) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(decoded))
	}
	for i := range samples {
		if math.Abs(float64(decoded[i]-samples[i])) > 1e-3 {
			t.Fatalf("sample %d: expected %v, got %v", i, samples[i], decoded[i])
		}
	}
}

func TestDecodeWAV_SkipsUnknownChunks(t *testing.T) {
	data, _ := EncodeWAV([]float32{0.25, -0.25}, SampleRate)

	// splice a LIST chunk between fmt and data
	list := []byte{'L', 'I', 'S', 'T', 4, 0, 0, 0, 'I', 'N', 'F', 'O'}
	spliced := append([]byte{}, data[:36]...)
	spliced = append(spliced, list...)
	spliced = append(spliced, data[36:]...)

	decoded, _, err := DecodeWAV(spliced)
	if err != nil {
		t.Fatalf("DecodeWAV failed: %v", err)
	}
	if len(decoded) != 2 {
		t.Errorf("expected 2 samples, got %d", len(decoded))
	}
}

func TestDecodeWAV_Invalid(t *testing.T) {
	if _, _, err := DecodeWAV([]byte("short")); err == nil {
		t.Error("expected error for short data")
	}
	if _, _, err := DecodeWAV([]byte("RIFF0000WAVX")); err == nil {
		t.Error("expected error for bad format marker")
	}
	if _, _, err := DecodeWAV([]byte("RIFF0000WAVE")); err == nil {
		t.Error("expected error for missing chunks")
	}
}

func TestPCM16_Clamping(t *testing.T) {
	pcm := ToPCM16([]float32{2, -2, 0, 0.5})
	want := []int16{32767, -32767, 0, 16383}
	for i := range want {
		if pcm[i] != want[i] {
			t.Errorf("index %d: expected %d, got %d", i, want[i], pcm[i])
		}
	}
}

func TestDecodePCM16_IgnoresOddByte(t *testing.T) {
	b := EncodePCM16([]float32{0.5, -0.5})
	b = append(b, 0x7f)
	out := DecodePCM16(b)
	if len(out) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(out))
	}
	if out[0] <= 0 || out[1] >= 0 {
		t.Errorf("unexpected signs: %v", out)
	}
}
