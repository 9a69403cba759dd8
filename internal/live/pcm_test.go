package live

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func sampleAt(data []byte, i int) int16 {
	return int16(binary.LittleEndian.Uint16(data[i*2:]))
}

func TestEncodePCM16(t *testing.T) {
	frame := []float32{0, 1, -1, 0.5, -0.5, 2, -3, float32(math.NaN())}
	want := []int16{0, 32767, -32767, 16383, -16383, 32767, -32767, 0}

	data := EncodePCM16(frame)
	if len(data) != len(frame)*2 {
		t.Fatalf("Expected %d bytes, got %d", len(frame)*2, len(data))
	}
	for i, w := range want {
		if got := sampleAt(data, i); got != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestEncodePCM16Asymmetric(t *testing.T) {
	data := EncodePCM16Asymmetric([]float32{-1, 1, -0.5})
	want := []int16{-32768, 32767, -16384}
	for i, w := range want {
		if got := sampleAt(data, i); got != w {
			t.Errorf("Sample %d: expected %d, got %d", i, w, got)
		}
	}
}

func TestNewAudioChunk(t *testing.T) {
	chunk := NewAudioChunk([]float32{0, 1})
	if chunk.MIMEType != "audio/pcm;rate=16000" {
		t.Errorf("Expected audio/pcm;rate=16000, got %s", chunk.MIMEType)
	}

	raw, err := json.Marshal(chunk)
	if err != nil {
		t.Fatalf("Failed to marshal chunk: %v", err)
	}
	if !strings.Contains(string(raw), `"data":"`+chunk.Base64()+`"`) {
		t.Errorf("Expected base64 payload in %s", raw)
	}
}

func TestDecodePCM16(t *testing.T) {
	data := []byte{0x00, 0x80, 0xff, 0x7f, 0x00, 0x40, 0x12}
	buf := DecodePCM16(data, OutputSampleRate, 1)

	if buf.Frames() != 3 {
		t.Fatalf("Expected 3 frames with the odd byte ignored, got %d", buf.Frames())
	}
	want := []float32{-1, 32767.0 / 32768.0, 0.5}
	for i, w := range want {
		if buf.Samples[i] != w {
			t.Errorf("Sample %d: expected %v, got %v", i, w, buf.Samples[i])
		}
	}
}

func TestDecodeDuration(t *testing.T) {
	// one second of 24 kHz mono
	buf := DecodePCM16(make([]byte, 48000), OutputSampleRate, 1)
	if buf.Duration() != 1 {
		t.Errorf("Expected 1s, got %v", buf.Duration())
	}

	stereo := DecodePCM16(make([]byte, 10), OutputSampleRate, 2)
	if stereo.Frames() != 2 {
		t.Errorf("Expected incomplete stereo frame to be dropped, got %d frames", stereo.Frames())
	}
}

func TestRoundTripStaysClose(t *testing.T) {
	frame := []float32{0.25, -0.75, 0.999}
	buf := DecodePCM16(EncodePCM16(frame), InputSampleRate, 1)
	for i := range frame {
		if d := math.Abs(float64(buf.Samples[i] - frame[i])); d > 1.0/16384 {
			t.Errorf("Sample %d drifted by %v", i, d)
		}
	}
}
