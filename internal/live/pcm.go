package live

import (
	"encoding/binary"
	"math"

	"github.com/satriahrh/drishti/domain/entities"
)

const (
	// InputSampleRate is the microphone rate expected by the backend
	InputSampleRate = 16000
	// OutputSampleRate is the rate of audio produced by the backend
	OutputSampleRate = 24000
	// InputMIMEType labels outbound audio chunks
	InputMIMEType = "audio/pcm;rate=16000"
	// DefaultFrameSize is the number of samples per captured frame
	DefaultFrameSize = 512
)

// EncodePCM16 converts float samples in [-1, 1] to 16-bit little-endian PCM.
// Out-of-range samples are clamped and both signs scale by 32767.
func EncodePCM16(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		v := int16(clamp(s) * math.MaxInt16)
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// EncodePCM16Asymmetric scales negative samples by 32768 and positive ones by
// 32767, so -1 maps to the full int16 minimum.
func EncodePCM16Asymmetric(frame []float32) []byte {
	out := make([]byte, len(frame)*2)
	for i, s := range frame {
		s = clamp(s)
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * math.MaxInt16)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// NewAudioChunk encodes a captured frame into a chunk ready to send
func NewAudioChunk(frame []float32) entities.AudioChunk {
	return entities.AudioChunk{Data: EncodePCM16(frame), MIMEType: InputMIMEType}
}

func clamp(s float32) float32 {
	switch {
	case math.IsNaN(float64(s)):
		return 0
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return s
}

// AudioBuffer holds decoded interleaved samples
type AudioBuffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames in the buffer
func (b *AudioBuffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the playback length in seconds
func (b *AudioBuffer) Duration() float64 {
	if b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// DecodePCM16 converts 16-bit little-endian PCM into float samples by dividing
// by 32768. A trailing odd byte is ignored.
func DecodePCM16(data []byte, sampleRate, channels int) *AudioBuffer {
	if channels <= 0 {
		channels = 1
	}
	n := len(data) / 2
	n -= n % channels
	samples := make([]float32, n)
	for i := 0; i < n; i++ {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return &AudioBuffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
}
