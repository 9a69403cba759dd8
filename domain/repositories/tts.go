package repositories

import "context"

// TextToSpeech reads answers aloud. The returned channel yields 16-bit
// little-endian mono PCM at SampleRate and is closed when synthesis ends.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
	SampleRate() int
}
