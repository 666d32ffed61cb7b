// Package tts provides a unified interface for text-to-speech providers.
//
// Two backends are available: OpenAI (cloud voices) and Exec (a local
// synthesizer such as espeak-ng driven over stdin/stdout). Both speak at a
// fixed rate and pitch so the assistant always sounds the same. A Chain
// falls back from one provider to the next.
//
// Example usage:
//
//	provider, _ := tts.NewExec(tts.WithCommand("espeak-ng --stdout -s {rate} -p {pitch} --stdin"))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Camera is now active.")
//	// result.Audio contains WAV bytes
package tts

import (
	"context"
	"time"
)

// Provider defines the TTS provider interface.
type Provider interface {
	// Synthesize converts text to audio, returning the complete audio buffer.
	// Cancelling ctx abandons the utterance.
	Synthesize(ctx context.Context, text string) (*AudioResult, error)

	// Health checks that the provider can synthesize at all.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult represents a complete audio synthesis result.
type AudioResult struct {
	// Audio contains the encoded audio data.
	Audio []byte

	// Format describes the audio encoding and sample rate.
	Format AudioFormat

	// CharCount is the number of characters synthesized.
	CharCount int

	// Latency is the time the provider took to answer.
	Latency time.Duration
}

// AudioFormat describes the audio encoding parameters.
type AudioFormat struct {
	Encoding   Encoding
	SampleRate int
	Channels   int
}

// Encoding represents audio encoding types.
type Encoding string

const (
	EncodingMP3 Encoding = "mp3" // OpenAI default
	EncodingWAV Encoding = "wav" // espeak-ng --stdout
)

// Speech defaults. Rate and pitch are multipliers of the synthesizer's
// normal voice, matching the Web Speech API's 1.0 defaults.
const (
	DefaultRate  = 1.0
	DefaultPitch = 1.0
)
