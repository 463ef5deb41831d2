package tts

import (
	"context"
	"time"
)

type mockSynth struct{}

// NewMockSynth returns a synthesizer producing a tiny deterministic clip,
// for development and tests.
func NewMockSynth() Synthesizer { return &mockSynth{} }

func (m *mockSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk, 1)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)
		select {
		case <-ctx.Done():
			errs <- ctx.Err()
			return
		case <-time.After(10 * time.Millisecond):
		}
		chunks <- SynthChunk{
			Sequence: 0,
			Audio:    []byte("[mock audio for " + req.Text + "]"),
			Final:    true,
		}
	}()
	return chunks, errs
}
