package tts

import (
	"bytes"
	"context"
)

// SynthRequest contains parameters to synthesize speech.
type SynthRequest struct {
	Text     string
	Voice    string
	Language string
}

// SynthChunk is one piece of encoded audio.
type SynthChunk struct {
	Sequence int
	Audio    []byte
	Final    bool
}

// Synthesizer is the contract for producing audio. Implementations stream
// chunks on the first channel and report a terminal failure, if any, on the
// second; both channels are closed when the clip is complete.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error)
}

// Collect drains a synthesizer into a single clip.
func Collect(ctx context.Context, synth Synthesizer, req SynthRequest) ([]byte, error) {
	chunks, errs := synth.Synthesize(ctx, req)
	var buf bytes.Buffer
	for chunks != nil || errs != nil {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			buf.Write(chunk.Audio)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return buf.Bytes(), nil
}
