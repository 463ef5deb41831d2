package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// remoteSynth posts the text to an HTTP synthesis service and reads the
// encoded clip from the binary response body, forwarding it in fixed-size
// chunks so consumers can start playback before the body is fully read.
type remoteSynth struct {
	endpoint string
	client   *http.Client
}

const remoteChunkSize = 4096

type remoteRequest struct {
	Text     string `json:"text"`
	Voice    string `json:"voice"`
	Language string `json:"language"`
}

func NewRemoteSynth(endpoint string, timeout time.Duration) Synthesizer {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &remoteSynth{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *remoteSynth) Synthesize(ctx context.Context, req SynthRequest) (<-chan SynthChunk, <-chan error) {
	chunks := make(chan SynthChunk)
	errs := make(chan error, 1)
	go func() {
		defer close(chunks)
		defer close(errs)

		body, err := json.Marshal(remoteRequest{Text: req.Text, Voice: req.Voice, Language: req.Language})
		if err != nil {
			errs <- err
			return
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := r.client.Do(httpReq)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			errs <- fmt.Errorf("synthesis service returned status %s", resp.Status)
			return
		}

		buf := make([]byte, remoteChunkSize)
		sequence := 0
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				audio := make([]byte, n)
				copy(audio, buf[:n])
				select {
				case chunks <- SynthChunk{Sequence: sequence, Audio: audio, Final: err == io.EOF}:
					sequence++
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if err == io.EOF {
				return
			}
			if err != nil {
				errs <- err
				return
			}
		}
	}()
	return chunks, errs
}
