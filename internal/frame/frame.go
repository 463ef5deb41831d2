// Package frame implements the wire protocol for the streaming assistant
// endpoint: one JSON envelope record on a single line, a newline delimiter,
// then the raw audio payload until end of stream.
package frame

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Delimiter separates the envelope record from the audio payload.
const Delimiter = '\n'

// Error indicates a record that would violate the delimiter contract.
// It is the only framing failure treated as fatal to a request.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("framing violation: %s", e.Reason)
}

// IsFramingError reports whether err is a delimiter-contract violation.
func IsFramingError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// EmitRecord writes the envelope record and the delimiter. The record must
// not contain the delimiter byte; JSON produced by encoding/json never does,
// but callers handing in raw bytes are checked here.
func EmitRecord(w io.Writer, record []byte) error {
	if bytes.IndexByte(record, Delimiter) >= 0 {
		return &Error{Reason: "record contains delimiter byte"}
	}
	if _, err := w.Write(record); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if _, err := w.Write([]byte{Delimiter}); err != nil {
		return fmt.Errorf("write delimiter: %w", err)
	}
	return nil
}

// EmitJSON marshals v as the envelope record and writes it with the delimiter.
func EmitJSON(w io.Writer, v any) error {
	record, err := json.Marshal(v)
	if err != nil {
		return &Error{Reason: fmt.Sprintf("marshal record: %v", err)}
	}
	return EmitRecord(w, record)
}

// Emit writes the full framed stream: record, delimiter, then every byte the
// audio reader produces, in order. A nil audio reader means an empty payload.
// An audio error after the delimiter is returned to the caller, but the
// record has already been committed; receivers must treat a short tail as
// incomplete audio, never as corrupt metadata.
func Emit(w io.Writer, record []byte, audio io.Reader) error {
	if err := EmitRecord(w, record); err != nil {
		return err
	}
	if audio == nil {
		return nil
	}
	if _, err := io.Copy(w, audio); err != nil {
		return fmt.Errorf("stream audio: %w", err)
	}
	return nil
}

// Parse reads the framed stream: everything up to the first delimiter is the
// envelope record, everything after it is the audio payload. The delimiter
// may arrive split across arbitrary chunk boundaries; the internal buffer
// absorbs that. The returned reader yields the audio bytes.
func Parse(r io.Reader) ([]byte, io.Reader, error) {
	br := bufio.NewReader(r)
	record, err := br.ReadBytes(Delimiter)
	if err != nil {
		if err == io.EOF {
			return nil, nil, &Error{Reason: "stream ended before delimiter"}
		}
		return nil, nil, fmt.Errorf("read record: %w", err)
	}
	// strip the delimiter itself
	return record[:len(record)-1], br, nil
}

// ParseJSON parses the framed stream and unmarshals the record into v.
func ParseJSON(r io.Reader, v any) (io.Reader, error) {
	record, audio, err := Parse(r)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(record, v); err != nil {
		return nil, &Error{Reason: fmt.Sprintf("decode record: %v", err)}
	}
	return audio, nil
}
