// Package wire defines the msgpack record used to move frames across process
// and file boundaries, and the length-prefixed framing around it.
//
// A message on the wire is a 4-byte big-endian length followed by that many
// bytes of msgpack. Frame logs are a zstd stream of such messages; the exec
// annotator speaks the same framing over stdin and stdout.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// MaxMessageSize caps a single message. Larger length prefixes are treated as
// corruption.
const MaxMessageSize = 64 << 20

// ErrMessageTooLarge is returned for a length prefix above MaxMessageSize.
var ErrMessageTooLarge = errors.New("wire: message too large")

// Record is the serialized form of a sequenced frame.
type Record struct {
	Seq       uint64            `msgpack:"seq"`
	Data      []byte            `msgpack:"data"`
	Width     int               `msgpack:"width,omitempty"`
	Height    int               `msgpack:"height,omitempty"`
	Timestamp int64             `msgpack:"ts,omitempty"`
	Source    string            `msgpack:"source,omitempty"`
	Labels    map[string]string `msgpack:"labels,omitempty"`
}

// FromFrame builds a record for f. Data and Labels are shared, not copied.
func FromFrame(seq uint64, f *frame.Frame) Record {
	r := Record{
		Seq:    seq,
		Data:   f.Data,
		Width:  f.Width,
		Height: f.Height,
		Source: f.Source,
		Labels: f.Labels,
	}
	if !f.Timestamp.IsZero() {
		r.Timestamp = f.Timestamp.UnixNano()
	}
	return r
}

// Frame converts the record back into a frame.
func (r Record) Frame() *frame.Frame {
	f := &frame.Frame{
		Data:   r.Data,
		Width:  r.Width,
		Height: r.Height,
		Source: r.Source,
		Labels: r.Labels,
	}
	if r.Timestamp != 0 {
		f.Timestamp = time.Unix(0, r.Timestamp)
	}
	return f
}

// WriteMessage encodes v with msgpack and writes it with its length prefix.
func WriteMessage(w io.Writer, v interface{}) error {
	payload, err := msgpack.Marshal(v)
	if err != nil {
		return fmt.Errorf("wire: encode: %w", err)
	}
	if len(payload) > MaxMessageSize {
		return ErrMessageTooLarge
	}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return fmt.Errorf("wire: write length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write payload: %w", err)
	}
	return nil
}

// ReadMessage reads one message into v. It returns io.EOF only when the
// stream ends cleanly between messages; a truncated message yields
// io.ErrUnexpectedEOF.
func ReadMessage(r io.Reader, v interface{}) error {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return err
	}
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("wire: decode: %w", err)
	}
	return nil
}
