package sink

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/vnykmshr/frameflow/pkg/adapters/wire"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

// FrameLog records emitted frames to a zstd-compressed file of wire records.
// The file can be replayed with source.OpenFrameLog.
type FrameLog struct {
	file *os.File
	buf  *bufio.Writer
	enc  *zstd.Encoder
}

// CreateFrameLog truncates or creates path.
func CreateFrameLog(path string, level zstd.EncoderLevel) (*FrameLog, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create frame log: %w", err)
	}
	enc, err := zstd.NewWriter(file, zstd.WithEncoderLevel(level))
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("create frame log: zstd: %w", err)
	}
	return &FrameLog{file: file, enc: enc, buf: bufio.NewWriter(enc)}, nil
}

// Write implements frame.Sink.
func (l *FrameLog) Write(_ context.Context, seq uint64, f *frame.Frame) error {
	return wire.WriteMessage(l.buf, wire.FromFrame(seq, f))
}

// Close flushes the compressed stream and closes the file.
func (l *FrameLog) Close() error {
	err := l.buf.Flush()
	if cerr := l.enc.Close(); err == nil {
		err = cerr
	}
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	return err
}
