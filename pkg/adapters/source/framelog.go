package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/vnykmshr/frameflow/pkg/adapters/wire"
	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

// FrameLogExt is the file extension of frame logs.
const FrameLogExt = ".ffl"

// FrameLog replays a frame log written by sink.FrameLog. Frames come back in
// the order they were written; their recorded sequence numbers are ignored
// because ingestion renumbers every frame.
type FrameLog struct {
	mu     sync.Mutex
	file   *os.File
	dec    *zstd.Decoder
	r      *bufio.Reader
	closed bool
}

// OpenFrameLog opens path for replay.
func OpenFrameLog(path string) (*FrameLog, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", gferrors.ErrSourceOpen, err)
	}
	dec, err := zstd.NewReader(file)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("%w: zstd: %v", gferrors.ErrSourceOpen, err)
	}
	return &FrameLog{file: file, dec: dec, r: bufio.NewReader(dec)}, nil
}

// ReadNext implements frame.Source.
func (s *FrameLog) ReadNext(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, gferrors.ErrClosed
	}
	var rec wire.Record
	if err := wire.ReadMessage(s.r, &rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("frame log %s: %w", s.file.Name(), err)
	}
	return rec.Frame(), nil
}

// TotalCount implements frame.Source. A frame log does not record its length.
func (s *FrameLog) TotalCount() (uint64, bool) {
	return 0, false
}

// Close implements frame.Source.
func (s *FrameLog) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.dec.Close()
	return s.file.Close()
}
