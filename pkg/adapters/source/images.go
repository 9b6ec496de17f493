package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // decoders for DecodeConfig
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	gferrors "github.com/vnykmshr/frameflow/pkg/common/errors"
	"github.com/vnykmshr/frameflow/pkg/frame"
)

// ImageDir serves the files matching a glob pattern, one frame per file, in
// lexical path order. Width and Height are filled in for formats the image
// package can decode.
type ImageDir struct {
	mu     sync.Mutex
	paths  []string
	next   int
	closed bool
}

// NewImageDir expands pattern with doublestar syntax (so "frames/**/*.jpg"
// works). A pattern that matches nothing is an open failure.
func NewImageDir(pattern string) (*ImageDir, error) {
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %v", gferrors.ErrSourceOpen, pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no files match %q", gferrors.ErrSourceOpen, pattern)
	}
	sort.Strings(matches)
	return &ImageDir{paths: matches}, nil
}

// ReadNext implements frame.Source.
func (s *ImageDir) ReadNext(ctx context.Context) (*frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, gferrors.ErrClosed
	}
	if s.next >= len(s.paths) {
		s.mu.Unlock()
		return nil, io.EOF
	}
	path := s.paths[s.next]
	s.next++
	s.mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	f := &frame.Frame{
		Data:      data,
		Timestamp: info.ModTime(),
		Source:    path,
	}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		f.Width, f.Height = cfg.Width, cfg.Height
	}
	return f, nil
}

// TotalCount implements frame.Source.
func (s *ImageDir) TotalCount() (uint64, bool) {
	return uint64(len(s.paths)), true
}

// Paths returns the matched files in the order they are served.
func (s *ImageDir) Paths() []string {
	return append([]string(nil), s.paths...)
}

// Close implements frame.Source.
func (s *ImageDir) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
