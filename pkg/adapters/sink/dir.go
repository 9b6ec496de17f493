package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// DefaultExt is used when neither the sink nor the frame's source name an
// extension and the data is not a recognised image.
const DefaultExt = ".bin"

// Dir writes each frame to its own file named frame_%06d<ext> after its
// sequence number.
type Dir struct {
	path string
	ext  string
}

// NewDir creates path if needed. An empty ext reuses the extension of each
// frame's source file, or sniffs the image type from the data.
func NewDir(path, ext string) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Dir{path: path, ext: ext}, nil
}

// FileName returns the file name used for seq.
func (d *Dir) FileName(seq uint64, f *frame.Frame) string {
	ext := d.ext
	if ext == "" && f != nil {
		ext = filepath.Ext(f.Source)
		if ext == "" && len(f.Data) > 0 {
			if m := mimetype.Detect(f.Data); strings.HasPrefix(m.String(), "image/") {
				ext = m.Extension()
			}
		}
	}
	if ext == "" {
		ext = DefaultExt
	}
	return fmt.Sprintf("frame_%06d%s", seq, ext)
}

// Write implements frame.Sink.
func (d *Dir) Write(_ context.Context, seq uint64, f *frame.Frame) error {
	name := filepath.Join(d.path, d.FileName(seq, f))
	if err := os.WriteFile(name, f.Data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// Close implements frame.Sink.
func (d *Dir) Close() error { return nil }
