// Package source provides frame.Source implementations for image directories
// and recorded frame logs.
package source

import (
	"strings"

	"github.com/vnykmshr/frameflow/pkg/frame"
)

// Open picks a source for input: a path ending in .ffl is replayed as a frame
// log, anything else is treated as a glob of image files.
func Open(input string) (frame.Source, error) {
	if strings.HasSuffix(input, FrameLogExt) {
		return OpenFrameLog(input)
	}
	return NewImageDir(input)
}
