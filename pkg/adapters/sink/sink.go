// Package sink provides frame.Sink implementations: a directory of numbered
// files, a compressed frame log, a Redis stream and a logging display.
//
// Sinks are written by a single goroutine, the reorder stage, so they do not
// lock around Write. Combine several with frame.MultiSink.
package sink
