/*
Package streaming holds the data path of frameflow:

  - channel: bounded blocking FIFO with timed reads and close semantics
  - ingest: reads frames from a source and numbers them from 1
  - reorder: buffers completions and releases them in sequence order

The stages connect through channel.Channel values. A full channel blocks the
producer, so the slowest stage sets the pace of the whole pipeline.
*/
package streaming
