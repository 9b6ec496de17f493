/*
Package reorder restores input order after parallel annotation.

Workers finish frames in whatever order their annotators allow. The reorder
stage buffers completions in a min-heap keyed by sequence number and writes a
frame to the sink only when every smaller sequence number has been written or
skipped:

	next = 1
	on completion c:
	    insert c
	    while min(buffer) == next:
	        pop, write unless c is a skip marker, next++

Skip Markers:

A frame the annotator failed on still produces a completion, carrying a
*errors.TransformationError. The stage consumes it like any other, advancing
next without writing, so one bad frame never stalls the stream.

Bounded Memory:

The pipeline shares a credit.Window between ingestion and this stage. A frame
takes a credit before it is read and the stage returns it once the frame
leaves the buffer, so with a window of W the buffer holds at most W-1
completions and a slow head frame simply holds the source back. Nothing is
dropped.

MaxPending > 0 adds an opt-in gap policy for live sources that would rather
lose a frame than wait: when more than MaxPending completions are buffered
the stage declares the missing head lost (a gap), jumps next to the smallest
buffered sequence number and carries on. If the lost frame turns up later it
is discarded as late. Output order is never violated.

Termination:

Run returns when the completion channel is closed and drained, when every
expected sequence number has been accounted for (see SetTotal), or when the
abort context is done and the channel stayed empty for DrainPolls polls. Until
then, idle polls just keep waiting.
*/
package reorder
