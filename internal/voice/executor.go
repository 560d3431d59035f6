package voice

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Report summarizes one executed request.
type Report struct {
	Segments     int
	Elapsed      time.Duration
	FirstSegment time.Duration
}

// SegmentHandler consumes a segment. It must finish with the segment before
// returning; the next segment is not requested until it does.
type SegmentHandler func(ctx context.Context, seg Segment) error

// Executor drains an engine stream one segment at a time.
type Executor struct {
	clock func() time.Time
}

func NewExecutor() *Executor {
	return &Executor{clock: time.Now}
}

// Execute pulls segments from stream in order and hands each to handle.
// Cancellation is observed before and after every pull; a segment that
// arrives after cancellation is dropped. Errors from the stream are wrapped
// in EngineFailure, errors from handle are returned as-is. The stream is
// always closed.
func (x *Executor) Execute(ctx context.Context, mode Mode, stream Stream, handle SegmentHandler) (Report, error) {
	defer stream.Close()

	var report Report
	start := x.clock()
	finish := func() Report {
		report.Elapsed = x.clock().Sub(start)
		return report
	}
	interrupted := func(index int, cause error) error {
		return fmt.Errorf("%w before segment %d: %w", ErrInterrupted, index, cause)
	}

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			return finish(), interrupted(index, err)
		}
		out, err := stream.Next(ctx)
		if errors.Is(err, io.EOF) {
			return finish(), nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return finish(), interrupted(index, ctxErr)
			}
			return finish(), &EngineFailure{Mode: mode, Index: index, Err: err}
		}
		if err := ctx.Err(); err != nil {
			return finish(), interrupted(index, err)
		}
		if index == 0 {
			report.FirstSegment = x.clock().Sub(start)
		}
		seg := Segment{Index: index, Samples: out.Samples, SampleRate: out.SampleRate}
		if err := handle(ctx, seg); err != nil {
			return finish(), err
		}
		report.Segments++
	}
}
