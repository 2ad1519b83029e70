package region

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"
)

// FrameSource yields captured frames. Next blocks until a frame is
// available or ctx is done.
type FrameSource interface {
	Next(ctx context.Context) (image.Image, error)
}

// MeasureFramePeriod reads one warm-up frame and then times frames more,
// returning the mean period between them.
func MeasureFramePeriod(ctx context.Context, src FrameSource, frames int, opts ...Option) (time.Duration, error) {
	if src == nil {
		return 0, errors.New("region: nil frame source")
	}
	if frames <= 0 {
		return 0, fmt.Errorf("region: frame count must be > 0: %d", frames)
	}

	clock := applyOptions(opts).clock
	if _, err := src.Next(ctx); err != nil {
		return 0, fmt.Errorf("region: warm-up frame: %w", err)
	}

	start := clock()
	for i := 0; i < frames; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if _, err := src.Next(ctx); err != nil {
			return 0, fmt.Errorf("region: frame %d: %w", i+1, err)
		}
	}

	elapsed := clock().Sub(start)
	if elapsed <= 0 {
		return 0, errors.New("region: clock did not advance")
	}
	return elapsed / time.Duration(frames), nil
}
