package logger

import (
	"context"
	"time"
)

// Elapsed logs how long an operation took, in milliseconds. Call it with defer and time.Now()
// at the top of the operation.
func Elapsed(ctx context.Context, start time.Time, format string, values ...interface{}) {
	elapsed := float64(time.Since(start).Nanoseconds()) / float64(time.Millisecond)

	LogDepthWithFields(ctx, LevelInfo, 1, []Field{
		Float64("elapsed_ms", elapsed),
	}, format, values...)
}
