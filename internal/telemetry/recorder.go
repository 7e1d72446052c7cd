package telemetry

import (
	"context"
	"time"

	"github.com/park285/cheese-vrchess/internal/obslog"
	"go.uber.org/zap"
)

const writeTimeout = 2 * time.Second

// Recorder is the gameplay-facing side of telemetry. Write failures are logged
// and never returned; a nil Recorder records nothing.
type Recorder struct {
	sink Sink
}

func NewRecorder(sink Sink) *Recorder { return &Recorder{sink: sink} }

// Preparation records the elapsed time from session start to a seat's
// preparation_done.
func (r *Recorder) Preparation(elapsed time.Duration) {
	r.record(StreamPreparation, elapsed)
}

// AutomatedMove records how long an automated seat took to pick a move.
func (r *Recorder) AutomatedMove(tier string, elapsed time.Duration) {
	r.record(tier, elapsed)
}

func (r *Recorder) record(stream string, elapsed time.Duration) {
	if r == nil || r.sink == nil {
		return
	}
	ms := float64(elapsed.Microseconds()) / 1000.0
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.sink.Append(ctx, stream, ms); err != nil {
		obslog.L().Warn("telemetry_write_error", zap.String("stream", stream), zap.Float64("millis", ms), zap.Error(err))
		return
	}
	obslog.L().Debug("telemetry_write", zap.String("stream", stream), zap.String("millis", FormatMillis(ms)))
}
