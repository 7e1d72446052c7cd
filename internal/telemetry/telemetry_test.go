package telemetry

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSinkAppendsCommaJoined(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, "easy", 12.346))
	require.NoError(t, sink.Append(ctx, "easy", 3))
	require.NoError(t, sink.Append(ctx, "expert", 1.5))

	raw, err := os.ReadFile(sink.Path("easy"))
	require.NoError(t, err)
	assert.Equal(t, "12.35,3.00", string(raw))

	samples, err := sink.ReadStream("expert")
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, samples)
}

func TestFileSinkRejectsPathStreams(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	err = sink.Append(context.Background(), "../escape", 1)
	assert.ErrorIs(t, err, ErrInvalidStream)
}

func TestRedisSink(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sink := NewRedisSink(rdb)
	ctx := context.Background()

	require.NoError(t, sink.Append(ctx, StreamPreparation, 250.4567))
	require.NoError(t, sink.Append(ctx, StreamPreparation, 10))

	got, err := sink.ReadStream(ctx, StreamPreparation)
	require.NoError(t, err)
	assert.Equal(t, []float64{250.46, 10}, got)
	assert.True(t, mr.TTL("telemetry:preparation") > 0)
}

type failingSink struct{ calls int }

func (f *failingSink) Append(context.Context, string, float64) error {
	f.calls++
	return errors.New("disk full")
}

func TestRecorderSwallowsErrors(t *testing.T) {
	fs := &failingSink{}
	rec := NewRecorder(fs)
	assert.NotPanics(t, func() {
		rec.Preparation(150 * time.Millisecond)
		rec.AutomatedMove("easy", time.Millisecond)
	})
	assert.Equal(t, 2, fs.calls)

	var nilRec *Recorder
	assert.NotPanics(t, func() { nilRec.Preparation(time.Second) })
}

func TestMultiJoinsErrors(t *testing.T) {
	file, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	fs := &failingSink{}
	m := Multi{file, fs, nil}

	err = m.Append(context.Background(), "easy", 5)
	require.Error(t, err)
	samples, rerr := file.ReadStream("easy")
	require.NoError(t, rerr)
	assert.Equal(t, []float64{5}, samples)
}

func TestRecorderWritesMillis(t *testing.T) {
	sink, err := NewFileSink(t.TempDir())
	require.NoError(t, err)
	NewRecorder(sink).Preparation(1500 * time.Microsecond)
	samples, err := sink.ReadStream(StreamPreparation)
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, samples)
}
