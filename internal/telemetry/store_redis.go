package telemetry

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const ttlStream = 30 * 24 * time.Hour

// RedisSink mirrors the file streams into Redis lists "telemetry:<stream>".
type RedisSink struct{ rdb *redis.Client }

func NewRedisSink(rdb *redis.Client) *RedisSink { return &RedisSink{rdb: rdb} }

func (s *RedisSink) key(stream string) string { return "telemetry:" + strings.TrimSpace(stream) }

func (s *RedisSink) Append(ctx context.Context, stream string, millis float64) error {
	if err := validStream(stream); err != nil {
		return err
	}
	k := s.key(stream)
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, k, FormatMillis(millis))
	pipe.Expire(ctx, k, ttlStream)
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSink) ReadStream(ctx context.Context, stream string) ([]float64, error) {
	vals, err := s.rdb.LRange(ctx, s.key(stream), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
