package telemetry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Stream names. Automated move latency uses one stream per difficulty tier.
const (
	StreamPreparation = "preparation"
)

var ErrInvalidStream = errors.New("invalid telemetry stream")

// Sink appends one elapsed-time sample (milliseconds) to a named stream.
type Sink interface {
	Append(ctx context.Context, stream string, millis float64) error
}

// FormatMillis renders a sample with two decimal places.
func FormatMillis(ms float64) string { return strconv.FormatFloat(ms, 'f', 2, 64) }

func validStream(stream string) error {
	s := strings.TrimSpace(stream)
	if s == "" || strings.ContainsAny(s, "/\\.") {
		return fmt.Errorf("%w: %q", ErrInvalidStream, stream)
	}
	return nil
}

// FileSink keeps one append-only "<stream>.log" per stream with comma-joined values.
type FileSink struct {
	dir string
	mu  sync.Mutex
}

func NewFileSink(dir string) (*FileSink, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create telemetry dir: %w", err)
	}
	return &FileSink{dir: dir}, nil
}

func (s *FileSink) Path(stream string) string { return filepath.Join(s.dir, stream+".log") }

func (s *FileSink) Append(_ context.Context, stream string, millis float64) error {
	if err := validStream(stream); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.Path(stream), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open telemetry log: %w", err)
	}
	defer f.Close()
	sep := ""
	if info, err := f.Stat(); err == nil && info.Size() > 0 {
		sep = ","
	}
	if _, err := f.WriteString(sep + FormatMillis(millis)); err != nil {
		return fmt.Errorf("write telemetry log: %w", err)
	}
	return nil
}

// ReadStream parses a file stream back into samples.
func (s *FileSink) ReadStream(stream string) ([]float64, error) {
	raw, err := os.ReadFile(s.Path(stream))
	if err != nil {
		return nil, err
	}
	var out []float64
	for _, part := range strings.Split(strings.TrimSpace(string(raw)), ",") {
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse sample %q: %w", part, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Multi fans a sample out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Append(ctx context.Context, stream string, millis float64) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Append(ctx, stream, millis); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
