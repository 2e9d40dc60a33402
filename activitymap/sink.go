package activitymap

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	auth "github.com/goliatone/go-auth-guard"
	goerrors "github.com/goliatone/go-errors"
)

var _ auth.ActivitySink = (*WriterSink)(nil)

// WriterSink writes one normalized JSON record per line
type WriterSink struct {
	mu   sync.Mutex
	enc  *json.Encoder
	opts []Option
}

func NewWriterSink(w io.Writer, opts ...Option) *WriterSink {
	return &WriterSink{enc: json.NewEncoder(w), opts: opts}
}

func (s *WriterSink) Record(_ context.Context, event auth.ActivityEvent) error {
	record := Normalize(event, s.opts...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(record); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to write activity record").
			WithMetadata(map[string]any{"verb": record.Verb})
	}
	return nil
}
