package stores

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/settings"
)

const (
	historyMaxLength = 20
)

// History is the capped, most-recent-first log of past consultations.
// Every mutation rewrites the whole list in one KV write.
type History interface {
	GetHistory(ctx context.Context) consult.Entries
	GetEntry(ctx context.Context, id int64) (*consult.Entry, bool)
	SaveConsultation(ctx context.Context, result *consult.Result) (consult.Entries, error)
	ClearHistory(ctx context.Context) error
}

// HistoryOption ...
type HistoryOption func(*history)

// WithKey overrides the slot key
func WithKey(key string) HistoryOption {
	return func(s *history) {
		if len(key) > 0 {
			s.key = key
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(fn func() time.Time) HistoryOption {
	return func(s *history) {
		if fn != nil {
			s.now = fn
		}
	}
}

func NewHistory(kv KV, opts ...HistoryOption) History {
	s := &history{kv: kv, key: settings.Current.HistoryKey, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type history struct {
	mu  sync.Mutex
	kv  KV
	key string
	now func() time.Time
}

func (s *history) GetHistory(ctx context.Context) consult.Entries {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *history) GetEntry(ctx context.Context, id int64) (*consult.Entry, bool) {
	return s.GetHistory(ctx).Find(id)
}

func (s *history) SaveConsultation(ctx context.Context, result *consult.Result) (consult.Entries, error) {
	var r consult.Result
	if result != nil {
		r = *result
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load(ctx).Prepend(consult.NewEntry(r, s.now()), historyMaxLength)
	b, err := data.MarshalBinary()
	if err == nil {
		err = s.kv.Write(ctx, s.key, b)
	}
	if err != nil {
		logger().Infow("save history fail", "key", s.key, "size", len(data), "err", err)
		return data, consult.NewError(consult.KindPersistence, "save history", err)
	}
	logger().Debugw("save history ok", "key", s.key, "id", data[0].ID, "size", len(data))
	return data, nil
}

func (s *history) ClearHistory(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, s.key); err != nil {
		logger().Infow("clear history fail", "key", s.key, "err", err)
		return consult.NewError(consult.KindPersistence, "clear history", err)
	}
	return nil
}

// load degrades to an empty list on any read or decode failure
func (s *history) load(ctx context.Context) consult.Entries {
	b, err := s.kv.Read(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger().Infow("read history fail", "key", s.key, "err", err)
		}
		return consult.Entries{}
	}
	var data consult.Entries
	if err = data.UnmarshalBinary(b); err != nil {
		logger().Infow("decode history fail", "key", s.key, "err", err)
		return consult.Entries{}
	}
	if data == nil {
		data = consult.Entries{}
	}
	return data
}
