package consulting

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/services/gateway"
	"github.com/liut/medilink/pkg/services/stores"
)

func logger() *zap.SugaredLogger {
	return zap.S()
}

// Status is presentational only, the stages are timers, not a pipeline
type Status struct {
	Busy bool   `json:"busy"`
	Text string `json:"text"`
}

// Session holds the state one dashboard works with: the busy flag and
// status text, the current result and the history it reads from.
type Session struct {
	gw     gateway.Gateway
	hs     stores.History
	preset consult.Preset

	mu      sync.Mutex
	status  Status
	current *consult.Result
	pending int
	seq     uint64
	timers  []*time.Timer
	subs    map[chan Status]struct{}
}

// New ...
func New(gw gateway.Gateway, hs stores.History, preset consult.Preset) *Session {
	preset = preset.Merge(consult.DefaultPreset())
	return &Session{
		gw:     gw,
		hs:     hs,
		preset: preset,
		status: Status{Text: preset.IdleText},
		subs:   make(map[chan Status]struct{}),
	}
}

// StartAnalysis sends the notes through the gateway and saves a successful
// result to history. A persistence error is returned together with the
// result and the attempted history, both remain usable.
// Concurrent calls are not coordinated, the later one to finish wins.
func (s *Session) StartAnalysis(ctx context.Context, patientNotes, existingMeds string) (*consult.Result, consult.Entries, error) {
	if len(strings.TrimSpace(patientNotes)) == 0 {
		return nil, nil, consult.NewError(consult.KindInvalid, "start analysis", errEmptyNotes)
	}

	s.begin()
	defer s.finish()

	res, err := s.gw.StartAnalysis(ctx, patientNotes, existingMeds)
	if err != nil {
		logger().Infow("analysis fail", "kind", consult.KindOf(err), "err", err)
		return nil, nil, err
	}

	s.mu.Lock()
	s.current = res
	s.mu.Unlock()

	data, err := s.hs.SaveConsultation(ctx, res)
	if err != nil {
		logger().Infow("history may not survive reload", "err", err)
	}
	return res, data, err
}

// Status returns the current status
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Current returns the result on display, nil after Reset
func (s *Session) Current() *consult.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	r := *s.current
	return &r
}

// Summary returns r with display placeholders applied
func (s *Session) Summary(r *consult.Result) consult.Result {
	return s.preset.Placeholder.Summary(r)
}

// Entry looks up a past entry, the current result is left alone
func (s *Session) Entry(ctx context.Context, id int64) (*consult.Entry, bool) {
	return s.hs.GetEntry(ctx, id)
}

// Select makes a past entry the current result
func (s *Session) Select(ctx context.Context, id int64) (*consult.Entry, bool) {
	e, ok := s.hs.GetEntry(ctx, id)
	if ok {
		r := e.Result
		s.mu.Lock()
		s.current = &r
		s.mu.Unlock()
	}
	return e, ok
}

// Reset drops the current result
func (s *Session) Reset() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()
}

// History ...
func (s *Session) History(ctx context.Context) consult.Entries {
	return s.hs.GetHistory(ctx)
}

// ClearHistory ...
func (s *Session) ClearHistory(ctx context.Context) error {
	return s.hs.ClearHistory(ctx)
}

// Subscribe returns a channel receiving every status change.
// Slow readers miss updates rather than block the session.
func (s *Session) Subscribe() chan Status {
	ch := make(chan Status, 4)
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return ch
}

// Unsubscribe closes ch
func (s *Session) Unsubscribe(ch chan Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subs[ch]; ok {
		delete(s.subs, ch)
		close(ch)
	}
}

func (s *Session) begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending++
	s.seq++
	seq := s.seq
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]

	for i, stage := range s.preset.Stages {
		if i == 0 || stage.After <= 0 {
			s.setStatusLocked(Status{Busy: true, Text: stage.Text})
			continue
		}
		text := stage.Text
		s.timers = append(s.timers, time.AfterFunc(stage.After, func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if s.seq == seq && s.pending > 0 {
				s.setStatusLocked(Status{Busy: true, Text: text})
			}
		}))
	}
}

func (s *Session) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending--
	if s.pending > 0 {
		return
	}
	for _, t := range s.timers {
		t.Stop()
	}
	s.timers = s.timers[:0]
	s.setStatusLocked(Status{Text: s.preset.IdleText})
}

func (s *Session) setStatusLocked(st Status) {
	if st == s.status {
		return
	}
	s.status = st
	for ch := range s.subs {
		select {
		case ch <- st:
		default:
		}
	}
}
