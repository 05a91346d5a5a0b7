package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/jpillora/eventsource"
	"github.com/marcsv/go-binder/binder"
	"github.com/spf13/cast"

	"github.com/liut/medilink/pkg/models/consult"
	"github.com/liut/medilink/pkg/settings"
)

type startReq struct {
	PatientNotes string `json:"patientNotes"`
	ExistingMeds string `json:"existingMeds"`
}

func (s *server) postStart(w http.ResponseWriter, r *http.Request) {
	var param startReq
	if err := binder.BindBody(r, &param); err != nil {
		apiFail(w, r, 400, err)
		return
	}
	logger().Infow("start analysis", "notes", len(param.PatientNotes), "meds", len(param.ExistingMeds), "ip", r.RemoteAddr)

	res, data, err := s.sess.StartAnalysis(r.Context(), param.PatientNotes, param.ExistingMeds)
	if res == nil {
		apiFail(w, r, statusOfError(err), err)
		return
	}
	out := &RespDone{Data: res, Count: len(data)}
	if err != nil {
		out.Warning = "history may not survive reload: " + err.Error()
	}
	render.JSON(w, r, out)
}

func statusOfError(err error) int {
	switch consult.KindOf(err) {
	case consult.KindInvalid:
		return http.StatusBadRequest
	case consult.KindNetwork, consult.KindParse:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *server) getCurrent(w http.ResponseWriter, r *http.Request) {
	cur := s.sess.Current()
	if cur == nil {
		apiFail(w, r, 404, "no current result")
		return
	}
	apiOk(w, r, M{
		"result":          cur,
		"summary":         s.sess.Summary(cur),
		"hasInteractions": cur.HasInteractions(),
	})
}

func (s *server) deleteCurrent(w http.ResponseWriter, r *http.Request) {
	s.sess.Reset()
	handleNoContent(w, r)
}

func (s *server) getHistory(w http.ResponseWriter, r *http.Request) {
	data := s.sess.History(r.Context())
	apiOk(w, r, data, len(data))
}

func (s *server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.sess.ClearHistory(r.Context()); err != nil {
		apiFail(w, r, 503, err)
		return
	}
	handleNoContent(w, r)
}

func (s *server) getHistoryItem(w http.ResponseWriter, r *http.Request) {
	s.historyItem(w, r, s.sess.Entry)
}

// selectHistoryItem makes the entry the current consultation
func (s *server) selectHistoryItem(w http.ResponseWriter, r *http.Request) {
	s.historyItem(w, r, s.sess.Select)
}

func (s *server) historyItem(w http.ResponseWriter, r *http.Request,
	lookup func(context.Context, int64) (*consult.Entry, bool)) {
	id, err := cast.ToInt64E(chi.URLParam(r, "id"))
	if err != nil {
		apiFail(w, r, 400, "invalid id")
		return
	}
	e, ok := lookup(r.Context(), id)
	if !ok {
		apiFail(w, r, 404, "history item not found")
		return
	}
	apiOk(w, r, e)
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	apiOk(w, r, s.sess.Status())
}

func (s *server) getStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.sess.Subscribe()
	defer s.sess.Unsubscribe(ch)

	var idx int
	if !writeEvent(w, strconv.Itoa(idx), s.sess.Status()) {
		return
	}
	flusher.Flush()
	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-ch:
			if !ok {
				return
			}
			idx++
			if !writeEvent(w, strconv.Itoa(idx), st) {
				return
			}
			flusher.Flush()
		}
	}
}

// writeEvent write one server-sent event
func writeEvent(w io.Writer, id string, m any) bool {
	b, err := json.Marshal(m)
	if err != nil {
		logger().Infow("json marshal fail", "m", m, "err", err)
		return false
	}

	if err = eventsource.WriteEvent(w, eventsource.Event{
		ID:   id,
		Data: b,
	}); err != nil {
		logger().Infow("eventsource write fail", "err", err)
		return false
	}

	return true
}

func (s *server) getSettings(w http.ResponseWriter, r *http.Request) {
	apiOk(w, r, M{
		"baseEndpoint": strings.TrimRight(settings.Current.APIBaseURL, "/"),
		"storageMode":  settings.Current.HistoryBackend,
		"historyKey":   settings.Current.HistoryKey,
		"version":      settings.Current.Version,
	})
}
