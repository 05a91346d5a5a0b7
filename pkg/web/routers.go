package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/ulule/limiter/v3"
	mstdlib "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/liut/medilink/pkg/settings"
)

type M = render.M

func corsMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if settings.AllowAllOrigins() {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if len(origin) > 0 {
			for _, o := range settings.Current.AllowOrigins {
				if strings.EqualFold(o, origin) {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					break
				}
			}
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// startLimitMw limits analysis starts per client ip, the remote service is costly
func (s *server) startLimitMw() func(http.Handler) http.Handler {
	if len(s.cfg.StartLimit) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	rate, err := limiter.NewRateFromFormatted(s.cfg.StartLimit)
	if err != nil {
		logger().Infow("invalid start limit, disabled", "limit", s.cfg.StartLimit, "err", err)
		return func(next http.Handler) http.Handler { return next }
	}
	mw := mstdlib.NewMiddleware(limiter.New(memory.NewStore(), rate))
	return mw.Handler
}

func (s *server) strapRouter() {

	s.ar.Get("/ping", handlerPing)

	s.ar.Route("/api", func(r chi.Router) {
		r.With(s.startLimitMw()).Post("/consultation/start", s.postStart)
		r.Get("/consultation/current", s.getCurrent)
		r.Delete("/consultation/current", s.deleteCurrent)

		r.Get("/history", s.getHistory)
		r.Delete("/history", s.clearHistory)
		r.Get("/history/{id}", s.getHistoryItem)
		r.Post("/history/{id}/select", s.selectHistoryItem)

		r.Get("/status", s.getStatus)
		r.Get("/status/stream", s.getStatusStream)
		r.Get("/settings", s.getSettings)
	})
}

func handleNoContent(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func handlerPing(w http.ResponseWriter, r *http.Request) {
	render.Data(w, r, []byte("Pong\n"))
}

func apiFail(w http.ResponseWriter, r *http.Request, status int, err interface{}) {
	res := render.M{
		"status": status,
		"error":  err,
	}
	switch ret := err.(type) {
	case error:
		res["message"] = ret.Error()
		res["error"] = ret.Error()
	case fmt.Stringer:
		res["message"] = ret.String()
	case string, *string, []byte:
		res["message"] = ret
	}
	render.Status(r, status)
	render.JSON(w, r, res)
}

type RespDone struct {
	Status  int    `json:"status"`
	Data    any    `json:"data,omitempty"`
	Count   int    `json:"count,omitempty"`
	Warning string `json:"warning,omitempty"`
}

func apiOk(w http.ResponseWriter, r *http.Request, args ...any) {
	res := &RespDone{}
	if len(args) > 0 && args[0] != nil {
		res.Data = args[0]
		if len(args) > 1 {
			if c, ok := args[1].(int); ok {
				res.Count = c
			}
		}
	}

	render.JSON(w, r, res)
}
