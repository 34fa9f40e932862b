package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"quiz-assessment-service/internal/app"
	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/leaderboard"
)

// NewRouter mounts the websocket endpoint next to read-only JSON views,
// health and metrics.
func NewRouter(service *app.AssessmentService, metricsHandler http.Handler, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	ws := NewWSHandler(service, logger)
	api := &restHandler{service: service}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Get("/ws", ws.ServeWS)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/leaderboards/{subject}/{grade}", api.leaderboard)
		r.Get("/leaderboards/{subject}/{grade}/users/{userID}", api.rank)
		r.Get("/users/{userID}/history", api.history)
	})
	return r
}

type restHandler struct {
	service *app.AssessmentService
}

func (h *restHandler) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, errInvalidPayload)
			return
		}
		limit = n
	}
	lb, err := h.service.GetLeaderboard(r.Context(), leaderboard.Query{
		Subject:    chi.URLParam(r, "subject"),
		GradeLevel: chi.URLParam(r, "grade"),
		Ranking:    domain.RankingType(r.URL.Query().Get("ranking")),
		Limit:      limit,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *restHandler) rank(w http.ResponseWriter, r *http.Request) {
	rank, err := h.service.GetUserRank(r.Context(),
		chi.URLParam(r, "userID"), chi.URLParam(r, "subject"), chi.URLParam(r, "grade"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rank)
}

func (h *restHandler) history(w http.ResponseWriter, r *http.Request) {
	history, err := h.service.History(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	payload := toErrorPayload(err)
	status := http.StatusInternalServerError
	switch payload.Code {
	case "invalid_request":
		status = http.StatusBadRequest
	case "not_found":
		status = http.StatusNotFound
	case "conflict":
		status = http.StatusConflict
	case "forbidden":
		status = http.StatusForbidden
	}
	if errors.Is(err, domain.ErrHintLimitReached) {
		status = http.StatusTooManyRequests
	}
	writeJSON(w, status, payload)
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(started)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
