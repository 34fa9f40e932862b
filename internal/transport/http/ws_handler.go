package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"quiz-assessment-service/internal/app"
	"quiz-assessment-service/internal/domain"
	"quiz-assessment-service/internal/leaderboard"
)

type WSHandler struct {
	service  *app.AssessmentService
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.AssessmentService, logger *zap.Logger) *WSHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WSHandler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type quizPayload struct {
	QuizID string `json:"quizId"`
}

type submitPayload struct {
	QuizID    string            `json:"quizId"`
	StartedAt time.Time         `json:"startedAt"`
	Answers   []app.AnswerInput `json:"answers"`
}

type answerPayload struct {
	QuizID string `json:"quizId"`
	app.AnswerInput
}

type hintPayload struct {
	QuizID     string `json:"quizId"`
	QuestionID string `json:"questionId"`
}

type partitionPayload struct {
	Subject    string             `json:"subject"`
	GradeLevel string             `json:"gradeLevel"`
	Ranking    domain.RankingType `json:"ranking,omitempty"`
	Limit      int                `json:"limit,omitempty"`
}

// connection is the per-socket state. All writes go through send so that
// only the writer goroutine touches the socket.
type connection struct {
	userID      string
	displayName string
	send        chan outboundMessage
	writerDone  chan struct{}
	closed      chan struct{}

	mu          sync.Mutex
	unsubscribe func()
	forwarders  sync.WaitGroup
}

// ServeWS upgrades HTTP requests to websockets and wires them into the assessment use cases.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	displayName := r.URL.Query().Get("name")
	if userID == "" || displayName == "" {
		http.Error(w, "missing userId or name", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	c := &connection{
		userID:      userID,
		displayName: displayName,
		send:        make(chan outboundMessage, 16),
		writerDone:  make(chan struct{}),
		closed:      make(chan struct{}),
	}

	go func() {
		defer close(c.writerDone)
		for msg := range c.send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.String("user_id", userID), zap.Error(err))
				return
			}
		}
	}()

	c.emit(outboundMessage{Type: "connected", Payload: map[string]string{"userId": userID}})

	ctx := r.Context()
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply, err := h.dispatch(ctx, c, inbound)
		if err != nil {
			c.emit(outboundMessage{ID: inbound.ID, Type: "error", Payload: toErrorPayload(err)})
			continue
		}
		reply.ID = inbound.ID
		c.emit(reply)
	}

	close(c.closed)
	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.mu.Unlock()
	c.forwarders.Wait()
	close(c.send)
	<-c.writerDone
}

func (h *WSHandler) dispatch(ctx context.Context, c *connection, in inboundMessage) (outboundMessage, error) {
	switch in.Type {
	case "submit":
		var p submitPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		eval, err := h.service.SubmitQuiz(ctx, app.SubmitRequest{
			UserID:      c.userID,
			DisplayName: c.displayName,
			QuizID:      p.QuizID,
			StartedAt:   p.StartedAt,
			Answers:     p.Answers,
		})
		return outboundMessage{Type: "evaluation", Payload: eval}, err

	case "next":
		var p quizPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		next, err := h.service.NextQuestion(ctx, c.userID, c.displayName, p.QuizID)
		return outboundMessage{Type: "question", Payload: next}, err

	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		result, err := h.service.AnswerAdaptive(ctx, c.userID, p.QuizID, p.AnswerInput)
		return outboundMessage{Type: "answerResult", Payload: result}, err

	case "finish":
		var p quizPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		eval, err := h.service.FinishAdaptive(ctx, c.userID, p.QuizID)
		return outboundMessage{Type: "evaluation", Payload: eval}, err

	case "status":
		var p quizPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		status, err := h.service.AdaptiveStatus(ctx, c.userID, p.QuizID)
		return outboundMessage{Type: "status", Payload: status}, err

	case "hint":
		var p hintPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		hint, err := h.service.RequestHint(ctx, c.userID, p.QuizID, p.QuestionID)
		return outboundMessage{Type: "hint", Payload: hint}, err

	case "resetHints":
		var p hintPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		err := h.service.ResetHints(ctx, c.userID, p.QuestionID)
		return outboundMessage{Type: "hintsReset", Payload: p}, err

	case "leaderboard":
		var p partitionPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		lb, err := h.service.GetLeaderboard(ctx, leaderboard.Query{
			Subject:    p.Subject,
			GradeLevel: p.GradeLevel,
			Ranking:    p.Ranking,
			Limit:      p.Limit,
		})
		return outboundMessage{Type: "leaderboard", Payload: lb}, err

	case "rank":
		var p partitionPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		rank, err := h.service.GetUserRank(ctx, c.userID, p.Subject, p.GradeLevel)
		return outboundMessage{Type: "rank", Payload: rank}, err

	case "subscribe":
		var p partitionPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		if err := h.subscribe(ctx, c, p); err != nil {
			return outboundMessage{}, err
		}
		return outboundMessage{Type: "subscribed", Payload: p}, nil

	case "history":
		history, err := h.service.History(ctx, c.userID)
		return outboundMessage{Type: "history", Payload: history}, err

	case "deleteQuiz":
		var p quizPayload
		if err := decode(in.Payload, &p); err != nil {
			return outboundMessage{}, err
		}
		err := h.service.DeleteQuiz(ctx, p.QuizID)
		return outboundMessage{Type: "quizDeleted", Payload: p}, err
	}
	return outboundMessage{}, errUnsupported
}

// subscribe replaces the connection's leaderboard subscription.
func (h *WSHandler) subscribe(ctx context.Context, c *connection, p partitionPayload) error {
	updates, cancel, err := h.service.SubscribeLeaderboard(ctx, p.Subject, p.GradeLevel)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.unsubscribe = cancel
	c.forwarders.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.forwarders.Done()
		for update := range updates {
			select {
			case c.send <- outboundMessage{Type: "leaderboardUpdate", Payload: update}:
			case <-c.closed:
				return
			}
		}
	}()
	return nil
}

func (c *connection) emit(msg outboundMessage) {
	select {
	case c.send <- msg:
	case <-c.writerDone:
	}
}

var (
	errUnsupported    = errors.New("unsupported message type")
	errInvalidPayload = errors.New("invalid payload")
)

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return errInvalidPayload
	}
	return nil
}

func toErrorPayload(err error) errorPayload {
	return errorPayload{Code: errorCode(err), Message: err.Error()}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidSubmission), errors.Is(err, errInvalidPayload):
		return "invalid_request"
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSubmissionNotFound),
		errors.Is(err, domain.ErrNotRanked):
		return "not_found"
	case errors.Is(err, domain.ErrHintLimitReached):
		return "hint_limit_reached"
	case errors.Is(err, domain.ErrHintUnavailable):
		return "hint_unavailable"
	case errors.Is(err, domain.ErrQuizNotAdaptive),
		errors.Is(err, domain.ErrQuizEmpty),
		errors.Is(err, domain.ErrSubmissionCompleted),
		errors.Is(err, domain.ErrDuplicateAnswer),
		errors.Is(err, domain.ErrQuestionAnswered),
		errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrHintResetDisabled):
		return "forbidden"
	case errors.Is(err, errUnsupported):
		return "unsupported"
	}
	return "internal"
}
