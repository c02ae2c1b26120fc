package game

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"review-rush-go/internal/game/modes"
)

const writeWait = 10 * time.Second

type Handler struct {
	service  Service
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service: service,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

type StartSessionRequest struct {
	Mode modes.GameMode `json:"mode"`
}

type SessionResponse struct {
	SessionID string  `json:"session_id"`
	State     UiState `json:"state"`
}

type AnswerRequest struct {
	ItemID *int64 `json:"item_id"`
}

type HintResponse struct {
	Hint  Hint    `json:"hint"`
	State UiState `json:"state"`
}

type HighScoreResponse struct {
	Mode      modes.GameMode `json:"mode"`
	HighScore int            `json:"high_score"`
}

type ModeResponse struct {
	Mode             modes.GameMode `json:"mode"`
	Name             string         `json:"name"`
	Lives            int            `json:"lives"`
	PointsPerCorrect int            `json:"points_per_correct"`
	HintsAllowed     bool           `json:"hints_allowed"`
	HintCost         int            `json:"hint_cost,omitempty"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req StartSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	mode, err := modes.Parse(string(req.Mode))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, state, err := h.service.StartSession(r.Context(), mode)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, SessionResponse{SessionID: id, State: state})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("sessionID")
	state, err := h.service.State(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: state})
}

func (h *Handler) Answer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.ItemID == nil {
		http.Error(w, "item_id is required", http.StatusBadRequest)
		return
	}

	id := ps.ByName("sessionID")
	state, err := h.service.Answer(r.Context(), id, *req.ItemID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: state})
}

func (h *Handler) Hint(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	hint, state, err := h.service.Hint(r.Context(), ps.ByName("sessionID"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HintResponse{Hint: hint, State: state})
}

func (h *Handler) Retry(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("sessionID")
	state, err := h.service.Retry(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: state})
}

func (h *Handler) Restart(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("sessionID")
	state, err := h.service.Restart(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, SessionResponse{SessionID: id, State: state})
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := h.service.End(r.Context(), ps.ByName("sessionID")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetHighScore(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	mode, err := modes.Parse(ps.ByName("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	score, err := h.service.HighScore(r.Context(), mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, HighScoreResponse{Mode: mode, HighScore: score})
}

func (h *Handler) ListModes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	all := modes.All()
	out := make([]ModeResponse, 0, len(all))
	for _, m := range all {
		s := modes.DefaultSettings(m)
		out = append(out, ModeResponse{
			Mode:             m,
			Name:             m.DisplayName(),
			Lives:            s.Lives,
			PointsPerCorrect: s.PointsPerCorrect,
			HintsAllowed:     s.HintsAllowed,
			HintCost:         s.HintCost,
		})
	}
	h.writeJSON(w, http.StatusOK, out)
}

// SubscribeToEvents upgrades to a websocket and streams the session's events
// until the client goes away or the session ends.
func (h *Handler) SubscribeToEvents(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("sessionID")
	if _, err := h.service.State(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "session_id", id, "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reads only detect the client closing the socket.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, err := h.service.Watch(ctx, id)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, err.Error()))
		return
	}

	for event := range events {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("websocket write failed", "session_id", id, "error", err)
			return
		}
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"))
}

func (h *Handler) Routes() http.Handler {
	router := httprouter.New()

	router.GET("/modes", h.ListModes)
	router.GET("/high-scores/:mode", h.GetHighScore)
	router.POST("/sessions", h.StartSession)
	router.GET("/sessions/:sessionID", h.GetSession)
	router.DELETE("/sessions/:sessionID", h.EndSession)
	router.POST("/sessions/:sessionID/answer", h.Answer)
	router.POST("/sessions/:sessionID/hint", h.Hint)
	router.POST("/sessions/:sessionID/retry", h.Retry)
	router.POST("/sessions/:sessionID/restart", h.Restart)
	router.GET("/sessions/:sessionID/events", h.SubscribeToEvents)

	return LoggingMiddleware(h.logger)(router)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", "error", err)
	}
	http.Error(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidMode):
		return http.StatusBadRequest
	case errors.Is(err, ErrInputLocked),
		errors.Is(err, ErrNoActiveRound),
		errors.Is(err, ErrHintNotAllowed),
		errors.Is(err, ErrInsufficientScore),
		errors.Is(err, ErrHintAlreadyUsed),
		errors.Is(err, ErrNotRetryable),
		errors.Is(err, ErrEngineClosed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
