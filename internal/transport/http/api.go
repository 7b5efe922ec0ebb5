package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"quizmusic-service/internal/app"
	"quizmusic-service/internal/domain"
)

// UserHeader carries the player identity on submissions.
const UserHeader = "X-User-ID"

// APIHandler exposes the quiz use cases as JSON over HTTP.
type APIHandler struct {
	service *app.QuizService
	log     *zap.Logger
}

func NewAPIHandler(service *app.QuizService, log *zap.Logger) *APIHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &APIHandler{service: service, log: log}
}

type startRequest struct {
	ThemeCode string `json:"themeCode"`
}

type quizResponse struct {
	SessionID string             `json:"sessionId"`
	Theme     domain.Theme       `json:"theme"`
	State     app.SessionState   `json:"state"`
	Total     int                `json:"total"`
	Prompts   []domain.Prompt    `json:"prompts"`
	Levels    []domain.LevelBand `json:"levels,omitempty"`
}

type answersRequest struct {
	Answers        map[int]int `json:"answers"`
	ElapsedSeconds *int        `json:"elapsedSeconds,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register mounts the API routes on mux.
func (h *APIHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /themes", h.listThemes)
	mux.HandleFunc("POST /quizzes", h.startQuiz)
	mux.HandleFunc("GET /quizzes/{id}", h.getQuiz)
	mux.HandleFunc("DELETE /quizzes/{id}", h.abandonQuiz)
	mux.HandleFunc("POST /quizzes/{id}/answers", h.submitAnswers)
	mux.HandleFunc("POST /quizzes/{id}/score", h.recordScore)
	mux.HandleFunc("GET /users/{id}/history", h.history)
	mux.HandleFunc("GET /levels", h.levels)
}

func (h *APIHandler) health(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (h *APIHandler) listThemes(w http.ResponseWriter, r *http.Request) {
	themes, err := h.service.ListThemes(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, themes)
}

func (h *APIHandler) startQuiz(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ThemeCode == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "themeCode is required"})
		return
	}
	session, err := h.service.StartQuiz(r.Context(), req.ThemeCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.quizView(session))
}

func (h *APIHandler) getQuiz(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.Session(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.quizView(session))
}

func (h *APIHandler) abandonQuiz(w http.ResponseWriter, r *http.Request) {
	h.service.Abandon(r.Context(), r.PathValue("id"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) submitAnswers(w http.ResponseWriter, r *http.Request) {
	var req answersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid answers payload"})
		return
	}
	result, err := h.service.Submit(r.Context(), r.PathValue("id"), app.Submission{
		UserID:         r.Header.Get(UserHeader),
		Answers:        req.Answers,
		ElapsedSeconds: req.ElapsedSeconds,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// recordScore retries persisting the score of a graded session.
func (h *APIHandler) recordScore(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RecordScore(r.Context(), r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *APIHandler) history(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a number"})
			return
		}
		limit = n
	}
	report, err := h.service.History(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *APIHandler) levels(w http.ResponseWriter, r *http.Request) {
	total := domain.DefaultQuestionCount
	if raw := r.URL.Query().Get("total"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "total must be a number"})
			return
		}
		total = n
	}
	bands, err := h.service.Levels(total)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bands)
}

func (h *APIHandler) quizView(session *app.Session) quizResponse {
	view := quizResponse{
		SessionID: session.ID(),
		Theme:     session.Theme(),
		State:     session.State(),
		Total:     session.Total(),
		Prompts:   session.Prompts(),
	}
	if bands, err := h.service.Levels(session.Total()); err == nil {
		view.Levels = bands
	}
	return view
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusConflict:
		h.log.Warn("request conflicts with session state", zap.Error(err))
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		h.log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
