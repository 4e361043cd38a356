package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const maxBodySize = 1 << 20

var errBadRequest = errors.New("bad request")

// HostHandler exposes the host controls of a session as a JSON API.
type HostHandler struct {
	service *app.QuizService
}

func NewHostHandler(service *app.QuizService) *HostHandler {
	return &HostHandler{service: service}
}

func (h *HostHandler) register(mux *httprouter.Router) {
	mux.GET("/host/state", h.state)
	mux.POST("/host/questions", h.loadQuestions)
	mux.POST("/host/start", h.start)
	mux.POST("/host/next", h.next)
	mux.GET("/host/grading", h.pending)
	mux.POST("/host/grade", h.grade)
	mux.POST("/host/restart", h.restart)
	mux.POST("/host/timeup", h.timeUp)
	mux.POST("/host/timer", h.timer)
	mux.POST("/host/players/:name/score", h.score)
}

func (h *HostHandler) state(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, h.service.Session().Snapshot())
}

func (h *HostHandler) loadQuestions(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Ref string `json:"ref"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Ref == "" {
		writeError(w, r, badRequest("ref is required"))
		return
	}

	set, err := h.service.LoadQuestions(r.Context(), req.Ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": set.ID(), "questions": set.Len()})
}

func (h *HostHandler) start(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.do(w, r, h.service.Session().Start(r.Context()))
}

func (h *HostHandler) next(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	force := false
	if raw := r.URL.Query().Get("force"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, r, badRequest("force must be a boolean"))
			return
		}
		force = v
	}
	h.do(w, r, h.service.Session().Advance(r.Context(), force))
}

func (h *HostHandler) pending(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	review, ok := h.service.Session().PendingGrading()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, review)
}

func (h *HostHandler) grade(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Correct *bool `json:"correct"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Correct == nil {
		writeError(w, r, badRequest("correct is required"))
		return
	}

	res, err := h.service.Session().GradeOne(r.Context(), *req.Correct)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *HostHandler) restart(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.do(w, r, h.service.Session().Restart(r.Context()))
}

func (h *HostHandler) timeUp(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.service.Session().TimeUp(r.Context())
	h.do(w, r, nil)
}

func (h *HostHandler) timer(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req struct {
		Enabled bool `json:"enabled"`
		Seconds int  `json:"seconds"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	h.service.Session().SetTimer(r.Context(), req.Enabled, req.Seconds)
	h.do(w, r, nil)
}

func (h *HostHandler) score(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req struct {
		Delta *int `json:"delta"`
		Value *int `json:"value"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	name := ps.ByName("name")
	session := h.service.Session()
	var err error
	switch {
	case req.Delta != nil && req.Value == nil:
		err = session.AdjustScore(r.Context(), name, *req.Delta)
	case req.Value != nil && req.Delta == nil:
		err = session.SetScore(r.Context(), name, *req.Value)
	default:
		err = badRequest("exactly one of delta or value is required")
	}
	h.do(w, r, err)
}

// do answers a host command with the resulting state, or the error.
func (h *HostHandler) do(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.service.Session().Snapshot())
}

func badRequest(msg string) error {
	return errors.Join(errBadRequest, errors.New(msg))
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, domain.ErrInvalidQuestion):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrPlayerNotFound),
		errors.Is(err, domain.ErrQuestionSetNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNoPlayers),
		errors.Is(err, domain.ErrNoQuestions),
		errors.Is(err, domain.ErrQuizInProgress),
		errors.Is(err, domain.ErrQuizNotRunning),
		errors.Is(err, domain.ErrAnswersPending),
		errors.Is(err, domain.ErrNoPendingGrading):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "http: host request failed", "path", r.URL.Path, "error", err)
	}
	msg := err.Error()
	if errors.Is(err, errBadRequest) {
		// Drop the sentinel line errors.Join put in front.
		msg = msg[len(errBadRequest.Error())+1:]
	}
	writeJSON(w, status, errorBody{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("http: write response", "error", err)
	}
}
