package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"tequest-attempts/internal/app"
	"tequest-attempts/internal/domain"
)

// Identity headers set by the upstream authenticator.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

// API exposes the attempt lifecycle as JSON over HTTP.
type API struct {
	service *app.AttemptService
	ws      *WSHandler
}

func NewAPI(service *app.AttemptService, feed *app.LeaderboardFeed) *API {
	return &API{service: service, ws: NewWSHandler(feed)}
}

// Routes returns the mux serving every endpoint.
func (a *API) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /quizzes", a.listQuizzes)
	mux.HandleFunc("GET /quizzes/{id}", a.quizDetail)
	mux.HandleFunc("POST /quizzes/{id}/attempts", a.withUser(a.startAttempt))
	mux.HandleFunc("GET /quizzes/{id}/leaderboard", a.leaderboard)
	mux.HandleFunc("GET /quizzes/{id}/leaderboard/ws", a.ws.ServeWS)
	mux.HandleFunc("GET /attempts/{id}", a.withUser(a.getAttempt))
	mux.HandleFunc("POST /attempts/{id}/mcq", a.withUser(a.submitMCQ))
	mux.HandleFunc("POST /attempts/{id}/crossword", a.withUser(a.submitCrossword))
	mux.HandleFunc("POST /attempts/{id}/finalize", a.withUser(a.finalize))
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, user domain.User)

func (a *API) withUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		if userID == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing " + HeaderUserID})
			return
		}
		next(w, r, domain.User{ID: userID, Email: r.Header.Get(HeaderUserEmail)})
	}
}

func (a *API) listQuizzes(w http.ResponseWriter, r *http.Request) {
	quizzes, err := a.service.ListActiveQuizzes(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]quizSummary, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, summaryOf(q))
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) quizDetail(w http.ResponseWriter, r *http.Request) {
	quiz, err := a.service.QuizDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detailOf(quiz))
}

func (a *API) startAttempt(w http.ResponseWriter, r *http.Request, user domain.User) {
	attempt, err := a.service.StartAttempt(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, attempt)
}

func (a *API) getAttempt(w http.ResponseWriter, r *http.Request, user domain.User) {
	attempt, err := a.service.GetAttempt(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) submitMCQ(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req mcqRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ref := domain.ItemRef{Kind: domain.ItemMCQ, ID: req.QuestionID}
	result, err := a.service.SubmitAnswer(r.Context(), user, r.PathValue("id"), ref, req.SelectedOption)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) submitCrossword(w http.ResponseWriter, r *http.Request, user domain.User) {
	var req crosswordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ref := domain.ItemRef{Kind: domain.ItemCrossword, ID: req.ClueID}
	result, err := a.service.SubmitAnswer(r.Context(), user, r.PathValue("id"), ref, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *API) finalize(w http.ResponseWriter, r *http.Request, user domain.User) {
	attempt, err := a.service.FinalizeAttempt(r.Context(), user, r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, attempt)
}

func (a *API) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	lb, err := a.service.Leaderboard(r.Context(), r.PathValue("id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// statusFor maps an error class to its HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAttemptNotAllowed):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		log.Printf("http: internal error: %v", err)
		msg = "internal error"
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("http: encode response: %v", err)
	}
}
