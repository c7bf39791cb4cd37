package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"kanbanBackend/internal/auth"
	"kanbanBackend/internal/service"
)

// Greeting is served on GET /.
const Greeting = "Hello Bebou!"

const serverErrorText = "Error on the server."

type handlers struct {
	auth   *service.AuthService
	cards  *service.CardService
	logger *slog.Logger
}

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type cardRequest struct {
	ID          flexID `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Priority    string `json:"priority"`
}

func (c cardRequest) input() service.CardInput {
	return service.CardInput{Title: c.Title, Description: c.Description, Status: c.Status, Priority: c.Priority}
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	respondWithText(w, http.StatusOK, Greeting)
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithText(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	id, err := h.auth.Register(r.Context(), service.RegisterInput{Username: req.Username, Email: req.Email, Password: req.Password})
	if err != nil {
		h.logError(r, "register", err)
		respondWithText(w, http.StatusBadRequest, "Unable to create user")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]int64{"userId": id})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithText(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	tok, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		respondWithJSON(w, http.StatusOK, map[string]string{"token": tok})
	case errors.Is(err, service.ErrNotFound):
		respondWithText(w, http.StatusNotFound, "User not found.")
	case errors.Is(err, service.ErrUnauthorized):
		respondWithText(w, http.StatusUnauthorized, "Password is not valid.")
	default:
		h.logError(r, "login", err)
		respondWithText(w, http.StatusInternalServerError, serverErrorText)
	}
}

// caller resolves the gate's principal; a route configured without a token
// check cannot serve card operations.
func (h *handlers) caller(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	p, err := auth.RequirePrincipal(r.Context())
	if err != nil {
		respondWithJSON(w, http.StatusUnauthorized, map[string]any{"auth": false, "message": "No token provided."})
		return nil, false
	}
	return p, true
}

func (h *handlers) scope(r *http.Request, p *auth.Principal) service.Scope {
	return service.Scope{UserID: p.UserID, OwnerOnly: auth.RoutePolicyFromContext(r.Context()).OwnerOnly}
}

func (h *handlers) listCards(w http.ResponseWriter, r *http.Request) {
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	cards, err := h.cards.List(r.Context(), p.UserID)
	if err != nil {
		h.logError(r, "list cards", err)
		respondWithText(w, http.StatusInternalServerError, serverErrorText)
		return
	}
	respondWithJSON(w, http.StatusOK, cards)
}

func (h *handlers) createCard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req cardRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithText(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	id, err := h.cards.Create(r.Context(), p.UserID, req.input())
	if err != nil {
		h.logError(r, "create card", err)
		respondWithText(w, http.StatusBadRequest, "Unable to create card")
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]int64{"cardId": id})
}

func (h *handlers) updateCard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req cardRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithText(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	id, err := h.cards.Update(r.Context(), h.scope(r, p), int64(req.ID), req.input())
	if err != nil {
		h.mutationFailed(w, r, "Unable to update card", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]int64{"cardId": id})
}

func (h *handlers) deleteCard(w http.ResponseWriter, r *http.Request) {
	p, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req cardRequest
	if err := decodeBody(w, r, &req); err != nil {
		respondWithText(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	id, err := h.cards.Delete(r.Context(), h.scope(r, p), int64(req.ID))
	if err != nil {
		h.mutationFailed(w, r, "Unable to delete card", err)
		return
	}
	respondWithJSON(w, http.StatusCreated, map[string]int64{"cardId": id})
}

func (h *handlers) mutationFailed(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, service.ErrNotFound) {
		respondWithText(w, http.StatusNotFound, "Card not found.")
		return
	}
	h.logError(r, msg, err)
	respondWithText(w, http.StatusBadRequest, msg)
}

// logError records the failure server-side; clients only see generic text.
func (h *handlers) logError(r *http.Request, op string, err error) {
	level := slog.LevelError
	if errors.Is(err, service.ErrInvalidInput) || errors.Is(err, service.ErrDuplicate) {
		level = slog.LevelInfo
	}
	h.logger.Log(r.Context(), level, op+" failed", "err", err, "request_id", RequestIDFromContext(r.Context()))
}
