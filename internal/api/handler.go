package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mtlprog/indexfund/internal/auth"
	"github.com/mtlprog/indexfund/internal/domain"
	"github.com/mtlprog/indexfund/internal/email"
	"github.com/mtlprog/indexfund/internal/fund"
	"github.com/mtlprog/indexfund/internal/user"
)

const maxBodyBytes = 1 << 20

// Authenticator checks login credentials.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (auth.Identity, error)
}

// Handler provides HTTP endpoints for users, funds and tokens.
type Handler struct {
	users  *user.Service
	funds  *fund.Service
	logins Authenticator
	tokens *auth.TokenIssuer
}

// NewHandler creates a new API handler.
func NewHandler(users *user.Service, funds *fund.Service, logins Authenticator, tokens *auth.TokenIssuer) *Handler {
	return &Handler{users: users, funds: funds, logins: logins, tokens: tokens}
}

// ObtainToken handles POST /api/token/new.
func (h *Handler) ObtainToken(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	username := strings.TrimSpace(stringParam(rec, "username"))
	if strings.Contains(username, "@") {
		// Registered users log in with their email, stored normalized.
		username = email.Normalize(username)
	}
	password := stringParam(rec, "password")
	if username == "" || password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	id, err := h.logins.Authenticate(r.Context(), username, password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "no active account found with the given credentials")
			return
		}
		slog.Error("failed to authenticate", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	pair, err := h.tokens.Issue(id)
	if err != nil {
		slog.Error("failed to issue tokens", "username", username, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, pair)
}

// RefreshToken handles POST /api/token/refresh.
func (h *Handler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	refresh := stringParam(rec, "refresh")
	if refresh == "" {
		writeError(w, http.StatusBadRequest, "refresh is required")
		return
	}

	access, err := h.tokens.Refresh(refresh)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		slog.Error("failed to refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access": access})
}

// RegisterUser handles POST /api/user/new/.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	reg := user.Registration{
		Email:    stringParam(rec, "email_address"),
		Name:     stringParam(rec, "name"),
		Password: stringParam(rec, "password"),
	}
	if reg.Email == "" || reg.Password == "" {
		writeError(w, http.StatusBadRequest, "email_address and password are required")
		return
	}

	u, err := h.users.Register(r.Context(), reg)
	if err != nil {
		var verr *user.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, auth.ErrUserExists):
			writeError(w, http.StatusBadRequest, "a user with this email address already exists")
		case errors.Is(err, user.ErrPartialWrite):
			slog.Error("user registered without profile", "email", email.Normalize(reg.Email), "error", err)
			writeError(w, http.StatusInternalServerError, "account created but profile could not be saved")
		default:
			slog.Error("failed to register user", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": fmt.Sprintf("Created user %s", u.Email)})
}

// UserProfile handles POST /api/user/profile/.
func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	addr := email.Normalize(stringParam(rec, "email_address"))
	if addr == "" {
		writeError(w, http.StatusBadRequest, "email_address is required")
		return
	}
	caller, _ := auth.FromContext(r.Context())
	if !caller.CanActAs(addr) {
		writeError(w, http.StatusUnauthorized, "not allowed to view this profile")
		return
	}

	u, err := h.users.Load(r.Context(), addr)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		slog.Error("failed to load user profile", "email", addr, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// SaveFund handles POST /api/fund/save/.
func (h *Handler) SaveFund(w http.ResponseWriter, r *http.Request) {
	rec, ok := readRecord(w, r)
	if !ok {
		return
	}
	snap, err := domain.ParseIndexFundSnapshot(rec)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, _ := auth.FromContext(r.Context())

	saved, err := h.funds.Save(r.Context(), caller, snap)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformed):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, fund.ErrPermission):
			writeError(w, http.StatusUnauthorized, "not allowed to manage funds for this manager")
		case errors.Is(err, fund.ErrManagerConflict):
			writeError(w, http.StatusUnauthorized, "fund is managed by another user")
		default:
			slog.Error("failed to save fund", "fund_id", snap.FundID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	slog.Info("fund saved", "fund", saved.String(), "by", caller.Username)
	writeJSON(w, http.StatusOK, saved)
}

// NotFound answers every request that matches no route.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, "Nothing here...")
}

// readRecord decodes the JSON object body of r. On failure it writes a 400 and returns false.
func readRecord(w http.ResponseWriter, r *http.Request) (domain.Record, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read request body")
		return nil, false
	}
	rec, err := domain.DecodeRecord(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "request body must be a JSON object")
		return nil, false
	}
	return rec, true
}

func stringParam(rec domain.Record, key string) string {
	s, _ := rec[key].(string)
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
