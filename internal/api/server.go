package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mtlprog/indexfund/internal/auth"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, handler *Handler, tokens *auth.TokenIssuer) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      NewRouter(handler, tokens),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// NewRouter registers the API routes. Paths that match nothing get the placeholder 404.
func NewRouter(handler *Handler, tokens *auth.TokenIssuer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/token/new", handler.ObtainToken)
	mux.HandleFunc("POST /api/token/refresh", handler.RefreshToken)

	mux.HandleFunc("POST /api/user/new/{$}", handler.RegisterUser)
	mux.Handle("POST /api/user/profile/{$}", requireAuth(tokens, http.HandlerFunc(handler.UserProfile)))

	mux.Handle("POST /api/fund/save/{$}", requireAuth(tokens, http.HandlerFunc(handler.SaveFund)))

	mux.HandleFunc("/", handler.NotFound)

	return mux
}

func requireAuth(tokens *auth.TokenIssuer, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "authentication credentials were not provided")
			return
		}
		id, err := tokens.Verify(token)
		if err != nil {
			slog.Debug("rejected access token", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), id)))
	})
}
