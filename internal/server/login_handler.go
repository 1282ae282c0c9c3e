package server

import (
	"encoding/json"
	"net/http"

	"github.com/dgellow/popauth/internal/auth"
	"github.com/dgellow/popauth/internal/idp"
	jsonwriter "github.com/dgellow/popauth/internal/json"
	"github.com/dgellow/popauth/internal/log"
)

const (
	// LoginPath is the route of the login endpoint
	LoginPath = "/api/login"

	maxLoginBody = 1 << 20

	loggedInStatus = "You are now logged in"
)

// LoginHandler exchanges a provider authorization code for a user profile.
// Dispatch only looks the strategy up in the registry, so adding a provider
// never touches this handler.
type LoginHandler struct {
	providers *idp.Registry
}

// NewLoginHandler creates a login handler backed by providers
func NewLoginHandler(providers *idp.Registry) *LoginHandler {
	return &LoginHandler{providers: providers}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLoginBody)

	var req auth.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.LogDebugWithFields("server", "Malformed login request", map[string]any{
			"error": err.Error(),
		})
		jsonwriter.WriteUnprocessable(w, string(auth.KindInvalidRequest), "Malformed login request")
		return
	}

	strategy, err := auth.ParseStrategy(req.Strategy)
	if err != nil {
		writeLoginError(w, req.Strategy, err)
		return
	}
	provider, ok := h.providers.Lookup(strategy)
	if !ok {
		writeLoginError(w, req.Strategy, auth.Errorf(auth.KindInvalidStrategy, "Please provide a valid strategy"))
		return
	}

	profile, err := provider.Exchange(r.Context(), req.TempToken)
	if err != nil {
		writeLoginError(w, req.Strategy, err)
		return
	}

	log.LogInfoWithFields("server", loggedInStatus, map[string]any{
		"strategy": strategy,
		"email":    profile.Email,
	})
	_ = jsonwriter.Write(w, auth.Result{Strategy: strategy, Profile: profile})
}

func writeLoginError(w http.ResponseWriter, strategy string, err error) {
	classified := auth.Classify(err)
	fields := map[string]any{
		"strategy": strategy,
		"kind":     classified.Kind,
		"error":    err.Error(),
	}
	if classified.Kind == auth.KindInternal {
		log.LogErrorWithFields("server", "Login failed", fields)
	} else {
		log.LogInfoWithFields("server", "Login rejected", fields)
	}
	jsonwriter.WriteUnprocessable(w, string(classified.Kind), classified.Message)
}
