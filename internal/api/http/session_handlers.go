package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/testnav/internal/jump"
	"github.com/mind-engage/testnav/internal/navigator"
	"github.com/mind-engage/testnav/internal/session"
	"github.com/mind-engage/testnav/internal/testmap"
)

// StartSessionHandler boots a session from a full-scope test-map payload.
// POST /api/sessions  { "test_id": "...", "user_id": "...", "map": {...} }
func StartSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			TestID string          `json:"test_id"`
			UserID string          `json:"user_id"`
			Map    json.RawMessage `json:"map"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.TestID == "" || req.UserID == "" || len(req.Map) == 0 {
			http.Error(w, "test_id, user_id and map required", 400)
			return
		}
		tm, err := testmap.Parse(req.Map)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		s, token, err := mgr.Start(r.Context(), req.TestID, req.UserID, tm)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id":   s.ID,
			"resume_token": token,
			"context":      s.Context(),
		})
	}
}

// ResumeSessionHandler rebuilds a session from the event log.
// POST /api/sessions/resume  { "resume_token": "...", "map": {...} }
func ResumeSessionHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ResumeToken string          `json:"resume_token"`
			Map         json.RawMessage `json:"map"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		tm, err := testmap.Parse(req.Map)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		s, err := mgr.Resume(r.Context(), req.ResumeToken, tm)
		if err != nil {
			http.Error(w, err.Error(), 401)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"session_id": s.ID,
			"context":    s.Context(),
		})
	}
}

// NavigateHandler performs one navigation action.
// POST /api/sessions/{sessionID}/nav
func NavigateHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := requireSession(w, r, mgr)
		if !ok {
			return
		}
		var req navigator.Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		tc, err := s.Navigate(r.Context(), req)
		if err != nil {
			writeNavError(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(tc)
	}
}

// ContextHandler returns the current test context.
// GET /api/sessions/{sessionID}/context
func ContextHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := requireSession(w, r, mgr)
		if !ok {
			return
		}
		_ = json.NewEncoder(w).Encode(s.Context())
	}
}

// JumpsHandler returns the navigation history.
// GET /api/sessions/{sessionID}/jumps
func JumpsHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := requireSession(w, r, mgr)
		if !ok {
			return
		}
		_ = json.NewEncoder(w).Encode(s.Jumps())
	}
}

// PatchMapHandler merges a scoped test-map patch into the session.
// PUT /api/sessions/{sessionID}/map
func PatchMapHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := requireSession(w, r, mgr)
		if !ok {
			return
		}
		var payload json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		incoming, err := testmap.Parse(payload)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		s.ApplyMap(incoming)
		_ = json.NewEncoder(w).Encode(s.Map().Stats)
	}
}

// ResetHandler clears the jump table, gated by the proctor PIN.
// POST /api/sessions/{sessionID}/reset  { "pin": "..." }
func ResetHandler(mgr *session.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Pin string `json:"pin"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		s, err := mgr.Reset(r.Context(), chi.URLParam(r, "sessionID"), req.Pin)
		if err != nil {
			if errors.Is(err, session.ErrBadPin) {
				http.Error(w, "proctor pin rejected", http.StatusForbidden)
				return
			}
			http.Error(w, err.Error(), 400)
			return
		}
		_ = json.NewEncoder(w).Encode(s.Context())
	}
}

/* ----------------------------- helpers ----------------------------- */

func requireSession(w http.ResponseWriter, r *http.Request, mgr *session.Manager) (*session.Session, bool) {
	s, err := mgr.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return s, true
}

// writeNavError maps the navigation error taxonomy onto status codes so the
// UI can tell "unsupported action" from "blocked" from "finished".
func writeNavError(w http.ResponseWriter, err error) {
	var blocked *navigator.BlockedError
	switch {
	case navigator.IsInvalidAction(err):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, navigator.ErrEndOfTest):
		http.Error(w, "end of test", http.StatusConflict)
	case errors.As(err, &blocked):
		http.Error(w, blocked.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, jump.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// ResumeTokenMiddleware guards session routes with the bearer resume token;
// the token's session claim must match the addressed session.
func ResumeTokenMiddleware(tokens *session.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "missing bearer", http.StatusUnauthorized)
				return
			}
			claims, err := tokens.Parse(strings.TrimPrefix(h, "Bearer "))
			if err != nil {
				http.Error(w, "bad token", http.StatusUnauthorized)
				return
			}
			if sid := chi.URLParam(r, "sessionID"); sid != "" && sid != claims.SessionID {
				http.Error(w, "token does not match session", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
