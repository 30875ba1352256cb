package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/testnav/internal/itemstore"
	"github.com/mind-engage/testnav/internal/session"
)

const apiMap = `{
  "scope": "test",
  "parts": {
    "P01": {
      "id": "P01", "position": 0, "isLinear": false,
      "sections": {
        "S01": {
          "id": "S01", "label": "Section One", "position": 0,
          "items": {
            "Q01": {"id": "Q01", "position": 0, "remainingAttempts": -1},
            "Q02": {"id": "Q02", "position": 1, "remainingAttempts": -1}
          }
        }
      }
    }
  }
}`

func testRouter(t *testing.T) (*chi.Mux, *session.Manager, *session.TokenIssuer) {
	t.Helper()
	pin, err := bcrypt.GenerateFromPassword([]byte("4711"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	tokens := session.NewTokenIssuer("test-secret")
	stores := func(string) itemstore.Store { return itemstore.NewMemoryStore(0) }
	mgr := session.NewManager(stores, nil, tokens, string(pin))

	r := chi.NewRouter()
	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", StartSessionHandler(mgr))
		r.Post("/resume", ResumeSessionHandler(mgr))
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Use(ResumeTokenMiddleware(tokens))
			r.Post("/nav", NavigateHandler(mgr))
			r.Get("/context", ContextHandler(mgr))
			r.Get("/jumps", JumpsHandler(mgr))
			r.Put("/map", PatchMapHandler(mgr))
			r.Post("/reset", ResetHandler(mgr))
		})
	})
	return r, mgr, tokens
}

func startSession(t *testing.T, r http.Handler) (sessionID, token string) {
	t.Helper()
	body := `{"test_id":"test-1","user_id":"u1","map":` + apiMap + `}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions", bytes.NewBufferString(body)))
	if rec.Code != 200 {
		t.Fatalf("start: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		SessionID   string `json:"session_id"`
		ResumeToken string `json:"resume_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	return resp.SessionID, resp.ResumeToken
}

func authed(method, target, body, token string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestStartAndNavigate(t *testing.T) {
	r, _, _ := testRouter(t)
	sid, token := startSession(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/nav", `{"direction":"next","scope":"item"}`, token))
	if rec.Code != 200 {
		t.Fatalf("nav: %d %s", rec.Code, rec.Body.String())
	}
	var tc struct {
		ItemIdentifier string `json:"itemIdentifier"`
		Attempt        int    `json:"attempt"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &tc); err != nil {
		t.Fatal(err)
	}
	if tc.ItemIdentifier != "Q02" || tc.Attempt != 1 {
		t.Fatalf("nav context = %+v", tc)
	}
}

func TestNavErrorStatusCodes(t *testing.T) {
	r, _, _ := testRouter(t)
	sid, token := startSession(t, r)

	// Unsupported action: 400.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/nav", `{"direction":"sideways","scope":"item"}`, token))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid action: %d", rec.Code)
	}

	// Blocked (no history behind Q01): 422.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/nav", `{"direction":"previous","scope":"item"}`, token))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("blocked: %d", rec.Code)
	}

	// End of test: advance past the last item, then 409.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/nav", `{"direction":"next","scope":"item"}`, token))
	if rec.Code != 200 {
		t.Fatalf("setup nav: %d", rec.Code)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/nav", `{"direction":"next","scope":"item"}`, token))
	if rec.Code != http.StatusConflict {
		t.Fatalf("end of test: %d", rec.Code)
	}
}

func TestResumeTokenGuardsRoutes(t *testing.T) {
	r, _, tokens := testRouter(t)
	sid, token := startSession(t, r)

	// No token.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/"+sid+"/context", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing bearer: %d", rec.Code)
	}

	// Token for a different session.
	other, err := tokens.Issue("some-other-session", "test-1", "u1")
	if err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed("GET", "/api/sessions/"+sid+"/context", "", other))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("mismatched token: %d", rec.Code)
	}

	// The right token works.
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed("GET", "/api/sessions/"+sid+"/context", "", token))
	if rec.Code != 200 {
		t.Fatalf("valid token: %d %s", rec.Code, rec.Body.String())
	}
}

func TestResetHonorsPin(t *testing.T) {
	r, _, _ := testRouter(t)
	sid, token := startSession(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/reset", `{"pin":"nope"}`, token))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("wrong pin: %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, authed("POST", "/api/sessions/"+sid+"/reset", `{"pin":"4711"}`, token))
	if rec.Code != 200 {
		t.Fatalf("reset: %d %s", rec.Code, rec.Body.String())
	}
}

func TestJumpsEndpoint(t *testing.T) {
	r, _, _ := testRouter(t)
	sid, token := startSession(t, r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, authed("GET", "/api/sessions/"+sid+"/jumps", "", token))
	if rec.Code != 200 {
		t.Fatalf("jumps: %d", rec.Code)
	}
	var entries []struct {
		Item     string `json:"item"`
		Position int    `json:"position"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Item != "Q01" {
		t.Fatalf("initial jump table = %+v", entries)
	}
}
