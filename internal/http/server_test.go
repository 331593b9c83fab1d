package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pocketplan/internal/aggregate"
	"pocketplan/internal/auth"
	"pocketplan/internal/core"
	"pocketplan/internal/services"
	"pocketplan/internal/store/memory"
)

var fixedNow = time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

type outbox struct{ sent []auth.Message }

func (o *outbox) Send(ctx context.Context, msg auth.Message) error {
	o.sent = append(o.sent, msg)
	return nil
}

func (o *outbox) lastToken(t *testing.T) string {
	t.Helper()
	if len(o.sent) == 0 {
		t.Fatal("no mail sent")
	}
	body := o.sent[len(o.sent)-1].Body
	i := strings.Index(body, "token=")
	if i < 0 {
		t.Fatalf("no token in %q", body)
	}
	return body[i+len("token="):]
}

type testServer struct {
	srv  *Server
	mail *outbox
}

func newTestServer(t *testing.T, authRequired bool) *testServer {
	t.Helper()
	st := memory.New()
	b := aggregate.New(time.UTC, core.LocaleID)
	b.Now = func() time.Time { return fixedNow }

	mail := &outbox{}
	provider := auth.NewLocalProvider(st, auth.NewTokenBook(), auth.LocalOptions{
		BcryptCost:    bcrypt.MinCost,
		PublicBaseURL: "http://localhost:8080",
		Mailer:        mail,
	}, nil)

	srv := NewServer(Options{
		Addr:               ":0",
		Backend:            "memory",
		AuthRequired:       authRequired,
		Locale:             core.LocaleID,
		RateLimitPerMinute: 1000,
	}, Deps{
		Ledgers:  services.NewLedgerService(st, nil, b, services.LedgerOptions{}, nil),
		Provider: provider,
		Tokens:   auth.NewTokens("0123456789abcdef0123", time.Hour, nil),
		Store:    st,
	})
	return &testServer{srv: srv, mail: mail}
}

func (ts *testServer) do(t *testing.T, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestHealthReadyMetrics(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodGet, "/healthz", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rr.Code)
	}
	health := decode(t, rr)
	if health["ok"] != true || health["backend"] != "memory" || health["demo"] != true {
		t.Fatalf("unexpected health body %v", health)
	}
	if rr.Header().Get("X-Request-ID") == "" || rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("middleware headers missing: %v", rr.Header())
	}

	rr = ts.do(t, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusOK || decode(t, rr)["status"] != "ready" {
		t.Fatalf("readyz status=%d body=%s", rr.Code, rr.Body.String())
	}

	ts.do(t, http.MethodGet, "/api/summary", "", "")
	ts.do(t, http.MethodGet, "/api/summary", "", "")

	rr = ts.do(t, http.MethodGet, "/metrics", "", "")
	body := rr.Body.String()
	for _, want := range []string{"http_requests_total 4", "ledger_cache_misses_total 1", "ledger_cache_hits_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("metrics missing %q:\n%s", want, body)
		}
	}
}

func TestDemoLedgerFlow(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPatch, "/api/profile", `{"baseBalance":1000}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("set base balance status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/transactions", `{"category":"Salary","type":"income","amount":"500","date":"2025-01-14"}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create income status=%d body=%s", rr.Code, rr.Body.String())
	}
	created := decode(t, rr)
	notif := created["notification"].(map[string]any)
	if notif["type"] != "success" || !strings.Contains(notif["message"].(string), "(demo mode)") {
		t.Fatalf("unexpected notification %v", notif)
	}
	incomeID := created["transaction"].(map[string]any)["id"].(string)

	rr = ts.do(t, http.MethodPost, "/api/transactions", `{"category":"Food","type":"Expense","amount":200}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create expense status=%d body=%s", rr.Code, rr.Body.String())
	}
	expense := decode(t, rr)["transaction"].(map[string]any)
	if expense["date"] != "2025-01-15" {
		t.Fatalf("missing date should default to today, got %v", expense["date"])
	}

	rr = ts.do(t, http.MethodGet, "/api/summary", "", "")
	summary := decode(t, rr)
	if summary["balance"] != 1300.0 || summary["income"] != 500.0 || summary["expense"] != 200.0 {
		t.Fatalf("unexpected summary %v", summary)
	}
	if summary["formatted"].(map[string]any)["balance"] != "Rp 1.300" {
		t.Fatalf("unexpected formatted balance %v", summary["formatted"])
	}

	rr = ts.do(t, http.MethodGet, "/api/chart?days=2&granularity=daily", "", "")
	chart := decode(t, rr)
	income := chart["income"].([]any)
	expenses := chart["expense"].([]any)
	if len(chart["labels"].([]any)) != 2 || income[0] != 500.0 || expenses[1] != 200.0 {
		t.Fatalf("unexpected chart %v", chart)
	}

	rr = ts.do(t, http.MethodGet, "/api/transactions?type=expense", "", "")
	list := decode(t, rr)
	if list["count"] != 1.0 {
		t.Fatalf("type filter returned %v", list)
	}

	rr = ts.do(t, http.MethodPatch, "/api/transactions/"+incomeID, `{"amount":600}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodDelete, "/api/transactions/missing", "", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("delete missing status=%d body=%s", rr.Code, rr.Body.String())
	}
	failed := decode(t, rr)
	if failed["notification"].(map[string]any)["type"] != "error" || failed["error"] == "" {
		t.Fatalf("unexpected failure body %v", failed)
	}

	rr = ts.do(t, http.MethodGet, "/api/dashboard", "", "")
	dash := decode(t, rr)
	if dash["summary"].(map[string]any)["balance"] != 1400.0 {
		t.Fatalf("dashboard summary %v", dash["summary"])
	}
}

func TestGoalEndpoints(t *testing.T) {
	ts := newTestServer(t, false)

	rr := ts.do(t, http.MethodPost, "/api/goals", `{"name":"Laptop","type":"saving","amount":500,"target":1000}`, "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("create goal status=%d body=%s", rr.Code, rr.Body.String())
	}
	id := decode(t, rr)["goal"].(map[string]any)["id"].(string)

	rr = ts.do(t, http.MethodPatch, "/api/goals/"+id, `{"target":2000}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("patch goal status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodGet, "/api/dashboard", "", "")
	goals := decode(t, rr)["goals"].([]any)
	if len(goals) != 1 || goals[0].(map[string]any)["progress"] != 25.0 {
		t.Fatalf("unexpected goal progress %v", goals)
	}

	rr = ts.do(t, http.MethodDelete, "/api/goals/"+id, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete goal status=%d", rr.Code)
	}
}

func registerBody(password string) string {
	return fmt.Sprintf(`{"name":"Ana","email":"ana@example.com","password":%q,"confirm":%q}`, password, password)
}

func TestValidationErrors(t *testing.T) {
	ts := newTestServer(t, false)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		field  string
	}{
		{"unknown type", http.MethodPost, "/api/transactions", `{"type":"Transfer","amount":1}`, http.StatusBadRequest, "type"},
		{"negative amount", http.MethodPost, "/api/transactions", `{"type":"Income","amount":-5}`, http.StatusBadRequest, "amount"},
		{"goal without name", http.MethodPost, "/api/goals", `{"type":"Saving","target":10}`, http.StatusBadRequest, "name"},
		{"malformed json", http.MethodPost, "/api/transactions", `{"type":`, http.StatusBadRequest, ""},
		{"empty patch", http.MethodPatch, "/api/transactions/t-1", `{}`, http.StatusBadRequest, ""},
		{"bad email", http.MethodPost, "/api/auth/login", `{"email":"nope","password":"secret1"}`, http.StatusBadRequest, "email"},
		{"password over 72 characters", http.MethodPost, "/api/auth/register", registerBody(strings.Repeat("x", 73)), http.StatusBadRequest, "password"},
		{"password over 72 bytes", http.MethodPost, "/api/auth/register", registerBody(strings.Repeat("é", 40)), http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := ts.do(t, tt.method, tt.path, tt.body, "")
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if tt.field != "" {
				fields, _ := decode(t, rr)["fields"].(map[string]any)
				if _, ok := fields[tt.field]; !ok {
					t.Fatalf("field %q not reported: %s", tt.field, rr.Body.String())
				}
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, false)
	rr := ts.do(t, http.MethodPut, "/api/summary", "", "")
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}

func TestAuthRequiredRejectsAnonymous(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do(t, http.MethodGet, "/api/summary", "", "")
	if rr.Code != http.StatusUnauthorized || rr.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected 401 with challenge, got %d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/api/summary", "", "garbage")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", rr.Code)
	}
}

func TestRegisterVerifyLoginLogout(t *testing.T) {
	ts := newTestServer(t, true)

	rr := ts.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ayu","email":"ayu@example.com","password":"secret1","confirm":"secret2"}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("mismatch status=%d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/register", `{"name":"Ayu","email":"","password":"secret1","confirm":"secret1"}`, "")
	if rr.Code != http.StatusBadRequest || decode(t, rr)["error"] != auth.ErrMissingFields.Error() {
		t.Fatalf("missing fields status=%d body=%s", rr.Code, rr.Body.String())
	}

	body := `{"name":"Ayu","email":"ayu@example.com","password":"secret1","confirm":"secret1"}`
	rr = ts.do(t, http.MethodPost, "/api/auth/register", body, "")
	if rr.Code != http.StatusCreated || decode(t, rr)["needsVerification"] != true {
		t.Fatalf("register status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/register", body, "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("duplicate register status=%d", rr.Code)
	}

	login := `{"email":"ayu@example.com","password":"secret1"}`
	rr = ts.do(t, http.MethodPost, "/api/auth/login", login, "")
	if rr.Code != http.StatusForbidden || decode(t, rr)["needsVerification"] != true {
		t.Fatalf("unverified login status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"ayu@example.com","password":"wrong-pass"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password status=%d", rr.Code)
	}

	rr = ts.do(t, http.MethodGet, "/api/auth/verify?token="+ts.mail.lastToken(t), "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("verify status=%d body=%s", rr.Code, rr.Body.String())
	}
	rr = ts.do(t, http.MethodGet, "/api/auth/verify?token=used", "", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("bad verify token status=%d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/login", login, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login status=%d body=%s", rr.Code, rr.Body.String())
	}
	token := decode(t, rr)["token"].(string)

	rr = ts.do(t, http.MethodGet, "/api/profile", "", token)
	profile := decode(t, rr)
	if rr.Code != http.StatusOK || profile["user"].(map[string]any)["name"] != "Ayu" || profile["demo"] != false {
		t.Fatalf("profile status=%d body=%v", rr.Code, profile)
	}

	rr = ts.do(t, http.MethodPatch, "/api/profile", `{"name":"Ayu W","password":"newpass1","confirm":"other"}`, token)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("profile mismatch status=%d", rr.Code)
	}
	rr = ts.do(t, http.MethodPatch, "/api/profile", `{"name":"Ayu W"}`, token)
	if rr.Code != http.StatusOK || decode(t, rr)["user"].(map[string]any)["name"] != "Ayu W" {
		t.Fatalf("profile update status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/logout", "", token)
	if rr.Code != http.StatusOK {
		t.Fatalf("logout status=%d", rr.Code)
	}
	rr = ts.do(t, http.MethodGet, "/api/profile", "", token)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("revoked token status=%d", rr.Code)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	ts := newTestServer(t, true)
	ts.do(t, http.MethodPost, "/api/auth/register", `{"name":"Budi","email":"budi@example.com","password":"secret1","confirm":"secret1"}`, "")
	ts.do(t, http.MethodGet, "/api/auth/verify?token="+ts.mail.lastToken(t), "", "")

	rr := ts.do(t, http.MethodPost, "/api/auth/reset-password", `{"email":"nobody@example.com"}`, "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unknown email reset status=%d", rr.Code)
	}
	sent := len(ts.mail.sent)

	rr = ts.do(t, http.MethodPost, "/api/auth/reset-password", `{"email":""}`, "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("empty email reset status=%d", rr.Code)
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/reset-password", `{"email":"budi@example.com"}`, "")
	if rr.Code != http.StatusAccepted || len(ts.mail.sent) != sent+1 {
		t.Fatalf("reset status=%d mails=%d", rr.Code, len(ts.mail.sent))
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/reset?token="+ts.mail.lastToken(t), `{"password":"fresh-pass","confirm":"fresh-pass"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("reset with token status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = ts.do(t, http.MethodPost, "/api/auth/login", `{"email":"budi@example.com","password":"fresh-pass"}`, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("login with new password status=%d", rr.Code)
	}
}

func TestGoogleLoginDisabled(t *testing.T) {
	ts := newTestServer(t, true)
	rr := ts.do(t, http.MethodPost, "/api/auth/google", `{"idToken":"abc"}`, "")
	if rr.Code != http.StatusNotImplemented {
		t.Fatalf("expected 501 without a verifier, got %d", rr.Code)
	}
}

func TestDemoProfileCannotChangeIdentity(t *testing.T) {
	ts := newTestServer(t, false)
	rr := ts.do(t, http.MethodPatch, "/api/profile", `{"name":"Someone"}`, "")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	rr = ts.do(t, http.MethodGet, "/api/profile", "", "")
	if decode(t, rr)["user"].(map[string]any)["id"] != core.DemoUserID {
		t.Fatalf("demo profile body %s", rr.Body.String())
	}
}
