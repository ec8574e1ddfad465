package handlers_test

import (
	"bytes"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/arnold/gatherings-api/internal/clock"
	"github.com/arnold/gatherings-api/internal/config"
	"github.com/arnold/gatherings-api/internal/handlers"
	"github.com/arnold/gatherings-api/internal/routes"
	"github.com/arnold/gatherings-api/internal/services"
	"github.com/arnold/gatherings-api/internal/testutil"
	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
)

type testApp struct {
	app   *fiber.App
	clock *clock.Fake
	hub   *handlers.Hub
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	db := testutil.OpenDB(t)
	clk := clock.NewFake(testutil.Epoch)
	hub := handlers.NewHub()
	svc := services.New(db, services.Options{Clock: clk, Events: hub, DueLeadHours: 29})

	cfg := &config.Config{
		JWTSecret:   "test-secret",
		CORSOrigins: "*",
		UploadDir:   t.TempDir(),
	}
	h := handlers.New(svc, services.NewImageStore(cfg.UploadDir), hub, cfg.JWTSecret)
	return &testApp{app: routes.NewApp(h, cfg), clock: clk, hub: hub}
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := sonic.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return a.send(t, req)
}

func (a *testApp) send(t *testing.T, req *http.Request) (int, map[string]interface{}) {
	t.Helper()

	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	out := map[string]interface{}{}
	if len(raw) > 0 {
		_ = sonic.Unmarshal(raw, &out)
	}
	return resp.StatusCode, out
}

func (a *testApp) register(t *testing.T, name string) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
		"email":    name + "@example.com",
		"password": "password123",
		"name":     name,
	})
	if status != http.StatusCreated {
		t.Fatalf("register %s: status %d body %v", name, status, body)
	}
	return body["token"].(string)
}

func (a *testApp) createGathering(t *testing.T, token, name string, min, max int) string {
	t.Helper()
	status, body := a.do(t, http.MethodPost, "/api/gatherings", token, fiber.Map{
		"name":          name,
		"category":      "study",
		"location":      "Seoul",
		"gatheringTime": a.clock.Now().Add(72 * time.Hour).Format(time.RFC3339),
		"minAttendees":  min,
		"maxAttendees":  max,
	})
	if status != http.StatusCreated {
		t.Fatalf("create gathering: status %d body %v", status, body)
	}
	return body["id"].(string)
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)
	status, body := a.do(t, http.MethodGet, "/health", "", nil)
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("GET /health = %d %v", status, body)
	}
}

func TestAuth(t *testing.T) {
	a := newTestApp(t)

	t.Run("validation", func(t *testing.T) {
		status, body := a.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
			"email": "not-an-email", "password": "short", "name": "x",
		})
		if status != http.StatusUnprocessableEntity || body["code"] != "VALIDATION_FAILED" {
			t.Fatalf("register invalid = %d %v", status, body)
		}
		fields := body["fields"].(map[string]interface{})
		for _, f := range []string{"email", "password", "name"} {
			if _, ok := fields[f]; !ok {
				t.Errorf("fields missing %q: %v", f, fields)
			}
		}
	})

	token := a.register(t, "alice")

	t.Run("duplicate email", func(t *testing.T) {
		status, body := a.do(t, http.MethodPost, "/api/auth/register", "", fiber.Map{
			"email": "alice@example.com", "password": "password123", "name": "alice2",
		})
		if status != http.StatusConflict || body["code"] != "EMAIL_TAKEN" {
			t.Errorf("register duplicate = %d %v", status, body)
		}
	})

	t.Run("login", func(t *testing.T) {
		status, body := a.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
			"email": "alice@example.com", "password": "password123",
		})
		if status != http.StatusOK || body["token"] == "" {
			t.Errorf("login = %d %v", status, body)
		}
		status, body = a.do(t, http.MethodPost, "/api/auth/login", "", fiber.Map{
			"email": "alice@example.com", "password": "wrong-password",
		})
		if status != http.StatusUnauthorized || body["code"] != "INVALID_CREDENTIALS" {
			t.Errorf("login wrong password = %d %v", status, body)
		}
	})

	t.Run("me", func(t *testing.T) {
		status, body := a.do(t, http.MethodGet, "/api/me", token, nil)
		if status != http.StatusOK || body["name"] != "alice" {
			t.Errorf("GET /api/me = %d %v", status, body)
		}
		if _, leaked := body["password"]; leaked {
			t.Error("password hash exposed")
		}
		status, _ = a.do(t, http.MethodGet, "/api/me", "", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET /api/me anonymous = %d, want 401", status)
		}
		status, _ = a.do(t, http.MethodGet, "/api/me", "garbage", nil)
		if status != http.StatusUnauthorized {
			t.Errorf("GET /api/me bad token = %d, want 401", status)
		}
	})
}

func TestGatheringFlow(t *testing.T) {
	a := newTestApp(t)
	owner := a.register(t, "owner")
	bob := a.register(t, "bob")
	carol := a.register(t, "carol")

	id := a.createGathering(t, owner, "Board games", 2, 2)
	base := "/api/gatherings/" + id

	status, body := a.do(t, http.MethodPost, base+"/attendance", "", nil)
	if status != http.StatusUnauthorized {
		t.Errorf("anonymous join = %d, want 401", status)
	}

	status, body = a.do(t, http.MethodPost, base+"/attendance", bob, nil)
	if status != http.StatusCreated || body["opened"] != true || body["currentAttendees"] != float64(2) {
		t.Fatalf("join = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPost, base+"/attendance", carol, nil)
	if status != http.StatusConflict || body["code"] != "GATHERING_FULL" {
		t.Errorf("join full = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodDelete, base+"/attendance", owner, nil)
	if status != http.StatusBadRequest || body["code"] != "MUST_ATTEND" {
		t.Errorf("owner leave = %d %v", status, body)
	}

	status, _ = a.do(t, http.MethodPost, base+"/heart", carol, nil)
	if status != http.StatusCreated {
		t.Errorf("heart = %d", status)
	}
	status, body = a.do(t, http.MethodPost, base+"/heart", carol, nil)
	if status != http.StatusConflict || body["code"] != "ALREADY_HEARTED" {
		t.Errorf("heart twice = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, base, carol, nil)
	if status != http.StatusOK || body["hearted"] != true || body["available"] != false {
		t.Errorf("detail as carol = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, base, "", nil)
	if status != http.StatusOK || body["hearted"] != false {
		t.Errorf("detail anonymous = %d %v", status, body)
	}
	if attendees := body["attendees"].([]interface{}); len(attendees) != 2 {
		t.Errorf("attendees = %v", attendees)
	}

	status, body = a.do(t, http.MethodGet, "/api/gatherings?query=board", "", nil)
	if status != http.StatusOK {
		t.Fatalf("list = %d %v", status, body)
	}
	meta := body["meta"].(map[string]interface{})
	if meta["total"] != float64(1) {
		t.Errorf("list meta = %v", meta)
	}

	status, body = a.do(t, http.MethodGet, "/api/gatherings?startDate=2025-13-01", "", nil)
	if status != http.StatusBadRequest {
		t.Errorf("list bad date = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, "/api/gatherings/cursor?size=1", "", nil)
	if status != http.StatusOK || body["hasNext"] != false || len(body["items"].([]interface{})) != 1 {
		t.Errorf("cursor list = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodPatch, base+"/cancel", bob, nil)
	if status != http.StatusForbidden || body["code"] != "UNAUTHORIZED" {
		t.Errorf("cancel by non-owner = %d %v", status, body)
	}
	status, _ = a.do(t, http.MethodPatch, base+"/cancel", owner, nil)
	if status != http.StatusOK {
		t.Errorf("cancel = %d", status)
	}
	_, body = a.do(t, http.MethodGet, "/api/gatherings", "", nil)
	if meta := body["meta"].(map[string]interface{}); meta["total"] != float64(0) {
		t.Errorf("canceled gathering still listed: %v", body)
	}

	status, body = a.do(t, http.MethodGet, base+"/activity?size=2", "", nil)
	if status != http.StatusOK || len(body["items"].([]interface{})) != 2 {
		t.Errorf("activity = %d %v", status, body)
	}
	if latest := body["items"].([]interface{})[0].(map[string]interface{}); latest["actionType"] != "gathering_canceled" {
		t.Errorf("latest activity = %v", latest)
	}

	status, body = a.do(t, http.MethodGet, "/api/gatherings/not-a-uuid", "", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad id = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/api/gatherings/0190b3a8-0000-7000-8000-000000000000", "", nil)
	if status != http.StatusNotFound || body["code"] != "GATHERING_NOT_FOUND" {
		t.Errorf("missing id = %d %v", status, body)
	}
}

func TestCreateGatheringValidation(t *testing.T) {
	a := newTestApp(t)
	owner := a.register(t, "owner")

	tests := []struct {
		name     string
		body     fiber.Map
		wantCode int
		wantErr  string
	}{
		{"missing fields", fiber.Map{"name": "ok name"}, http.StatusUnprocessableEntity, "VALIDATION_FAILED"},
		{"too soon", fiber.Map{
			"name": "soon", "category": "c", "location": "l",
			"gatheringTime": a.clock.Now().Add(2 * time.Hour).Format(time.RFC3339),
			"minAttendees":  2, "maxAttendees": 4,
		}, http.StatusBadRequest, "ILLEGAL_GATHERING_DATE"},
		{"min above max", fiber.Map{
			"name": "capacity", "category": "c", "location": "l",
			"gatheringTime": a.clock.Now().Add(72 * time.Hour).Format(time.RFC3339),
			"minAttendees":  5, "maxAttendees": 4,
		}, http.StatusBadRequest, "ILLEGAL_MIN_USERS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := a.do(t, http.MethodPost, "/api/gatherings", owner, tt.body)
			if status != tt.wantCode || body["code"] != tt.wantErr {
				t.Errorf("create = %d %v, want %d %s", status, body, tt.wantCode, tt.wantErr)
			}
		})
	}
}

func TestReviewFlow(t *testing.T) {
	a := newTestApp(t)
	owner := a.register(t, "owner")
	bob := a.register(t, "bob")
	id := a.createGathering(t, owner, "Dinner", 2, 5)
	base := "/api/gatherings/" + id

	if status, _ := a.do(t, http.MethodPost, base+"/attendance", bob, nil); status != http.StatusCreated {
		t.Fatalf("join = %d", status)
	}

	status, body := a.do(t, http.MethodPost, base+"/reviews", bob, fiber.Map{"score": 5, "comment": "lovely"})
	if status != http.StatusBadRequest || body["code"] != "REVIEW_INELIGIBLE" {
		t.Errorf("review before close = %d %v", status, body)
	}

	a.clock.Advance(44 * time.Hour)

	status, body = a.do(t, http.MethodPost, base+"/reviews", bob, fiber.Map{"score": 9, "comment": "x"})
	if status != http.StatusUnprocessableEntity {
		t.Errorf("review score 9 = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodPost, base+"/reviews", bob, fiber.Map{"score": 5, "comment": "lovely"})
	if status != http.StatusCreated || body["score"] != float64(5) {
		t.Fatalf("review = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, base+"/reviews?sort=score_desc", "", nil)
	if status != http.StatusOK || len(body["items"].([]interface{})) != 1 {
		t.Errorf("list reviews = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/api/reviews/scores?gatheringId="+id, "", nil)
	if status != http.StatusOK || body["average"] != float64(5) || body["five"] != float64(1) {
		t.Errorf("scores = %d %v", status, body)
	}

	status, body = a.do(t, http.MethodGet, "/api/me/reviews", bob, nil)
	if status != http.StatusOK || len(body["items"].([]interface{})) != 1 {
		t.Errorf("my reviews = %d %v", status, body)
	}
	status, body = a.do(t, http.MethodGet, "/api/me/reviewable", bob, nil)
	if status != http.StatusOK || len(body["items"].([]interface{})) != 0 {
		t.Errorf("my reviewable = %d %v", status, body)
	}

	status, _ = a.do(t, http.MethodDelete, base+"/reviews", bob, nil)
	if status != http.StatusOK {
		t.Errorf("delete review = %d", status)
	}
}

func TestUploadImage(t *testing.T) {
	a := newTestApp(t)
	token := a.register(t, "uploader")

	upload := func(filename string, size int) (int, map[string]interface{}) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("image", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(bytes.Repeat([]byte{0x89}, size))
		w.Close()

		req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+token)
		return a.send(t, req)
	}

	status, body := upload("cover.png", 128)
	if status != http.StatusCreated {
		t.Fatalf("upload png = %d %v", status, body)
	}
	url := body["url"].(string)
	if len(url) < len("/uploads/") || url[:len("/uploads/")] != "/uploads/" {
		t.Errorf("url = %q", url)
	}

	status, body = upload("cover.gif", 128)
	if status != http.StatusBadRequest || body["code"] != "INVALID_IMAGE_TYPE" {
		t.Errorf("upload gif = %d %v", status, body)
	}

	status, _ = a.send(t, httptest.NewRequest(http.MethodGet, url, nil))
	if status != http.StatusOK {
		t.Errorf("GET %s = %d", url, status)
	}
}

func TestMetrics(t *testing.T) {
	a := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := a.app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !bytes.Contains(raw, []byte("gatherings_sweep_runs_total")) {
		t.Errorf("GET /metrics = %d, body missing sweep counter", resp.StatusCode)
	}
}
