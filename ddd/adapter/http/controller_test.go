package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"media-pipeline-service/ddd/application/app"
	"media-pipeline-service/ddd/domain/gateway"
	"media-pipeline-service/ddd/domain/service"
	"media-pipeline-service/ddd/infrastructure/database/persistence"
	"media-pipeline-service/ddd/infrastructure/identity"
	"media-pipeline-service/ddd/infrastructure/queue"
	"media-pipeline-service/ddd/infrastructure/quota"
	"media-pipeline-service/ddd/infrastructure/worker"
	"media-pipeline-service/pkg/config"
	"media-pipeline-service/pkg/middleware"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type stubProbe struct{}

func (stubProbe) Probe(context.Context, string) (*gateway.ProbeResult, error) {
	return &gateway.ProbeResult{
		Platform: "vimeo",
		Formats: []gateway.ProbeFormat{
			{FormatID: "hls-720", Ext: "mp4", Height: 720, VCodec: "avc1", ACodec: "mp4a"},
		},
	}, nil
}

func newTestEngine(t *testing.T) (*gin.Engine, *identity.JWTVerifier) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	q := queue.NewMemoryJobQueue(16)
	t.Cleanup(func() { _ = q.Close() })
	quotaSvc := service.NewQuotaService(quota.NewMemoryLedger(), service.QuotaPolicy{Location: time.UTC, GuestLimit: 1, AuthenticatedLimit: 5})
	jobApp := app.NewJobAppWith(persistence.NewMemoryJobRepository(), quotaSvc, q)
	verifier := identity.NewJWTVerifier(config.JWTConfig{Secret: "test-secret", Issuer: "media-pipeline"})

	engine := gin.New()
	engine.Use(middleware.IdentityMiddleware(verifier))
	group := engine.Group("/api/v1")
	NewJobController(jobApp).RegisterRoutes(group)
	NewFormatController(app.NewFormatAppWith(service.NewFormatService(stubProbe{}))).RegisterRoutes(group)
	NewWorkerController(app.NewWorkerApp(worker.NewWorkerManager(), q)).RegisterRoutes(group)
	return engine, verifier
}

func do(engine *gin.Engine, method, path, body string, headers map[string]string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

// TestSubmitAndGetJob verifies the submission and status endpoints round trip.
func TestSubmitAndGetJob(t *testing.T) {
	engine, _ := newTestEngine(t)

	w, env := do(engine, http.MethodPost, "/api/v1/jobs", `{"source":"https://vimeo.com/1","quality":"720p","steps":["transcode"]}`, nil)
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body=%s", w.Code, w.Body.String())
	}
	var submitted struct {
		JobID string `json:"jobId"`
	}
	if err := json.Unmarshal(env.Data, &submitted); err != nil || submitted.JobID == "" {
		t.Fatalf("submit data = %s, err=%v", env.Data, err)
	}

	w, env = do(engine, http.MethodGet, "/api/v1/jobs/"+submitted.JobID, "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status code = %d body=%s", w.Code, w.Body.String())
	}
	var status map[string]interface{}
	_ = json.Unmarshal(env.Data, &status)
	if status["status"] != "queued" || status["progress"] != float64(0) {
		t.Fatalf("status = %v", status)
	}
	if _, ok := status["artifacts"]; ok {
		t.Fatalf("artifacts must be hidden before completion: %v", status)
	}
}

// TestErrorTags verifies each failure surfaces its taxonomy tag and HTTP status.
func TestErrorTags(t *testing.T) {
	engine, _ := newTestEngine(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		tag    string
	}{
		{"malformed json", http.MethodPost, "/api/v1/jobs", `{"source":`, http.StatusBadRequest, "ValidationError"},
		{"bad source", http.MethodPost, "/api/v1/jobs", `{"source":"ftp://x"}`, http.StatusBadRequest, "ValidationError"},
		{"unknown step", http.MethodPost, "/api/v1/jobs", `{"source":"https://vimeo.com/1","steps":["dub"]}`, http.StatusBadRequest, "ValidationError"},
		{"unknown job", http.MethodGet, "/api/v1/jobs/nope", "", http.StatusNotFound, "NotFound"},
	}
	for _, tc := range cases {
		w, env := do(engine, tc.method, tc.path, tc.body, nil)
		if w.Code != tc.status || env.Error != tc.tag {
			t.Fatalf("%s: status=%d tag=%q, want %d %q", tc.name, w.Code, env.Error, tc.status, tc.tag)
		}
	}
}

// TestQuotaEndpointIdentity verifies guest headers and bearer tokens select different limits.
func TestQuotaEndpointIdentity(t *testing.T) {
	engine, verifier := newTestEngine(t)

	_, env := do(engine, http.MethodGet, "/api/v1/quota", "", map[string]string{middleware.GuestTokenHeader: "guest-abc"})
	var q map[string]interface{}
	_ = json.Unmarshal(env.Data, &q)
	if q["identity"] != "guest:guest-abc" || q["limit"] != float64(1) {
		t.Fatalf("guest quota = %v", q)
	}

	token, err := verifier.Sign(identity.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-9", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	if err != nil {
		t.Fatalf("Sign error = %v", err)
	}
	_, env = do(engine, http.MethodGet, "/api/v1/quota", "", map[string]string{"Authorization": "Bearer " + token})
	q = nil
	_ = json.Unmarshal(env.Data, &q)
	if q["identity"] != "authenticated:user-9" || q["limit"] != float64(5) || q["remaining"] != float64(5) {
		t.Fatalf("authenticated quota = %v", q)
	}

	// 无效令牌按访客处理
	_, env = do(engine, http.MethodGet, "/api/v1/quota", "", map[string]string{"Authorization": "Bearer garbage", middleware.GuestTokenHeader: "g2"})
	q = nil
	_ = json.Unmarshal(env.Data, &q)
	if q["class"] != "guest" {
		t.Fatalf("invalid token quota = %v", q)
	}
}

// TestFormatsEndpoint verifies both the JSON and query forms.
func TestFormatsEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t)

	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPost, "/api/v1/formats", `{"source":"https://vimeo.com/1"}`},
		{http.MethodGet, "/api/v1/formats?source=https://vimeo.com/1", ""},
	} {
		w, env := do(engine, tc.method, tc.path, tc.body, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s formats status = %d body=%s", tc.method, w.Code, w.Body.String())
		}
		var catalog struct {
			Platform string `json:"platform"`
			Formats  []struct {
				Quality string `json:"quality"`
			} `json:"formats"`
		}
		_ = json.Unmarshal(env.Data, &catalog)
		if catalog.Platform != "vimeo" || len(catalog.Formats) != 1 || catalog.Formats[0].Quality != "720p" {
			t.Fatalf("%s catalog = %+v", tc.method, catalog)
		}
	}
}

// TestWorkerStatsEndpoint verifies the stats endpoint reports the queue depth.
func TestWorkerStatsEndpoint(t *testing.T) {
	engine, _ := newTestEngine(t)
	do(engine, http.MethodPost, "/api/v1/jobs", `{"source":"https://vimeo.com/1"}`, nil)

	w, env := do(engine, http.MethodGet, "/api/v1/workers/stats", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("stats status = %d", w.Code)
	}
	var stats struct {
		Workers   []interface{} `json:"workers"`
		QueueSize int           `json:"queueSize"`
	}
	_ = json.Unmarshal(env.Data, &stats)
	if stats.QueueSize != 1 || len(stats.Workers) != 0 {
		t.Fatalf("stats = %+v", stats)
	}
}
