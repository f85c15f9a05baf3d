package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"media-pipeline-service/ddd/domain/vo"
)

type tokenVerifier map[string]vo.Identity

func (v tokenVerifier) Verify(token string) (vo.Identity, error) {
	if id, ok := v[token]; ok {
		return id, nil
	}
	return vo.Identity{}, errors.New("invalid token")
}

// TestResolveIdentity verifies credential precedence.
func TestResolveIdentity(t *testing.T) {
	verifier := tokenVerifier{"good": vo.NewAuthenticatedIdentity("u-1", "pro")}
	cases := []struct {
		name        string
		auth, guest string
		want        vo.Identity
	}{
		{"valid bearer", "Bearer good", "g", vo.NewAuthenticatedIdentity("u-1", "pro")},
		{"lowercase scheme", "bearer good", "", vo.NewAuthenticatedIdentity("u-1", "pro")},
		{"invalid bearer falls back to guest token", "Bearer bad", "g-9", vo.NewGuestIdentity("g-9")},
		{"no credentials uses ip", "", "", vo.NewGuestIdentity("10.0.0.1")},
		{"basic auth ignored", "Basic abc", "", vo.NewGuestIdentity("10.0.0.1")},
	}
	for _, c := range cases {
		if got := ResolveIdentity(verifier, c.auth, c.guest, "10.0.0.1"); got != c.want {
			t.Fatalf("%s: identity = %+v, want %+v", c.name, got, c.want)
		}
	}
	if got := ResolveIdentity(nil, "Bearer good", "", "ip"); got != vo.NewGuestIdentity("ip") {
		t.Fatalf("nil verifier identity = %+v", got)
	}
}

// TestIdentityMiddleware verifies the identity reaches handlers.
func TestIdentityMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(IdentityMiddleware(tokenVerifier{}))
	var got vo.Identity
	engine.GET("/", func(c *gin.Context) {
		got = IdentityFrom(c)
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.2")
	engine.ServeHTTP(httptest.NewRecorder(), req)
	if got != vo.NewGuestIdentity("203.0.113.7") {
		t.Fatalf("identity = %+v, want guest 203.0.113.7", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	engine.ServeHTTP(httptest.NewRecorder(), req)
	if got != vo.NewGuestIdentity("192.0.2.1") {
		t.Fatalf("identity = %+v, want guest 192.0.2.1", got)
	}
}
