package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promoledger/config"
	"promoledger/internal/auth"
	"promoledger/internal/domain"
	"promoledger/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func init() { gin.SetMode(gin.TestMode) }

var authCfg = &config.AuthConfig{JWTSecret: "test-secret", Issuer: "promoledger"}

func token(t *testing.T, p auth.Principal) string {
	t.Helper()
	tok, err := auth.GenerateToken(authCfg, p, time.Minute)
	require.NoError(t, err)
	return tok
}

func serve(r http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredAndCapability(t *testing.T) {
	require := require.New(t)
	r := gin.New()
	r.Use(AuthRequired(auth.NewJWTVerifier(authCfg)))
	r.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": GetActor(c)})
	})
	r.POST("/pay", RequireCapability(domain.CapPayoutCommission), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	require.Equal(http.StatusUnauthorized, serve(r, http.MethodGet, "/whoami", "").Code)
	require.Equal(http.StatusUnauthorized, serve(r, http.MethodGet, "/whoami", "garbage").Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(http.StatusUnauthorized, w.Code)

	owner := token(t, auth.Principal{UserID: "own-1", Role: domain.RoleBusinessOwner, BusinessID: "biz-1"})
	w = serve(r, http.MethodGet, "/whoami", owner)
	require.Equal(http.StatusOK, w.Code)
	require.Contains(w.Body.String(), `"BusinessID":"biz-1"`)

	require.Equal(http.StatusForbidden, serve(r, http.MethodPost, "/pay", owner).Code)
	admin := token(t, auth.Principal{UserID: "adm", Role: domain.RoleAdmin})
	require.Equal(http.StatusNoContent, serve(r, http.MethodPost, "/pay", admin).Code)
}

func TestRequireRole(t *testing.T) {
	require := require.New(t)
	r := gin.New()
	r.Use(AuthRequired(auth.NewJWTVerifier(authCfg)))
	r.GET("/inf", RequireRole(domain.RoleInfluencer), func(c *gin.Context) { c.Status(http.StatusOK) })

	require.Equal(http.StatusOK, serve(r, http.MethodGet, "/inf", token(t, auth.Principal{UserID: "i", Role: domain.RoleInfluencer})).Code)
	require.Equal(http.StatusForbidden, serve(r, http.MethodGet, "/inf", token(t, auth.Principal{UserID: "c", Role: domain.RoleCustomer})).Code)
}

func TestGetActorWithoutAuth(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	require.Nil(t, GetPrincipal(c))
	require.Equal(t, domain.Actor{}, GetActor(c))
}

func TestRateLimiterWindow(t *testing.T) {
	require := require.New(t)
	l := NewInMemoryRateLimiter(2, time.Minute)
	defer l.Stop()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	require.True(l.Allow("a"))
	require.True(l.Allow("a"))
	require.False(l.Allow("a"))
	require.True(l.Allow("b"))

	now = now.Add(61 * time.Second)
	require.True(l.Allow("a"))

	disabled := NewInMemoryRateLimiter(0, time.Minute)
	defer disabled.Stop()
	for i := 0; i < 10; i++ {
		require.True(disabled.Allow("x"))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	require := require.New(t)
	l := NewInMemoryRateLimiter(1, time.Minute)
	defer l.Stop()
	r := gin.New()
	r.POST("/track", RateLimit(l), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	require.Equal(http.StatusAccepted, serve(r, http.MethodPost, "/track", "").Code)
	w := serve(r, http.MethodPost, "/track", "")
	require.Equal(http.StatusTooManyRequests, w.Code)
	require.Equal("60", w.Header().Get("Retry-After"))
}

func TestAccessLogAndInstrument(t *testing.T) {
	require := require.New(t)
	core, logs := observer.New(zap.DebugLevel)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(err)

	r := gin.New()
	r.Use(AccessLog(zap.New(core)), Instrument(m))
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	serve(r, http.MethodGet, "/items/1", "")
	serve(r, http.MethodGet, "/items/2", "")
	serve(r, http.MethodGet, "/boom", "")

	require.Equal(3, logs.Len())
	require.Equal(1, logs.FilterMessage("request").FilterField(zap.Int("status", 500)).Len())
	families, err := reg.Gather()
	require.NoError(err)
	series := 0
	for _, f := range families {
		if f.GetName() == "http_request_duration_seconds" {
			series = len(f.GetMetric())
		}
	}
	require.Equal(2, series)
}
