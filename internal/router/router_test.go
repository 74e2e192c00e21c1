package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"promoledger/config"
	"promoledger/internal/app"
	"promoledger/internal/auth"
	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/report"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type env struct {
	t      *testing.T
	app    *app.App
	engine *gin.Engine
	tokens map[string]string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := config.Default()
	cfg.Database.Driver = config.DriverMemory
	rate := 500
	cfg.Commission.DefaultRateBps = &rate
	cfg.RateLimit.ClicksPerMinute = 3

	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	engine, stop := Setup(a)
	t.Cleanup(stop)

	require.NoError(t, a.Stores.Products.Upsert(context.Background(), &models.Product{ID: "p-1", Name: "Linen Shirt", CategorySlug: "apparel"}))

	e := &env{t: t, app: a, engine: engine, tokens: map[string]string{}}
	for name, p := range map[string]auth.Principal{
		"admin":      {UserID: "adm-1", Role: domain.RoleAdmin},
		"owner":      {UserID: "own-1", Role: domain.RoleBusinessOwner, BusinessID: "biz-1"},
		"influencer": {UserID: "inf-1", Role: domain.RoleInfluencer},
		"system":     {UserID: "order-svc", Role: domain.RoleSystem},
	} {
		tok, err := auth.GenerateToken(&cfg.Auth, p, time.Hour)
		require.NoError(t, err)
		e.tokens[name] = tok
	}
	return e
}

func (e *env) do(method, path, as string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if as != "" {
		req.Header.Set("Authorization", "Bearer "+e.tokens[as])
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSponsorshipLifecycleOverHTTP(t *testing.T) {
	require := require.New(t)
	e := newEnv(t)
	now := time.Now().UTC()

	w := e.do(http.MethodPost, "/api/sponsorships", "owner", gin.H{
		"productId": "p-1", "budget": 100, "dailyBudget": 20,
		"startDate": now.Add(-time.Hour), "endDate": now.Add(30 * 24 * time.Hour),
	})
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	sp := decode[models.Sponsorship](t, w)
	require.Equal(domain.SponsorshipPending, sp.Status)

	require.Equal(http.StatusForbidden, e.do(http.MethodPatch, "/api/admin/sponsorships/"+sp.ID+"/approve", "owner", nil).Code)
	w = e.do(http.MethodPatch, "/api/admin/sponsorships/"+sp.ID+"/approve", "admin", nil)
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	require.Equal(domain.SponsorshipActive, decode[models.Sponsorship](t, w).Status)

	require.Equal(http.StatusForbidden, e.do(http.MethodPost, "/api/sponsorships/"+sp.ID+"/impressions", "owner", gin.H{"cost": 5}).Code)
	w = e.do(http.MethodPost, "/api/sponsorships/"+sp.ID+"/impressions", "system", gin.H{"cost": 15})
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	charged := decode[models.Sponsorship](t, w)
	require.EqualValues(85, charged.Budget)
	require.EqualValues(15, charged.SpentToday)

	w = e.do(http.MethodPost, "/api/sponsorships/"+sp.ID+"/impressions", "system", gin.H{"cost": 10})
	require.Equal(http.StatusConflict, w.Code)
	require.Equal("BUDGET_EXHAUSTED", decode[map[string]string](t, w)["code"])

	w = e.do(http.MethodPost, "/api/sponsorships/"+sp.ID+"/impressions", "system", gin.H{"cost": 0})
	require.Equal(http.StatusBadRequest, w.Code)

	w = e.do(http.MethodGet, "/api/brand/sponsorships", "owner", nil)
	require.Equal(http.StatusOK, w.Code)
	require.EqualValues(1, decode[map[string]interface{}](t, w)["total"])

	w = e.do(http.MethodPatch, "/api/sponsorships/"+sp.ID+"/pause", "owner", nil)
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	require.Equal(domain.SponsorshipPaused, decode[models.Sponsorship](t, w).Status)
	w = e.do(http.MethodPatch, "/api/sponsorships/"+sp.ID+"/resume", "owner", nil)
	require.Equal(http.StatusOK, w.Code, w.Body.String())

	w = e.do(http.MethodGet, "/api/sponsorships/missing", "owner", nil)
	require.Equal(http.StatusNotFound, w.Code)
	require.Equal("NOT_FOUND", decode[map[string]string](t, w)["code"])

	w = e.do(http.MethodGet, "/api/admin/sponsorships?status=ACTIVE", "admin", nil)
	require.Equal(http.StatusOK, w.Code)
	require.EqualValues(1, decode[map[string]interface{}](t, w)["total"])
}

func TestAffiliateFlowOverHTTP(t *testing.T) {
	require := require.New(t)
	e := newEnv(t)

	require.Equal(http.StatusUnauthorized, e.do(http.MethodGet, "/api/influencers/stats", "", nil).Code)
	require.Equal(http.StatusForbidden, e.do(http.MethodGet, "/api/influencers/stats", "owner", nil).Code)

	w := e.do(http.MethodPost, "/api/influencers/affiliate-links", "influencer", gin.H{"productId": "p-1"})
	require.Equal(http.StatusCreated, w.Code, w.Body.String())
	link := decode[models.AffiliateLink](t, w)

	w = e.do(http.MethodPost, "/api/track/click", "", gin.H{"referralCode": link.ReferralCode, "productId": "p-1"})
	require.Equal(http.StatusAccepted, w.Code, w.Body.String())
	require.Equal(http.StatusNotFound, e.do(http.MethodPost, "/api/track/click", "", gin.H{"referralCode": "nope", "productId": "p-1"}).Code)

	require.Equal(http.StatusForbidden, e.do(http.MethodPost, "/api/attributions/conversions", "influencer", gin.H{"linkId": link.ID, "orderId": "o-1", "orderAmount": 999}).Code)
	w = e.do(http.MethodPost, "/api/attributions/conversions", "system", gin.H{"linkId": link.ID, "orderId": "o-1", "orderAmount": 999})
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	conv := decode[models.Attribution](t, w)
	require.Equal(domain.AttributionConversion, conv.Status)
	require.EqualValues(49, *conv.CommissionAmount)

	w = e.do(http.MethodGet, "/api/influencers/stats", "influencer", nil)
	require.Equal(http.StatusOK, w.Code)
	stats := decode[models.InfluencerStats](t, w)
	require.EqualValues(1, stats.TotalClicks)
	require.EqualValues(1, stats.TotalConversions)
	require.EqualValues(49, stats.TotalEarnings)

	require.Equal(http.StatusForbidden, e.do(http.MethodPost, "/api/admin/attributions/"+conv.ID+"/pay", "system", nil).Code)
	w = e.do(http.MethodPost, "/api/admin/attributions/"+conv.ID+"/pay", "admin", nil)
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	require.Equal(domain.AttributionPaid, decode[models.Attribution](t, w).Status)

	w = e.do(http.MethodGet, "/api/influencers/attributions?status=paid", "influencer", nil)
	require.Equal(http.StatusOK, w.Code)
	require.EqualValues(1, decode[map[string]interface{}](t, w)["total"])
	require.Equal(http.StatusBadRequest, e.do(http.MethodGet, "/api/influencers/attributions?status=bogus", "influencer", nil).Code)

	w = e.do(http.MethodGet, "/api/influencers/attributions/export", "influencer", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal(report.ContentType, w.Header().Get("Content-Type"))

	w = e.do(http.MethodGet, "/api/influencers/affiliate-links/"+link.ID+"/qr", "influencer", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Equal("image/png", w.Header().Get("Content-Type"))
	require.Contains(w.Header().Get("X-Share-URL"), link.ReferralCode)

	w = e.do(http.MethodGet, "/api/influencers/notifications", "influencer", nil)
	require.Equal(http.StatusOK, w.Code)
	notes := decode[struct {
		Notifications []models.Notification `json:"notifications"`
	}](t, w)
	require.Len(notes.Notifications, 2)
	require.Equal(http.StatusOK, e.do(http.MethodPut, "/api/influencers/notifications/"+notes.Notifications[0].ID+"/read", "influencer", nil).Code)

	w = e.do(http.MethodGet, "/api/influencers/metrics?days=7", "influencer", nil)
	require.Equal(http.StatusOK, w.Code)
	require.EqualValues(7, decode[map[string]interface{}](t, w)["days"])

	w = e.do(http.MethodPatch, "/api/influencers/affiliate-links/"+link.ID, "influencer", gin.H{"isActive": false})
	require.Equal(http.StatusOK, w.Code)
	require.False(decode[models.AffiliateLink](t, w).IsActive)
	require.Equal(http.StatusBadRequest, e.do(http.MethodPatch, "/api/influencers/affiliate-links/"+link.ID, "influencer", gin.H{}).Code)

	require.Equal(http.StatusCreated, e.do(http.MethodPost, "/api/me/device-tokens", "influencer", gin.H{"token": "fcm-1", "platform": "ios"}).Code)
}

func TestClickEndpointIsRateLimited(t *testing.T) {
	e := newEnv(t)
	body := gin.H{"referralCode": "unknown", "productId": "p-1"}
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusNotFound, e.do(http.MethodPost, "/api/track/click", "", body).Code)
	}
	require.Equal(t, http.StatusTooManyRequests, e.do(http.MethodPost, "/api/track/click", "", body).Code)
}

func TestRankingAndOperationalRoutes(t *testing.T) {
	require := require.New(t)
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/admin/ranking/recompute", "admin", nil)
	require.Equal(http.StatusOK, w.Code, w.Body.String())
	w = e.do(http.MethodPost, "/api/admin/ranking/recompute", "admin", gin.H{"productId": "missing"})
	require.Equal(http.StatusNotFound, w.Code)
	require.Equal(http.StatusForbidden, e.do(http.MethodPost, "/api/admin/ranking/recompute", "owner", nil).Code)

	w = e.do(http.MethodGet, "/api/ranking/homepage", "", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Contains(w.Body.String(), `"p-1"`)
	require.Equal(http.StatusOK, e.do(http.MethodGet, "/api/ranking/category/apparel", "", nil).Code)
	require.Equal(http.StatusOK, e.do(http.MethodGet, "/api/ranking/search?q=linen", "", nil).Code)
	require.Equal(http.StatusBadRequest, e.do(http.MethodGet, "/api/ranking/search?q=", "", nil).Code)

	require.Equal(http.StatusOK, e.do(http.MethodGet, "/healthz", "", nil).Code)
	w = e.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(http.StatusOK, w.Code)
	require.Contains(w.Body.String(), "http_request_duration_seconds")
}
