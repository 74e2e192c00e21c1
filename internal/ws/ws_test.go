package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"promoledger/internal/auth"
	"promoledger/internal/domain"
	"promoledger/internal/events"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func mustEvent(t *testing.T, typ string, payload any) events.Event {
	t.Helper()
	e, err := events.New(typ, "k", payload, time.Now())
	require.NoError(t, err)
	return e
}

func received(c *Client) int {
	return len(c.Send)
}

func TestHubRoutesBySubject(t *testing.T) {
	require := require.New(t)
	hub := NewHub()
	inf := NewClient("inf-1", domain.RoleInfluencer, SubjectsFor(domain.Actor{UserID: "inf-1", Role: domain.RoleInfluencer})...)
	other := NewClient("inf-2", domain.RoleInfluencer, SubjectsFor(domain.Actor{UserID: "inf-2", Role: domain.RoleInfluencer})...)
	seller := NewClient("own-1", domain.RoleBusinessOwner, SubjectsFor(domain.Actor{UserID: "own-1", Role: domain.RoleBusinessOwner, BusinessID: "biz-1"})...)
	admin := NewClient("adm", domain.RoleAdmin, SubjectsFor(domain.Actor{UserID: "adm", Role: domain.RoleAdmin})...)
	for _, c := range []*Client{inf, other, seller, admin} {
		hub.Register(c)
	}
	require.Equal(4, hub.ClientCount())

	require.NoError(hub.Publish(context.Background(), mustEvent(t, events.AttributionConverted, map[string]string{"influencerId": "inf-1"})))
	require.Equal(1, received(inf))
	require.Zero(received(other))
	require.Zero(received(seller))
	require.Equal(1, received(admin))

	require.NoError(hub.Publish(context.Background(), mustEvent(t, events.SponsorshipPaused, map[string]string{"businessId": "biz-1"})))
	require.Equal(1, received(seller))
	require.Equal(2, received(admin))

	require.NoError(hub.Publish(context.Background(), mustEvent(t, events.RankingRecomputed, map[string]int{"products": 3})))
	require.Equal(1, received(other))

	other.Close()
	other.Close()
	require.Equal(3, hub.ClientCount())
}

type staticVerifier map[string]*auth.Principal

func (v staticVerifier) Verify(_ context.Context, token string) (*auth.Principal, error) {
	if p, ok := v[token]; ok {
		return p, nil
	}
	return nil, errors.New("bad token")
}

func TestDashboardWebSocket(t *testing.T) {
	require := require.New(t)
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	verifier := staticVerifier{"good": {UserID: "inf-1", Role: domain.RoleInfluencer}}
	r := gin.New()
	r.GET("/ws/dashboard", UpgradeDashboardWS(verifier, hub, nil, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/dashboard"

	_, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil)
	require.Error(err)
	require.Equal(401, resp.StatusCode)

	conn, _, err := websocket.DefaultDialer.Dial(base+"?token=good", nil)
	require.NoError(err)
	defer conn.Close()

	require.Eventually(func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	e := mustEvent(t, events.AttributionClicked, map[string]string{"influencerId": "inf-1"})
	require.NoError(hub.Publish(context.Background(), e))

	require.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(err)
	var got events.Event
	require.NoError(json.Unmarshal(msg, &got))
	require.Equal(e.ID, got.ID)
	require.Equal(events.AttributionClicked, got.Type)
}
