package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"promoledger/config"
	"promoledger/internal/app"
	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/service"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryApp replaces bootstrap with one shared in-memory app.
func memoryApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Driver = config.DriverMemory
	a, err := app.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	prev := bootstrap
	bootstrap = func(context.Context, *options) (*app.App, error) { return a, nil }
	t.Cleanup(func() { bootstrap = prev })
	return a
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateMemory(t *testing.T) {
	memoryApp(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	require.Equal(t, "migrated memory\n", out)
}

func TestActivateDueAndResetDaily(t *testing.T) {
	require := require.New(t)
	a := memoryApp(t)
	ctx := context.Background()
	require.NoError(a.Stores.Products.Upsert(ctx, &models.Product{ID: "p-1", Name: "Lamp"}))

	now := time.Now().UTC()
	owner := domain.Actor{UserID: "own-1", Role: domain.RoleBusinessOwner, BusinessID: "biz-1"}
	sp, err := a.Sponsorships.Create(ctx, owner, service.CreateSponsorshipInput{
		ProductID: "p-1", Budget: 100, DailyBudget: 10,
		StartDate: now.Add(time.Second), EndDate: now.Add(48 * time.Hour),
	})
	require.NoError(err)
	_, err = a.Sponsorships.Approve(ctx, domain.Actor{UserID: "adm", Role: domain.RoleAdmin}, sp.ID)
	require.NoError(err)

	require.Eventually(func() bool {
		out, err := run(t, "activate-due")
		return err == nil && out == "activated=1\n"
	}, 3*time.Second, 50*time.Millisecond)

	out, err := run(t, "reset-daily")
	require.NoError(err)
	require.Contains(out, "day="+domain.UTCDay(time.Now()))
	require.Contains(out, "reset=0")
}

func TestRecomputeScores(t *testing.T) {
	require := require.New(t)
	a := memoryApp(t)
	require.NoError(a.Stores.Products.Upsert(context.Background(), &models.Product{ID: "p-1", Name: "Lamp"}))

	out, err := run(t, "recompute-scores")
	require.NoError(err)
	require.Contains(out, "recomputed=1")

	out, err = run(t, "recompute-scores", "--product", "p-1")
	require.NoError(err)
	require.Contains(out, "p-1 score=")

	_, err = run(t, "recompute-scores", "--product", "missing")
	require.ErrorIs(err, domain.ErrNotFound)

	_, err = run(t, "recompute-scores", "extra-arg")
	require.Error(err)
}
