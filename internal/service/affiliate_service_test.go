package service

import (
	"bytes"
	"sync"
	"testing"

	"promoledger/internal/domain"

	"github.com/stretchr/testify/require"
)

func TestCreateLink(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	link, err := f.affiliates.CreateLink(f.ctx, influencer, "p-1")
	require.NoError(err)
	require.Len(link.ReferralCode, 8)
	require.True(link.IsActive)

	same, err := f.affiliates.CreateLink(f.ctx, influencer, "p-1")
	require.NoError(err)
	require.Equal(link.ID, same.ID)

	_, err = f.affiliates.CreateLink(f.ctx, influencer, "p-2")
	require.NoError(err)
	mine, err := f.affiliates.ListMine(f.ctx, influencer)
	require.NoError(err)
	require.Len(mine, 2)

	_, err = f.affiliates.CreateLink(f.ctx, influencer, "missing")
	require.ErrorIs(err, domain.ErrNotFound)
	_, err = f.affiliates.CreateLink(f.ctx, owner, "p-1")
	require.ErrorIs(err, domain.ErrForbidden)
}

func TestConcurrentCreateLinkYieldsOneLink(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)

	const callers = 16
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			link, err := f.affiliates.CreateLink(f.ctx, influencer, "p-1")
			errs[i] = err
			if link != nil {
				ids[i] = link.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(errs[i])
		require.Equal(ids[0], ids[i])
	}
	mine, err := f.affiliates.ListMine(f.ctx, influencer)
	require.NoError(err)
	require.Len(mine, 1)
}

func TestSetActiveOwnership(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	link := f.link(t, "p-1")
	stranger := domain.Actor{UserID: "inf-2", Role: domain.RoleInfluencer}

	_, err := f.affiliates.SetActive(f.ctx, stranger, link.ID, false)
	require.ErrorIs(err, domain.ErrForbidden)

	got, err := f.affiliates.SetActive(f.ctx, admin, link.ID, false)
	require.NoError(err)
	require.False(got.IsActive)

	_, err = f.affiliates.Resolve(f.ctx, link.ReferralCode)
	require.ErrorIs(err, domain.ErrNotFound)

	got, err = f.affiliates.SetActive(f.ctx, influencer, link.ID, true)
	require.NoError(err)
	require.True(got.IsActive)
}

func TestShare(t *testing.T) {
	require := require.New(t)
	f := newFixture(t)
	link := f.link(t, "p-1")

	share, err := f.affiliates.Share(f.ctx, influencer, link.ID, 128)
	require.NoError(err)
	require.Equal("https://shop.example.com/p/p-1?ref="+link.ReferralCode, share.URL)
	require.True(bytes.HasPrefix(share.QR, []byte("\x89PNG")))
}
