package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"
	"promoledger/pkg/sharelink"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const codeAttempts = 5

type AffiliateService struct {
	links         repository.AffiliateLinkStore
	products      repository.ProductStore
	publicBaseURL string
	log           *zap.Logger
	now           func() time.Time
}

func NewAffiliateService(links repository.AffiliateLinkStore, products repository.ProductStore, publicBaseURL string, log *zap.Logger) *AffiliateService {
	return &AffiliateService{links: links, products: products, publicBaseURL: publicBaseURL, log: log, now: time.Now}
}

// CreateLink returns the caller's link for productID, creating it on first use.
func (s *AffiliateService) CreateLink(ctx context.Context, actor domain.Actor, productID string) (*models.AffiliateLink, error) {
	if !actor.Can(domain.CapManageAffiliate) {
		return nil, fmt.Errorf("%w: role %s cannot create affiliate links", domain.ErrForbidden, actor.Role)
	}
	if productID == "" {
		return nil, fmt.Errorf("%w: productId is required", domain.ErrInvalidConfig)
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return nil, fmt.Errorf("product %s: %w", productID, err)
	}
	if existing, err := s.findLink(ctx, actor.UserID, productID); err != nil || existing != nil {
		return existing, err
	}

	now := s.now().UTC()
	for attempt := 0; attempt < codeAttempts; attempt++ {
		code, err := referralCode()
		if err != nil {
			return nil, err
		}
		link := &models.AffiliateLink{
			ID:           uuid.NewString(),
			InfluencerID: actor.UserID,
			ProductID:    productID,
			ReferralCode: code,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		err = s.links.Create(ctx, link)
		if err == nil {
			s.log.Info("affiliate link created", zap.String("link_id", link.ID), zap.String("influencer_id", actor.UserID))
			return link, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
		// Either the code collided or a concurrent request created the link first.
		if existing, err := s.findLink(ctx, actor.UserID, productID); err != nil || existing != nil {
			return existing, err
		}
	}
	return nil, fmt.Errorf("%w: could not allocate a unique referral code", domain.ErrConflict)
}

func (s *AffiliateService) findLink(ctx context.Context, influencerID, productID string) (*models.AffiliateLink, error) {
	links, err := s.links.ListByInfluencer(ctx, influencerID)
	if err != nil {
		return nil, err
	}
	for i := range links {
		if links[i].ProductID == productID {
			return &links[i], nil
		}
	}
	return nil, nil
}

// referralCode is 8 lowercase hex characters.
func referralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func (s *AffiliateService) ListMine(ctx context.Context, actor domain.Actor) ([]models.AffiliateLink, error) {
	if actor.Role != domain.RoleInfluencer {
		return nil, fmt.Errorf("%w: only influencers own affiliate links", domain.ErrForbidden)
	}
	return s.links.ListByInfluencer(ctx, actor.UserID)
}

// Resolve looks up an active link by referral code.
func (s *AffiliateService) Resolve(ctx context.Context, code string) (*models.AffiliateLink, error) {
	link, err := s.links.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !link.IsActive {
		return nil, fmt.Errorf("referral code %s: %w", code, domain.ErrNotFound)
	}
	return link, nil
}

func (s *AffiliateService) SetActive(ctx context.Context, actor domain.Actor, id string, active bool) (*models.AffiliateLink, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && link.InfluencerID != actor.UserID {
		return nil, fmt.Errorf("%w: link belongs to another influencer", domain.ErrForbidden)
	}
	if err := s.links.SetActive(ctx, id, active, s.now().UTC()); err != nil {
		return nil, err
	}
	return s.links.GetByID(ctx, id)
}

// Share is a shareable product URL and its QR code.
type Share struct {
	URL string `json:"url"`
	QR  []byte `json:"-"`
}

func (s *AffiliateService) Share(ctx context.Context, actor domain.Actor, id string, qrSize int) (*Share, error) {
	link, err := s.links.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != domain.RoleAdmin && link.InfluencerID != actor.UserID {
		return nil, fmt.Errorf("%w: link belongs to another influencer", domain.ErrForbidden)
	}
	url, err := sharelink.URL(s.publicBaseURL, link.ProductID, link.ReferralCode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	png, err := sharelink.QR(url, qrSize)
	if err != nil {
		return nil, err
	}
	return &Share{URL: url, QR: png}, nil
}
