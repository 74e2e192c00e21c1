package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"promoledger/internal/domain"
	"promoledger/internal/models"
	"promoledger/internal/repository"
)

type NotificationStore struct{ *Store }

func (s *NotificationStore) Create(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table := repository.NotificationTable(n.Audience)
	rows, ok := s.notifications[table]
	if !ok {
		rows = map[string]models.Notification{}
		s.notifications[table] = rows
	}
	if _, dup := rows[n.ID]; dup {
		return fmt.Errorf("%w: notification %s", domain.ErrConflict, n.ID)
	}
	rows[n.ID] = *n
	return nil
}

func (s *NotificationStore) ListByRecipient(_ context.Context, audience, recipientID string, limit, offset int) ([]models.Notification, error) {
	s.mu.Lock()
	list := []models.Notification{}
	for _, n := range s.notifications[repository.NotificationTable(audience)] {
		if n.RecipientID == recipientID {
			n.Audience = audience
			list = append(list, n)
		}
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
	limit, offset = repository.Page(limit, offset)
	return window(list, limit, offset), nil
}

func (s *NotificationStore) MarkRead(_ context.Context, audience, id, recipientID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.notifications[repository.NotificationTable(audience)]
	n, ok := rows[id]
	if !ok || n.RecipientID != recipientID {
		return domain.ErrNotFound
	}
	n.ReadAt = &at
	rows[id] = n
	return nil
}

type DeviceTokenStore struct{ *Store }

func (s *DeviceTokenStore) Upsert(_ context.Context, t *models.DeviceToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deviceTokens[t.Token] = *t
	return nil
}

func (s *DeviceTokenStore) ListByUser(_ context.Context, userID string) ([]models.DeviceToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := []models.DeviceToken{}
	for _, token := range sortedKeys(s.deviceTokens) {
		if t := s.deviceTokens[token]; t.UserID == userID {
			list = append(list, t)
		}
	}
	return list, nil
}
