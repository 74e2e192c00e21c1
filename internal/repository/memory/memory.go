// Package memory is an in-process implementation of the ledger stores used by
// tests and by the "memory" database driver in development.
package memory

import (
	"sort"
	"sync"

	"promoledger/internal/models"
	"promoledger/internal/repository"
)

// Store holds every collection behind one mutex so multi-row operations such
// as ResetDaily are atomic. Rows are copied in and out.
type Store struct {
	mu sync.Mutex

	links         map[string]models.AffiliateLink
	attributions  map[string]models.Attribution
	sponsorships  map[string]models.Sponsorship
	products      map[string]models.Product
	notifications map[string]map[string]models.Notification
	deviceTokens  map[string]models.DeviceToken
}

func New() *Store {
	return &Store{
		links:         map[string]models.AffiliateLink{},
		attributions:  map[string]models.Attribution{},
		sponsorships:  map[string]models.Sponsorship{},
		products:      map[string]models.Product{},
		notifications: map[string]map[string]models.Notification{},
		deviceTokens:  map[string]models.DeviceToken{},
	}
}

// Stores exposes s through the repository interfaces.
func (s *Store) Stores() repository.Stores {
	return repository.Stores{
		Links:         &LinkStore{s},
		Attributions:  &AttributionStore{s},
		Sponsorships:  &SponsorshipStore{s},
		Products:      &ProductStore{s},
		Notifications: &NotificationStore{s},
		DeviceTokens:  &DeviceTokenStore{s},
	}
}

func window[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return []T{}
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
