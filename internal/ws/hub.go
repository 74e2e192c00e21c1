package ws

import (
	"context"
	"encoding/json"
	"sync"

	"promoledger/internal/domain"
	"promoledger/internal/events"
)

const (
	SubjectAdmin = "admin"
	sendBuffer   = 256
)

func UserSubject(userID string) string         { return "user:" + userID }
func BusinessSubject(businessID string) string { return "business:" + businessID }

// Client represents a single dashboard connection and the subjects it may see.
type Client struct {
	UserID   string
	Role     string
	Subjects []string
	Send     chan []byte
	Hub      *Hub // set by Register so Close can unregister
	mu       sync.Mutex
	closed   bool
}

func NewClient(userID, role string, subjects ...string) *Client {
	return &Client{UserID: userID, Role: role, Subjects: subjects, Send: make(chan []byte, sendBuffer)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// Hub fans ledger events out to dashboard clients by subject.
type Hub struct {
	mu        sync.RWMutex
	clients   map[*Client]struct{}
	bySubject map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*Client]struct{}),
		bySubject: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
	for _, s := range c.Subjects {
		if h.bySubject[s] == nil {
			h.bySubject[s] = make(map[*Client]struct{})
		}
		h.bySubject[s][c] = struct{}{}
	}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	for _, s := range c.Subjects {
		if m := h.bySubject[s]; m != nil {
			delete(m, c)
			if len(m) == 0 {
				delete(h.bySubject, s)
			}
		}
	}
}

// Broadcast sends payload to every client subscribed to any of subjects.
// Slow clients drop messages rather than block the ledger.
func (h *Hub) Broadcast(payload interface{}, subjects ...string) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	targets := make(map[*Client]struct{})
	for _, s := range subjects {
		for c := range h.bySubject[s] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	h.deliver(targets, data)
}

func (h *Hub) BroadcastAll(payload interface{}) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	targets := make(map[*Client]struct{}, len(h.clients))
	for c := range h.clients {
		targets[c] = struct{}{}
	}
	h.mu.RUnlock()
	h.deliver(targets, data)
}

func (h *Hub) deliver(targets map[*Client]struct{}, data []byte) {
	for c := range targets {
		c.mu.Lock()
		if !c.closed {
			select {
			case c.Send <- data:
			default:
			}
		}
		c.mu.Unlock()
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish relays a ledger event to the dashboards allowed to see it.
func (h *Hub) Publish(_ context.Context, e events.Event) error {
	if e.Type == events.RankingRecomputed {
		h.BroadcastAll(e)
		return nil
	}
	var owner struct {
		InfluencerID string `json:"influencerId"`
		BusinessID   string `json:"businessId"`
	}
	_ = json.Unmarshal(e.Payload, &owner)
	subjects := []string{SubjectAdmin}
	if owner.InfluencerID != "" {
		subjects = append(subjects, UserSubject(owner.InfluencerID))
	}
	if owner.BusinessID != "" {
		subjects = append(subjects, BusinessSubject(owner.BusinessID))
	}
	h.Broadcast(e, subjects...)
	return nil
}

// SubjectsFor lists the subjects a caller may subscribe to.
func SubjectsFor(actor domain.Actor) []string {
	subjects := []string{UserSubject(actor.UserID)}
	if actor.Role == domain.RoleAdmin {
		subjects = append(subjects, SubjectAdmin)
	}
	if domain.IsBusinessRole(actor.Role) && actor.BusinessID != "" {
		subjects = append(subjects, BusinessSubject(actor.BusinessID))
	}
	return subjects
}
