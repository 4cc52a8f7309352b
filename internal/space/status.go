package space

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/f0rthsp4ce/botka/internal/db"
)

// Service produces occupancy reports. The last lease snapshot is kept
// behind a read-write lock; presence tooling reads it frequently while the
// poller replaces it.
type Service struct {
	router *RouterClient
	store  *db.DB

	mu        sync.RWMutex
	lastMACs  []string
	lastFetch time.Time
}

func NewService(router *RouterClient, store *db.DB) *Service {
	return &Service{router: router, store: store}
}

// Refresh fetches leases and replaces the active-MAC snapshot.
func (s *Service) Refresh(ctx context.Context) error {
	leases, err := s.router.Leases(ctx)
	if err != nil {
		return err
	}
	macs := ActiveMACs(leases)

	s.mu.Lock()
	s.lastMACs = macs
	s.lastFetch = time.Now()
	s.mu.Unlock()
	return nil
}

// ActiveMACs returns the current snapshot of present MAC addresses.
func (s *Service) ActiveMACs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.lastMACs))
	copy(out, s.lastMACs)
	return out
}

// StatusReport fetches fresh lease data and formats the occupancy line.
// On router failure it reports the failure instead of returning an error;
// the caller forwards the text to the model either way.
func (s *Service) StatusReport(ctx context.Context) string {
	if s.router == nil {
		return "Presence tracking is not configured."
	}
	if err := s.Refresh(ctx); err != nil {
		log.Printf("[space] failed to get leases: %v", err)
		return "Failed to get leases."
	}

	names, err := s.store.UsersByMACs(s.ActiveMACs())
	if err != nil {
		log.Printf("[space] resolve users by macs: %v", err)
		return "Failed to resolve present users."
	}
	if len(names) == 0 {
		return "Currently in space: nobody."
	}
	return fmt.Sprintf("Currently in space: %s", strings.Join(names, ", "))
}
