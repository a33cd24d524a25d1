// Package user persists user records with their embedded KYC profile.
//
// Three backends share one contract: in-memory for tests and local runs,
// Postgres (JSONB profile column) and MongoDB (embedded profile document).
// All of them return sentinel errors; services translate them.
package user

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"kycgate/internal/auth/models"
	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

// InMemoryUserStore keeps users in maps guarded by a RWMutex.
type InMemoryUserStore struct {
	mu      sync.RWMutex
	users   map[id.UserID]*models.User
	byEmail map[string]id.UserID
}

func New() *InMemoryUserStore {
	return &InMemoryUserStore{
		users:   make(map[id.UserID]*models.User),
		byEmail: make(map[string]id.UserID),
	}
}

func (s *InMemoryUserStore) Create(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byEmail[user.Email]; taken {
		return sentinel.ErrConflict
	}
	s.users[user.ID] = user.Clone()
	s.byEmail[user.Email] = user.ID
	return nil
}

func (s *InMemoryUserStore) FindByID(_ context.Context, userID id.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if user, ok := s.users[userID]; ok {
		return user.Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if userID, ok := s.byEmail[models.NormalizeEmail(email)]; ok {
		return s.users[userID].Clone(), nil
	}
	return nil, sentinel.ErrNotFound
}

// UpdateKYC writes the KYC profile of user if its version still matches the
// stored one, then bumps the version on both.
func (s *InMemoryUserStore) UpdateKYC(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[user.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != user.Version {
		return sentinel.ErrVersionConflict
	}
	user.Version++
	next := stored.Clone()
	next.Profile = user.Clone().Profile
	next.UpdatedAt = user.UpdatedAt
	next.Version = user.Version
	s.users[user.ID] = next
	return nil
}

// AppendDocument appends doc to the stored profile without a version check.
func (s *InMemoryUserStore) AppendDocument(_ context.Context, userID id.UserID, doc kyc.Document, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.users[userID]
	if !ok {
		return sentinel.ErrNotFound
	}
	stored.AppendDocument(doc)
	stored.UpdatedAt = now
	stored.Version++
	return nil
}

// ListByKYCStatus returns users in any of statuses, oldest first.
func (s *InMemoryUserStore) ListByKYCStatus(_ context.Context, statuses ...kyc.Status) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0)
	for _, u := range s.users {
		if slices.Contains(statuses, u.Status) {
			out = append(out, u.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.User) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}
