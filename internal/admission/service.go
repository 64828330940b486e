package admission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-reservation/internal/clock"
)

// TokenStore persists admission tokens in shared storage.  Save is
// status-driven: writing a WAITING token enqueues it (and may promote it
// immediately when an active slot is free), writing EXPIRED or DONE removes
// the token and triggers promotion of the oldest waiter.  Implementations
// must make promotion atomic so the active count never exceeds the limit
// across replicas.
type TokenStore interface {
	// FindLatestByUser returns the user's most recent non-terminal token,
	// or ErrTokenNotFound.
	FindLatestByUser(ctx context.Context, userID uint64) (*Token, error)
	// FindByValue looks a token up by its opaque value, or ErrTokenNotFound.
	FindByValue(ctx context.Context, value string) (*Token, error)
	// Save writes the token according to its status and returns the stored
	// state, which may differ (a WAITING token can come back ACTIVE).
	Save(ctx context.Context, t *Token) (*Token, error)
}

// Service implements issue / validate / complete on top of a TokenStore.
type Service struct {
	store TokenStore
	clk   clock.Clock
	ttl   time.Duration // fixed token TTL from issuance
}

// NewService wires the admission service.  ttl is the fixed token
// time-to-live (10 minutes in production).
func NewService(store TokenStore, clk clock.Clock, ttl time.Duration) *Service {
	return &Service{store: store, clk: clk, ttl: ttl}
}

// Issue returns the user's admission token.  Re-issuing while the latest
// token is still WAITING or ACTIVE is idempotent and returns that token; an
// expired latest token is marked EXPIRED first and a fresh WAITING token is
// created (and possibly promoted straight to ACTIVE).
func (s *Service) Issue(ctx context.Context, userID uint64) (*Token, error) {
	now := s.clk.Now()

	existing, err := s.store.FindLatestByUser(ctx, userID)
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		return nil, fmt.Errorf("find latest token: %w", err)
	}
	if existing != nil {
		if !existing.IsExpired(now) && existing.IsActiveOrWaiting() {
			return existing, nil
		}
		if existing.IsExpired(now) && existing.Status != StatusExpired {
			existing.Status = StatusExpired
			if _, err := s.store.Save(ctx, existing); err != nil {
				return nil, fmt.Errorf("expire stale token: %w", err)
			}
		}
	}

	fresh := &Token{
		UserID:    userID,
		Value:     uuid.NewString(),
		Status:    StatusWaiting,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	saved, err := s.store.Save(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return saved, nil
}

// ValidateActive resolves value to a token and ensures it may be used for
// protected operations.  An expired token is marked EXPIRED as a side
// effect before the failure is returned; a WAITING token fails without
// mutating anything.
func (s *Service) ValidateActive(ctx context.Context, value string) (*Token, error) {
	now := s.clk.Now()

	t, err := s.store.FindByValue(ctx, value)
	if err != nil {
		return nil, err
	}
	if t.IsExpired(now) {
		t.Status = StatusExpired
		if _, saveErr := s.store.Save(ctx, t); saveErr != nil {
			return nil, fmt.Errorf("expire token: %w", saveErr)
		}
		return nil, ErrTokenExpired
	}
	if t.Status != StatusActive {
		return nil, ErrTokenNotActive
	}
	return t, nil
}

// Complete marks an ACTIVE token DONE, freeing its slot for the next waiter.
func (s *Service) Complete(ctx context.Context, value string) error {
	t, err := s.ValidateActive(ctx, value)
	if err != nil {
		return err
	}
	t.Status = StatusDone
	if _, err := s.store.Save(ctx, t); err != nil {
		return fmt.Errorf("complete token: %w", err)
	}
	return nil
}

// Status returns the caller's latest token so clients can poll their queue
// position.  An expired token is reported as EXPIRED without creating a new
// one; callers re-enter the queue via Issue.
func (s *Service) Status(ctx context.Context, userID uint64) (*Token, error) {
	now := s.clk.Now()
	t, err := s.store.FindLatestByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if t.IsExpired(now) && t.IsActiveOrWaiting() {
		t.Status = StatusExpired
		if _, err := s.store.Save(ctx, t); err != nil {
			return nil, fmt.Errorf("expire token: %w", err)
		}
	}
	return t, nil
}
