package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"food-explorer/pkg/cart"
	"food-explorer/pkg/catalog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const sessionHeader = "X-Session-ID"

var errInvalidSession = errors.New("invalid " + sessionHeader + " header")

// session is one user's catalog view and cart.
type session struct {
	id      string
	catalog *catalog.Pipeline
	cart    *cart.Store

	// cartMu orders cart mutations with their writes to storage.
	cartMu sync.Mutex

	mu       sync.Mutex
	lastSeen time.Time
}

func (s *session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *session) idleSince(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastSeen)
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session

	source  catalog.Source
	options []catalog.Option
	carts   *cart.Repository
	ttl     time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func newSessionRegistry(src catalog.Source, opts []catalog.Option, carts *cart.Repository, ttl time.Duration, log *zap.Logger) *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*session),
		source:   src,
		options:  opts,
		carts:    carts,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// resolve returns the session for id, creating it when id is empty or
// unknown. A new session with a known id gets its stored cart back.
func (r *sessionRegistry) resolve(ctx context.Context, id string) (*session, bool, error) {
	if id == "" {
		id = uuid.NewString()
	} else {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", errInvalidSession, err)
		}
		id = parsed.String()
	}

	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked(now)

	if s, ok := r.sessions[id]; ok {
		s.touch(now)
		return s, false, nil
	}

	s := &session{
		id:       id,
		catalog:  catalog.New(r.source, r.options...),
		cart:     cart.New(),
		lastSeen: now,
	}
	if r.carts != nil {
		lines, err := r.carts.Load(ctx, id)
		if err != nil {
			return nil, false, err
		}
		s.cart.Restore(lines)
	}
	r.sessions[id] = s
	r.log.Debug("Session created", zap.String("session", id), zap.Int("cart_items", s.cart.Total()))
	return s, true, nil
}

func (r *sessionRegistry) evictLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	for id, s := range r.sessions {
		if s.idleSince(now) > r.ttl {
			delete(r.sessions, id)
			r.log.Debug("Session expired", zap.String("session", id))
		}
	}
}

// updateCart applies fn to the session's cart and writes the result through
// to storage while holding the session's cart lock, so stored carts never
// go back to an older state. fn reports whether it changed the cart. The
// in-memory cart stays authoritative when the write fails.
func (r *sessionRegistry) updateCart(ctx context.Context, s *session, fn func(*cart.Store) (bool, error)) error {
	s.cartMu.Lock()
	defer s.cartMu.Unlock()

	changed, err := fn(s.cart)
	if err != nil || !changed || r.carts == nil {
		return err
	}

	if s.cart.Len() == 0 {
		err = r.carts.Delete(ctx, s.id)
	} else {
		err = r.carts.Save(ctx, s.id, s.cart.Lines())
	}
	if err != nil {
		r.log.Warn("Failed to persist cart", zap.String("session", s.id), zap.Error(err))
	}
	return nil
}

func (r *sessionRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
