package session

import (
	"errors"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
)

var ErrRegistryFull = errors.New("session registry rejected the session")

// Registry maps bearer tokens to live controllers. Entries expire after ttl;
// an expired or evicted session simply has to sign in again.
type Registry struct {
	c   *ristretto.Cache
	ttl time.Duration
}

func NewRegistry(maxSessions int64, ttl time.Duration) (*Registry, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters:        maxSessions * 10,
		MaxCost:            maxSessions,
		BufferItems:        64,
		IgnoreInternalCost: true,
	})
	if err != nil {
		return nil, err
	}
	return &Registry{c: c, ttl: ttl}, nil
}

func (r *Registry) Put(ctrl *Controller) (string, error) {
	token := uuid.NewString()
	if !r.c.SetWithTTL(token, ctrl, 1, r.ttl) {
		return "", ErrRegistryFull
	}
	r.c.Wait()
	// a set can still be refused by the admission policy after Wait
	if _, ok := r.c.Get(token); !ok {
		return "", ErrRegistryFull
	}
	return token, nil
}

func (r *Registry) Get(token string) (*Controller, bool) {
	v, ok := r.c.Get(token)
	if !ok {
		return nil, false
	}
	ctrl, ok := v.(*Controller)
	return ctrl, ok
}

func (r *Registry) Drop(token string) { r.c.Del(token) }

func (r *Registry) Close() { r.c.Close() }
