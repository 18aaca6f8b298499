// Package persistence stores each identity's state as a single document.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"

	"kenfolio/internal/models"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const Collection = "users"

// ErrMalformedDocument marks a stored document that failed validation. Load
// still returns an empty state alongside it.
var ErrMalformedDocument = errors.New("malformed portfolio document")

type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persistence %s: %v", e.Op, e.Err) }

func (e *PersistenceError) Unwrap() error { return e.Err }

func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}

type DocumentStore interface {
	GetDocument(ctx context.Context, collection, key string) ([]byte, bool, error)
	SetDocument(ctx context.Context, collection, key string, body []byte) error
}

type Gateway struct {
	store DocumentStore
	log   *logrus.Logger
}

func NewGateway(store DocumentStore, log *logrus.Logger) *Gateway {
	return &Gateway{store: store, log: log}
}

// Save overwrites the user's document with st. There is no merge.
func (g *Gateway) Save(ctx context.Context, userID string, st models.UserState) error {
	body, err := json.Marshal(toDocument(st))
	if err != nil {
		return &PersistenceError{Op: "save", Err: errors.Wrap(err, "encode document")}
	}
	if err := g.store.SetDocument(ctx, Collection, userID, body); err != nil {
		return &PersistenceError{Op: "save", Err: errors.Wrapf(err, "set document %s/%s", Collection, userID)}
	}
	return nil
}

// Load returns the stored state, or an empty one when the user has never saved.
func (g *Gateway) Load(ctx context.Context, userID string) (models.UserState, error) {
	body, ok, err := g.store.GetDocument(ctx, Collection, userID)
	if err != nil {
		return models.EmptyState(), &PersistenceError{Op: "load", Err: errors.Wrapf(err, "get document %s/%s", Collection, userID)}
	}
	if !ok {
		return models.EmptyState(), nil
	}
	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		g.log.Warnf("document for %s is not valid json: %v", userID, err)
		return models.EmptyState(), errors.Wrap(ErrMalformedDocument, err.Error())
	}
	st, err := doc.toState()
	if err != nil {
		g.log.Warnf("document for %s failed validation: %v", userID, err)
		return models.EmptyState(), errors.Wrap(ErrMalformedDocument, err.Error())
	}
	return st, nil
}
