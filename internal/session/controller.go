// Package session drives one client session: it follows the identity
// provider's sign-in/sign-out events, loads the signed-in user's state and
// routes user commands to that user's ledger.
package session

import (
	"context"
	"errors"
	"sync"

	"kenfolio/internal/auth"
	"kenfolio/internal/models"
	"kenfolio/internal/persistence"
	"kenfolio/internal/portfolio"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

type Gateway interface {
	Load(ctx context.Context, userID string) (models.UserState, error)
	Save(ctx context.Context, userID string, st models.UserState) error
}

// View is what the client renders after every command.
type View struct {
	State        State                      `json:"-"`
	UserID       string                     `json:"user_id,omitempty"`
	Email        string                     `json:"email,omitempty"`
	Positions    map[string]models.Position `json:"positions"`
	Transactions []models.Transaction       `json:"transactions"`
}

// Controller serialises the commands of one session with a mutex, which plays
// the part of a single event queue.
type Controller struct {
	ctx      context.Context
	provider auth.Provider
	gateway  Gateway
	valuer   *portfolio.Valuer
	log      *logrus.Logger

	mu         sync.Mutex
	state      State
	identity   *auth.Identity
	ledger     *portfolio.Ledger
	generation uint64
	loadErr    error
}

// NewController subscribes to provider. Loads triggered by sign-in events
// run under ctx.
func NewController(ctx context.Context, provider auth.Provider, gw Gateway, valuer *portfolio.Valuer, log *logrus.Logger) *Controller {
	c := &Controller{ctx: ctx, provider: provider, gateway: gw, valuer: valuer, log: log}
	provider.OnAuthChange(c.handleAuthChange)
	return c
}

func (c *Controller) handleAuthChange(id *auth.Identity) {
	c.mu.Lock()
	c.generation++
	gen := c.generation
	// the old ledger stays in memory but is unreachable until the next load replaces it
	c.state = Unauthenticated
	c.identity = nil
	if id == nil {
		c.mu.Unlock()
		c.log.Infof("session signed out")
		return
	}
	c.mu.Unlock()

	st, err := c.gateway.Load(c.ctx, id.UserID)
	if err != nil {
		if !errors.Is(err, persistence.ErrMalformedDocument) {
			c.log.Errorf("load state for %s failed: %v", id.UserID, err)
			c.mu.Lock()
			if gen == c.generation {
				c.loadErr = err
			}
			c.mu.Unlock()
			return
		}
		c.log.Warnf("starting %s from an empty portfolio: %v", id.UserID, err)
	}
	ledger := portfolio.NewLedger(id.UserID, st, c.gateway, c.log)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.log.Warnf("discarding stale load for %s", id.UserID)
		return
	}
	c.state = Authenticated
	c.identity = id
	c.ledger = ledger
	c.loadErr = nil
	c.log.Infof("session signed in as %s (%d transactions)", id.UserID, len(st.Transactions))
}

func (c *Controller) takeLoadErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.loadErr
	c.loadErr = nil
	return err
}

func (c *Controller) SignIn(ctx context.Context, email, secret string) error {
	if err := c.provider.SignIn(ctx, email, secret); err != nil {
		return err
	}
	return c.takeLoadErr()
}

func (c *Controller) SignUp(ctx context.Context, email, secret string) error {
	if err := c.provider.SignUp(ctx, email, secret); err != nil {
		return err
	}
	return c.takeLoadErr()
}

func (c *Controller) SignOut(ctx context.Context) error {
	return c.provider.SignOut(ctx)
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Identity() *auth.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	id := *c.identity
	return &id
}

// withLedger runs fn under the session lock when signed in.
func (c *Controller) withLedger(fn func(l *portfolio.Ledger) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated || c.ledger == nil {
		return auth.ErrNotSignedIn
	}
	return fn(c.ledger)
}

func (c *Controller) Submit(ctx context.Context, symbol string, kind models.Kind, qty, price decimal.Decimal) (models.Transaction, error) {
	var tx models.Transaction
	err := c.withLedger(func(l *portfolio.Ledger) error {
		var err error
		tx, err = l.Append(ctx, symbol, kind, qty, price)
		return err
	})
	return tx, err
}

func (c *Controller) Edit(ctx context.Context, index int, qty, price decimal.Decimal) error {
	return c.withLedger(func(l *portfolio.Ledger) error {
		return l.Update(ctx, index, qty, price)
	})
}

func (c *Controller) Delete(ctx context.Context, index int) error {
	return c.withLedger(func(l *portfolio.Ledger) error {
		return l.Remove(ctx, index)
	})
}

func (c *Controller) Reset(ctx context.Context, confirmed bool) error {
	return c.withLedger(func(l *portfolio.Ledger) error {
		return l.ResetAll(ctx, confirmed)
	})
}

func (c *Controller) View() (View, error) {
	var v View
	err := c.withLedger(func(l *portfolio.Ledger) error {
		v = View{
			State:        c.state,
			UserID:       c.identity.UserID,
			Email:        c.identity.Email,
			Positions:    l.Positions(),
			Transactions: l.Transactions(),
		}
		return nil
	})
	return v, err
}

// Report values the current positions. Price lookups run outside the session
// lock so a slow oracle does not block other commands.
func (c *Controller) Report(ctx context.Context) (portfolio.Report, error) {
	var positions map[string]models.Position
	if err := c.withLedger(func(l *portfolio.Ledger) error {
		positions = l.Positions()
		return nil
	}); err != nil {
		return portfolio.Report{}, err
	}
	return c.valuer.Report(ctx, positions), nil
}
