// Package auth is the identity provider: an account directory plus a
// per-session client that tracks who is signed in and notifies listeners.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"

	"kenfolio/internal/database"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrEmailInUse         = errors.New("auth: email already in use")
	ErrWeakPassword       = errors.New("auth: password is too weak")
	ErrInvalidEmail       = errors.New("auth: invalid email address")
	ErrNotSignedIn        = errors.New("auth: not signed in")
)

type Identity struct {
	UserID string
	Email  string
}

type Provider interface {
	SignIn(ctx context.Context, email, secret string) error
	SignUp(ctx context.Context, email, secret string) error
	SignOut(ctx context.Context) error
	OnAuthChange(fn func(*Identity))
}

type AccountStore interface {
	CreateAccount(ctx context.Context, a database.Account) error
	GetAccountByEmail(ctx context.Context, email string) (database.Account, error)
}

type Directory struct {
	accounts       AccountStore
	minPasswordLen int
	hashCost       int
	log            *logrus.Logger
}

func NewDirectory(accounts AccountStore, minPasswordLen int, log *logrus.Logger) *Directory {
	return &Directory{accounts: accounts, minPasswordLen: minPasswordLen, hashCost: bcrypt.DefaultCost, log: log}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

func (d *Directory) Register(ctx context.Context, email, secret string) (Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	if len(secret) < d.minPasswordLen {
		return Identity{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), d.hashCost)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	acc := database.Account{ID: uuid.NewString(), Email: email, PasswordHash: string(hash)}
	if err := d.accounts.CreateAccount(ctx, acc); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return Identity{}, ErrEmailInUse
		}
		return Identity{}, err
	}
	d.log.Infof("registered account %s", acc.ID)
	return Identity{UserID: acc.ID, Email: email}, nil
}

func (d *Directory) Verify(ctx context.Context, email, secret string) (Identity, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Identity{}, err
	}
	acc, err := d.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, ErrInvalidCredentials
		}
		return Identity{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(secret)); err != nil {
		return Identity{}, ErrInvalidCredentials
	}
	return Identity{UserID: acc.ID, Email: acc.Email}, nil
}

// Client holds the signed-in identity of one session.
type Client struct {
	dir *Directory

	mu        sync.Mutex
	current   *Identity
	listeners []func(*Identity)
}

func (d *Directory) NewClient() *Client {
	return &Client{dir: d}
}

func (c *Client) OnAuthChange(fn func(*Identity)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	id := *c.current
	return &id
}

func (c *Client) SignIn(ctx context.Context, email, secret string) error {
	id, err := c.dir.Verify(ctx, email, secret)
	if err != nil {
		return err
	}
	c.set(&id)
	return nil
}

// SignUp registers the account and signs the client in.
func (c *Client) SignUp(ctx context.Context, email, secret string) error {
	id, err := c.dir.Register(ctx, email, secret)
	if err != nil {
		return err
	}
	c.set(&id)
	return nil
}

func (c *Client) SignOut(ctx context.Context) error {
	if c.Current() == nil {
		return ErrNotSignedIn
	}
	c.set(nil)
	return nil
}

func (c *Client) set(id *Identity) {
	c.mu.Lock()
	c.current = id
	listeners := make([]func(*Identity), len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.Unlock()
	for _, fn := range listeners {
		var arg *Identity
		if id != nil {
			cp := *id
			arg = &cp
		}
		fn(arg)
	}
}
