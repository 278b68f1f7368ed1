// Package identity manages login identities and their roles, and builds
// the claim set of an access token once a caller has authenticated. It
// never signs tokens itself; signing belongs to utils.JWTSigner.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/ebank-backoffice/internal/logger"
	"github.com/iliyamo/ebank-backoffice/internal/model"
	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

// DefaultTokenTTL is how long an issued claim set stays valid.
const DefaultTokenTTL = 5 * time.Minute

// IdentityStore persists identities together with their granted roles.
type IdentityStore interface {
	FindByUsername(ctx context.Context, username string) (model.Identity, error)
	CreateIdentity(ctx context.Context, identity model.Identity) (model.Identity, error)
	SaveIdentity(ctx context.Context, identity model.Identity) error
	DeleteIdentity(ctx context.Context, username string) error
}

// RoleStore persists roles. Names are unique.
type RoleStore interface {
	FindByName(ctx context.Context, name string) (model.Role, error)
	SaveRole(ctx context.Context, role model.Role) (model.Role, error)
}

// PasswordHasher hashes and verifies credentials. utils.BcryptHasher is the
// production implementation.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Verify(plain, hash string) bool
}

type Engine struct {
	identities IdentityStore
	roles      RoleStore
	hasher     PasswordHasher
	now        func() time.Time
	ttl        time.Duration

	// mu serialises read-modify-write of an identity's roles and hash.
	mu sync.Mutex
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func NewEngine(identities IdentityStore, roles RoleStore, hasher PasswordHasher, opts ...Option) *Engine {
	e := &Engine{
		identities: identities,
		roles:      roles,
		hasher:     hasher,
		now:        func() time.Time { return time.Now().UTC() },
		ttl:        DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AddNewAccount creates an identity with a hashed password and grants it
// roleName. It fails with ErrDuplicateIdentity when the username exists.
func (e *Engine) AddNewAccount(ctx context.Context, username, password, roleName string) (model.Identity, error) {
	username = strings.TrimSpace(username)
	roleName = strings.TrimSpace(roleName)
	if username == "" || password == "" || roleName == "" {
		return model.Identity{}, ErrInvalidCredential
	}

	if _, err := e.identities.FindByUsername(ctx, username); err == nil {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrDuplicateIdentity, username)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, err
	}

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return model.Identity{}, fmt.Errorf("hash password: %w", err)
	}
	created, err := e.identities.CreateIdentity(ctx, model.Identity{
		Username:     username,
		PasswordHash: hash,
		Roles:        []model.Role{},
		CreatedAt:    e.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Identity{}, fmt.Errorf("%w: %s", ErrDuplicateIdentity, username)
		}
		return model.Identity{}, err
	}
	logger.Info("identity created", logger.Fields{"username": created.Username, "identityId": created.ID})

	return e.AddRoleToAccount(ctx, username, roleName)
}

// AddRoleToAccount grants roleName to the identity. An unknown role is
// created on the fly with a default description. Granting a role the
// identity already holds is a no-op.
func (e *Engine) AddRoleToAccount(ctx context.Context, username, roleName string) (model.Identity, error) {
	roleName = strings.TrimSpace(roleName)
	if roleName == "" {
		return model.Identity{}, ErrInvalidCredential
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	ident, err := e.find(ctx, username)
	if err != nil {
		return model.Identity{}, err
	}
	role, err := e.roles.FindByName(ctx, roleName)
	if errors.Is(err, repository.ErrNotFound) {
		role, err = e.AddNewRole(ctx, roleName, "Default description for "+roleName)
		if err == nil {
			logger.Info("role auto-provisioned", logger.Fields{"role": roleName})
		}
	}
	if err != nil {
		return model.Identity{}, err
	}
	if ident.HasRole(role.Name) {
		return ident, nil
	}

	ident.Roles = append(ident.Roles, role)
	if err := e.identities.SaveIdentity(ctx, ident); err != nil {
		return model.Identity{}, err
	}
	logger.Info("role granted", logger.Fields{"username": ident.Username, "role": role.Name})
	return ident, nil
}

// AddNewRole stores a role. When another caller created the same name
// first, the existing role is returned.
func (e *Engine) AddNewRole(ctx context.Context, name, description string) (model.Role, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Role{}, ErrInvalidCredential
	}
	role, err := e.roles.SaveRole(ctx, model.Role{Name: name, Description: description})
	if errors.Is(err, repository.ErrDuplicate) {
		return e.roles.FindByName(ctx, name)
	}
	return role, err
}

// LoadIdentity returns the identity with its roles.
func (e *Engine) LoadIdentity(ctx context.Context, username string) (model.Identity, error) {
	return e.find(ctx, username)
}

// RemoveAccount deletes the identity and its grants. Roles stay.
func (e *Engine) RemoveAccount(ctx context.Context, username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.identities.DeleteIdentity(ctx, username); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrIdentityNotFound, username)
		}
		return err
	}
	logger.Info("identity removed", logger.Fields{"username": username})
	return nil
}

// ChangePassword replaces the stored hash once oldPassword verifies.
func (e *Engine) ChangePassword(ctx context.Context, username, oldPassword, newPassword string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	ident, err := e.find(ctx, username)
	if err != nil {
		return err
	}
	if !e.hasher.Verify(oldPassword, ident.PasswordHash) {
		logger.Info("password change rejected", logger.Fields{"username": username})
		return ErrIncorrectCredential
	}
	if newPassword == "" {
		return ErrInvalidCredential
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	ident.PasswordHash = hash
	if err := e.identities.SaveIdentity(ctx, ident); err != nil {
		return err
	}
	logger.Info("password changed", logger.Fields{"username": username})
	return nil
}

// IssueToken authenticates username and password and returns the claim set
// to be signed. The scope is fixed at issuance; later role grants only show
// up in the next token.
func (e *Engine) IssueToken(ctx context.Context, username, password string) (model.ClaimSet, error) {
	ident, err := e.identities.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			logger.Info("authentication failed", logger.Fields{"username": username, "reason": "unknown user"})
			return model.ClaimSet{}, ErrAuthenticationFailed
		}
		return model.ClaimSet{}, err
	}
	if !e.hasher.Verify(password, ident.PasswordHash) {
		logger.Info("authentication failed", logger.Fields{"username": username, "reason": "bad password"})
		return model.ClaimSet{}, ErrAuthenticationFailed
	}

	now := e.now()
	return model.ClaimSet{
		Subject:   ident.Username,
		Scope:     strings.Join(ident.RoleNames(), " "),
		IssuedAt:  now,
		ExpiresAt: now.Add(e.ttl),
	}, nil
}

func (e *Engine) find(ctx context.Context, username string) (model.Identity, error) {
	ident, err := e.identities.FindByUsername(ctx, username)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Identity{}, fmt.Errorf("%w: %s", ErrIdentityNotFound, username)
	}
	return ident, err
}
