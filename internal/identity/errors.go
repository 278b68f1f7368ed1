package identity

import (
	"errors"
	"fmt"

	"github.com/iliyamo/ebank-backoffice/internal/repository"
)

var (
	// ErrIdentityNotFound is returned when no identity has the username.
	ErrIdentityNotFound = fmt.Errorf("identity %w", repository.ErrNotFound)
	// ErrDuplicateIdentity is returned when the username is already taken.
	ErrDuplicateIdentity = fmt.Errorf("identity %w", repository.ErrDuplicate)
	// ErrIncorrectCredential rejects a password change whose old password
	// does not match.
	ErrIncorrectCredential = errors.New("incorrect credential")
	// ErrAuthenticationFailed covers both an unknown username and a wrong
	// password so callers cannot enumerate existing accounts.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrInvalidCredential rejects an empty username, password or role name.
	ErrInvalidCredential = errors.New("username, password and role name must not be empty")
)
