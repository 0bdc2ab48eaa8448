package userstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goToken "github.com/MrEthical07/goToken"
)

// ErrUserExists is returned by Create for a duplicate identifier.
var ErrUserExists = errors.New("user already exists")

// Hasher is the subset of password.Argon2 used when accounts are created.
type Hasher interface {
	Hash(password string) (string, error)
}

// Store is a [goToken.UserProvider] that can also create accounts.
type Store interface {
	goToken.UserProvider
	Create(ctx context.Context, identifier, password string, roles []string) error
}

// AdminRole is the role granted to the seeded administrator.
const AdminRole = "ADMIN"

// EnsureAdmin creates identifier with [AdminRole] unless it already exists.
// It reports whether a user was created.
func EnsureAdmin(ctx context.Context, store Store, identifier, password string) (bool, error) {
	_, err := store.GetUserByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, goToken.ErrUserNotFound):
		return false, err
	}

	err = store.Create(ctx, identifier, password, []string{AdminRole})
	if errors.Is(err, ErrUserExists) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func normalizeIdentifier(identifier string) (string, error) {
	id := strings.TrimSpace(identifier)
	if id == "" {
		return "", fmt.Errorf("%w: blank identifier", goToken.ErrInvalidSubject)
	}
	return id, nil
}

func notFound(identifier string) error {
	return fmt.Errorf("%w: %s", goToken.ErrUserNotFound, identifier)
}
