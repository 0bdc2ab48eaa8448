package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// User is the persisted account row.
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:255;not null;uniqueIndex"`
	HashedPassword string `gorm:"not null"`
	Roles          []Role `gorm:"many2many:user_roles;"`
}

// Role is a named scope label granted to users.
type Role struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	Name      string `gorm:"size:64;not null;uniqueIndex"`
}

// GormProvider is a PostgreSQL [Store] backed by GORM.
type GormProvider struct {
	db     *gorm.DB
	hasher Hasher
}

// NewGormProvider wraps an open GORM handle.
func NewGormProvider(db *gorm.DB, hasher Hasher) *GormProvider {
	return &GormProvider{db: db, hasher: hasher}
}

// OpenGorm connects to PostgreSQL at dsn.
func OpenGorm(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", goToken.ErrUserStoreUnavailable, err)
	}
	return db, nil
}

// AutoMigrate creates or updates the users, roles and user_roles tables.
func (g *GormProvider) AutoMigrate(ctx context.Context) error {
	if err := g.db.WithContext(ctx).AutoMigrate(&Role{}, &User{}); err != nil {
		return fmt.Errorf("userstore migrate: %w", err)
	}
	return nil
}

// GetUserByIdentifier implements [goToken.UserProvider].
func (g *GormProvider) GetUserByIdentifier(ctx context.Context, identifier string) (goToken.UserRecord, error) {
	var u User
	err := g.db.WithContext(ctx).
		Preload("Roles").
		Where("username = ?", identifier).
		First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return goToken.UserRecord{}, notFound(identifier)
	}
	if err != nil {
		return goToken.UserRecord{}, fmt.Errorf("%w: %v", goToken.ErrUserStoreUnavailable, err)
	}

	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	return goToken.UserRecord{
		Identifier:   u.Username,
		PasswordHash: u.HashedPassword,
		Roles:        roles,
	}, nil
}

// Create implements [Store]. Missing roles are created in the same
// transaction.
func (g *GormProvider) Create(ctx context.Context, identifier, password string, roles []string) error {
	id, err := normalizeIdentifier(identifier)
	if err != nil {
		return err
	}
	hash, err := g.hasher.Hash(password)
	if err != nil {
		return err
	}

	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&User{}).Where("username = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("%w: %v", goToken.ErrUserStoreUnavailable, err)
		}
		if count > 0 {
			return fmt.Errorf("%w: %s", ErrUserExists, id)
		}

		user := User{Username: id, HashedPassword: hash}
		for _, name := range roles {
			role := Role{Name: name}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&role).Error; err != nil {
				return fmt.Errorf("%w: %v", goToken.ErrUserStoreUnavailable, err)
			}
			if role.ID == 0 {
				if err := tx.Where("name = ?", name).First(&role).Error; err != nil {
					return fmt.Errorf("%w: %v", goToken.ErrUserStoreUnavailable, err)
				}
			}
			user.Roles = append(user.Roles, role)
		}

		if err := tx.Omit("Roles.*").Create(&user).Error; err != nil {
			return fmt.Errorf("%w: %v", goToken.ErrUserStoreUnavailable, err)
		}
		return nil
	})
}
