// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for users and
// their integration settings (storage backend, vendor credential, bot chat
// bindings).
package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-recorder-backend/internal/domain"
)

// CreateUser inserts a user with a fresh UUID.
func CreateUser(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	u := &domain.User{
		ID:        uuid.NewString(),
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

// GetUser fetches a user by id.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// FirstUser returns the earliest created user, or ErrNotFound when the
// catalog is empty.
func FirstUser(ctx context.Context, db *gorm.DB) (*domain.User, error) {
	var u domain.User
	err := db.WithContext(ctx).Order("created_at asc, id asc").First(&u).Error
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetStorageConfig returns the user's storage backend choice, or ErrNotFound
// when the user never configured one.
func GetStorageConfig(ctx context.Context, db *gorm.DB, userID string) (*domain.StorageConfig, error) {
	var sc domain.StorageConfig
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&sc).Error; err != nil {
		return nil, err
	}
	return &sc, nil
}

// SaveStorageConfig inserts or replaces the user's storage configuration.
func SaveStorageConfig(ctx context.Context, db *gorm.DB, sc *domain.StorageConfig) error {
	sc.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"backend", "params", "updated_at"}),
		}).
		Create(sc).Error
}

// GetVendorAccount returns the user's vendor credential.
func GetVendorAccount(ctx context.Context, db *gorm.DB, userID string) (*domain.VendorAccount, error) {
	var va domain.VendorAccount
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&va).Error; err != nil {
		return nil, err
	}
	return &va, nil
}

// SaveVendorAccount inserts or replaces the user's vendor credential.
func SaveVendorAccount(ctx context.Context, db *gorm.DB, va *domain.VendorAccount) error {
	va.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"token", "base_url", "updated_at"}),
		}).
		Create(va).Error
}

// GetChannelBinding returns the user bound to an external bot chat.
func GetChannelBinding(ctx context.Context, db *gorm.DB, chatID int64) (*domain.ChannelBinding, error) {
	var b domain.ChannelBinding
	if err := db.WithContext(ctx).Where("chat_id = ?", chatID).First(&b).Error; err != nil {
		return nil, err
	}
	return &b, nil
}

// BindChannel binds chatID to userID, replacing any previous binding.
func BindChannel(ctx context.Context, db *gorm.DB, chatID int64, userID string) error {
	b := &domain.ChannelBinding{ChatID: chatID, UserID: userID, CreatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"user_id"}),
		}).
		Create(b).Error
}
