// Package services – SettingsService
//
// This file implements SettingsService, which manages users and their
// per-user integration settings: the storage backend, the vendor cloud
// credential and the bot chat bindings. Inputs are validated with
// go-playground/validator before anything is persisted.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/domain"
	"github.com/tbourn/go-recorder-backend/internal/repo"
	"github.com/tbourn/go-recorder-backend/internal/storage"
)

// StorageFactory builds providers from configuration records and drops
// cached providers after a configuration change.
type StorageFactory interface {
	Build(ctx context.Context, sc *domain.StorageConfig) (storage.Provider, error)
	Invalidate(userID string)
}

// VendorAccountInput is the credential a user registers for vendor syncs.
type VendorAccountInput struct {
	Token   string `json:"token"    validate:"required"`
	BaseURL string `json:"base_url" validate:"omitempty,url"`
}

// SettingsService manages users and their integration settings.
type SettingsService struct {
	DB      *gorm.DB
	Storage StorageFactory

	validate *validator.Validate
}

// NewSettingsService wires a SettingsService with a fresh validator.
func NewSettingsService(db *gorm.DB, f StorageFactory) *SettingsService {
	return &SettingsService{DB: db, Storage: f, validate: validator.New()}
}

// CreateUser registers a user by email.
func (s *SettingsService) CreateUser(ctx context.Context, email string) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, fmt.Errorf("%w: email: %v", ErrInvalidSettings, err)
	}
	u, err := repo.CreateUser(ctx, s.DB, email)
	if err != nil {
		if repo.IsDuplicate(err) {
			return nil, ErrUserExists
		}
		return nil, err
	}
	return u, nil
}

// StorageConfig returns the user's storage configuration. Users without one get
// the implicit local default.
func (s *SettingsService) StorageConfig(ctx context.Context, userID string) (*domain.StorageConfig, error) {
	sc, err := repo.GetStorageConfig(ctx, s.DB, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &domain.StorageConfig{UserID: userID, Backend: storage.BackendLocal, Params: "{}"}, nil
	}
	return sc, err
}

// SetStorage validates and stores the user's storage backend. The provider
// is built once before saving so that bad parameters are rejected up front.
func (s *SettingsService) SetStorage(ctx context.Context, userID, backend string, params map[string]any) (*domain.StorageConfig, error) {
	tr := otel.Tracer("services/SettingsService")
	ctx, span := tr.Start(ctx, "SetStorage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("storage.backend", backend),
		),
	)
	defer span.End()

	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}
	if params == nil {
		params = map[string]any{}
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: params: %v", ErrInvalidSettings, err)
	}

	sc := &domain.StorageConfig{UserID: userID, Backend: strings.ToLower(strings.TrimSpace(backend)), Params: string(raw)}
	if _, err := s.Storage.Build(ctx, sc); err != nil {
		if errors.Is(err, storage.ErrInvalidConfig) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		return nil, err
	}
	if err := repo.SaveStorageConfig(ctx, s.DB, sc); err != nil {
		return nil, err
	}
	s.Storage.Invalidate(userID)
	return sc, nil
}

// SetVendorAccount stores the user's vendor credential.
func (s *SettingsService) SetVendorAccount(ctx context.Context, userID string, in VendorAccountInput) error {
	in.Token = strings.TrimSpace(in.Token)
	in.BaseURL = strings.TrimRight(strings.TrimSpace(in.BaseURL), "/")
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	return repo.SaveVendorAccount(ctx, s.DB, &domain.VendorAccount{UserID: userID, Token: in.Token, BaseURL: in.BaseURL})
}

// BindChat routes recordings sent from chatID to userID, replacing any
// existing binding. The caller's claim on the chat is not verified.
func (s *SettingsService) BindChat(ctx context.Context, userID string, chatID int64) error {
	if chatID == 0 {
		return fmt.Errorf("%w: chat id must be non-zero", ErrInvalidSettings)
	}
	if err := s.requireUser(ctx, userID); err != nil {
		return err
	}
	return repo.BindChannel(ctx, s.DB, chatID, userID)
}

func (s *SettingsService) requireUser(ctx context.Context, userID string) error {
	if _, err := repo.GetUser(ctx, s.DB, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}
