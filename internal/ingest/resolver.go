package ingest

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-recorder-backend/internal/repo"
)

// UserResolver maps an external chat to the internal user that owns
// recordings sent from it.
type UserResolver interface {
	Resolve(ctx context.Context, chatID int64) (userID string, err error)
}

// BindingResolver looks the chat up in channel_bindings. Unbound chats fall
// back to the oldest user when FallbackToFirstUser is set.
type BindingResolver struct {
	DB                  *gorm.DB
	FallbackToFirstUser bool
}

func (r *BindingResolver) Resolve(ctx context.Context, chatID int64) (string, error) {
	b, err := repo.GetChannelBinding(ctx, r.DB, chatID)
	if err == nil {
		return b.UserID, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("lookup binding: %w", err)
	}
	if !r.FallbackToFirstUser {
		return "", fmt.Errorf("%w: chat %d is not bound", ErrNoTargetUser, chatID)
	}

	u, err := repo.FirstUser(ctx, r.DB)
	if errors.Is(err, repo.ErrNotFound) {
		return "", fmt.Errorf("%w: no users", ErrNoTargetUser)
	}
	if err != nil {
		return "", fmt.Errorf("lookup first user: %w", err)
	}
	log.Debug().Str("component", "bot").Int64("chat_id", chatID).Str("user_id", u.ID).Msg("unbound chat routed to first user")
	return u.ID, nil
}
