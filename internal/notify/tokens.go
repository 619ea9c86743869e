package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/store"
)

// UserSource is the slice of the store the resolver needs.
type UserSource interface {
	GetUser(ctx context.Context, uid string) (*store.User, error)
}

// TokenResolver resolves a user ID to that user's registered device tokens.
type TokenResolver struct {
	users  UserSource
	logger *logger.Logger
}

// NewTokenResolver creates a new token resolver.
func NewTokenResolver(users UserSource, logger *logger.Logger) *TokenResolver {
	return &TokenResolver{
		users:  users,
		logger: logger.WithComponent("token-resolver"),
	}
}

// ResolveTokens returns the deduplicated token set for a user. An empty user
// ID or an absent user record yields an empty set, not an error; a storage
// read failure propagates to the caller.
func (r *TokenResolver) ResolveTokens(ctx context.Context, uid string) ([]string, error) {
	if uid == "" {
		return nil, nil
	}

	user, err := r.users.GetUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tokens for user %s: %w", uid, err)
	}
	if user == nil {
		r.logger.WithContext(ctx).Debug("no user record, skipping",
			slog.String("user_id", uid))
		return nil, nil
	}

	return user.Tokens, nil
}
