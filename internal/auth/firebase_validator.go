package auth

import (
	"context"

	"firebase.google.com/go/v4/auth"
)

// TokenValidator verifies a bearer token and returns the Firebase UID it
// belongs to.
type TokenValidator interface {
	ValidateToken(ctx context.Context, tokenString string) (string, error)
}

// FirebaseTokenValidator validates Firebase ID tokens against the project's
// Auth service.
type FirebaseTokenValidator struct {
	authClient *auth.Client
}

// NewFirebaseTokenValidator creates a validator over an existing Auth client.
func NewFirebaseTokenValidator(authClient *auth.Client) *FirebaseTokenValidator {
	return &FirebaseTokenValidator{
		authClient: authClient,
	}
}

// ValidateToken verifies the ID token and returns the Firebase UID, which is
// also the user's Firestore document ID.
func (f *FirebaseTokenValidator) ValidateToken(ctx context.Context, tokenString string) (string, error) {
	token, err := f.authClient.VerifyIDToken(ctx, tokenString)
	if err != nil {
		return "", err
	}

	return token.UID, nil
}
