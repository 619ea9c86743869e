package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// Clients bundles the Firebase services the server depends on. It is built
// exactly once at startup and handed down read-only; handlers never
// re-initialize Firebase.
type Clients struct {
	Firestore *firestore.Client
	Messaging *messaging.Client
	Auth      *auth.Client
}

// NewClients initializes the Firebase app and derives the Firestore,
// Cloud Messaging, and Auth clients from it. When credJSON is empty, the app
// falls back to application default credentials.
func NewClients(ctx context.Context, projectID, credJSON string) (*Clients, error) {
	conf := &firebase.Config{
		ProjectID: projectID,
	}

	var opts []option.ClientOption
	if credJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}

	firestoreClient, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firestore client: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	authClient, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get Firebase Auth client: %w", err)
	}

	return &Clients{
		Firestore: firestoreClient,
		Messaging: messagingClient,
		Auth:      authClient,
	}, nil
}

// Close releases the Firestore connection. The messaging and auth clients
// hold no connections of their own.
func (c *Clients) Close() error {
	if c.Firestore != nil {
		return c.Firestore.Close()
	}
	return nil
}
