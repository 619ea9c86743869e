// Command backfill applies default profile fields to every user document that
// is missing them. One-shot migration; safe to re-run.
package main

import (
	"context"
	"log"

	"cloud.google.com/go/firestore"
	"github.com/connectapp/connect-backend/internal/config"
	"github.com/connectapp/connect-backend/internal/firebase"
	"google.golang.org/api/iterator"
)

// Firestore caps a write batch at 500 operations.
const batchLimit = 400

var defaultFields = map[string]interface{}{
	"bio":            "No bio available yet.",
	"name":           "",
	"lastName":       "",
	"profilePicture": "",
	"userName":       "",
	"postsCount":     int64(0),
	"followers":      []interface{}{},
	"following":      []interface{}{},
}

func main() {
	config.LoadConfig()

	ctx := context.Background()
	clients, err := firebase.NewClients(ctx, config.AppConfig.FirebaseProjectID, config.AppConfig.FirebaseCredJSON)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}
	defer clients.Close()

	updated, err := backfillUsers(ctx, clients.Firestore)
	if err != nil {
		log.Fatalf("Backfill failed: %v", err)
	}

	log.Printf("Backfill complete: %d users updated", updated)
}

func backfillUsers(ctx context.Context, fs *firestore.Client) (int, error) {
	iter := fs.Collection("users").Documents(ctx)
	defer iter.Stop()

	batch := fs.Batch()
	pending := 0
	updated := 0

	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return updated, err
		}

		updates := missingDefaults(doc.Data())
		if len(updates) == 0 {
			continue
		}

		batch.Set(doc.Ref, updates, firestore.MergeAll)
		pending++
		updated++

		if pending >= batchLimit {
			if _, err := batch.Commit(ctx); err != nil {
				return updated, err
			}
			batch = fs.Batch()
			pending = 0
		}
	}

	if pending > 0 {
		if _, err := batch.Commit(ctx); err != nil {
			return updated, err
		}
	}

	return updated, nil
}

func missingDefaults(data map[string]interface{}) map[string]interface{} {
	updates := make(map[string]interface{})
	for field, value := range defaultFields {
		if _, ok := data[field]; !ok {
			updates[field] = value
		}
	}
	return updates
}
