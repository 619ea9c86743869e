package notify

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/store"
)

type mockUserSource struct {
	users    map[string]*store.User
	err      error
	getCalls []string
}

func (m *mockUserSource) GetUser(ctx context.Context, uid string) (*store.User, error) {
	m.getCalls = append(m.getCalls, uid)
	if m.err != nil {
		return nil, m.err
	}
	return m.users[uid], nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{})
}

func TestResolveTokens(t *testing.T) {
	ctx := context.Background()

	t.Run("empty user ID skips storage entirely", func(t *testing.T) {
		users := &mockUserSource{}
		resolver := NewTokenResolver(users, testLogger())

		tokens, err := resolver.ResolveTokens(ctx, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tokens) != 0 {
			t.Errorf("expected no tokens, got %v", tokens)
		}
		if len(users.getCalls) != 0 {
			t.Errorf("expected no storage reads, got %d", len(users.getCalls))
		}
	})

	t.Run("absent user yields empty set without error", func(t *testing.T) {
		users := &mockUserSource{users: map[string]*store.User{}}
		resolver := NewTokenResolver(users, testLogger())

		tokens, err := resolver.ResolveTokens(ctx, "ghost")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(tokens) != 0 {
			t.Errorf("expected no tokens, got %v", tokens)
		}
	})

	t.Run("returns the user's token set", func(t *testing.T) {
		users := &mockUserSource{users: map[string]*store.User{
			"u1": {UID: "u1", Tokens: []string{"tokA", "tokB"}},
		}}
		resolver := NewTokenResolver(users, testLogger())

		tokens, err := resolver.ResolveTokens(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(tokens, []string{"tokA", "tokB"}) {
			t.Errorf("unexpected tokens %v", tokens)
		}
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		wantErr := errors.New("firestore unavailable")
		users := &mockUserSource{err: wantErr}
		resolver := NewTokenResolver(users, testLogger())

		_, err := resolver.ResolveTokens(ctx, "u1")
		if !errors.Is(err, wantErr) {
			t.Errorf("expected wrapped storage error, got %v", err)
		}
	})

	t.Run("resolution is idempotent", func(t *testing.T) {
		users := &mockUserSource{users: map[string]*store.User{
			"u1": {UID: "u1", Tokens: []string{"tokA", "tokB"}},
		}}
		resolver := NewTokenResolver(users, testLogger())

		first, err := resolver.ResolveTokens(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		second, err := resolver.ResolveTokens(ctx, "u1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("expected identical sets, got %v then %v", first, second)
		}
	})
}
