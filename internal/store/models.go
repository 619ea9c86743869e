package store

import "time"

// User is the canonical shape of a user document. Legacy and optional fields
// are folded in by userFromDoc; nothing outside this package branches on the
// raw document shape.
type User struct {
	UID                    string
	Email                  string
	Name                   string
	FullName               string
	Tokens                 []string
	StripeCustomerID       string
	StripeAccountID        string
	DefaultPaymentMethodID string
}

// DisplayName resolves the name shown in notification titles.
// Fallback chain: full name, short name, generic label.
func (u *User) DisplayName() string {
	if u == nil {
		return "Someone"
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.Name != "" {
		return u.Name
	}
	return "Someone"
}

// Consultation is a scheduled event with its participant set.
type Consultation struct {
	ID           string
	ScheduledAt  time.Time
	Participants []string
}

// Conversation holds the participant set of a chat.
type Conversation struct {
	ID           string
	Participants []string
}

// userFromDoc normalizes a raw user document. The token set merges the
// current multi-token field with the legacy single-token field, drops empty
// entries, and deduplicates.
func userFromDoc(uid string, data map[string]interface{}) *User {
	u := &User{
		UID:                    uid,
		Email:                  stringField(data, "email"),
		Name:                   stringField(data, "name"),
		FullName:               stringField(data, "fullName"),
		StripeCustomerID:       stringField(data, "stripeCustomerId"),
		StripeAccountID:        stringField(data, "stripeAccountId"),
		DefaultPaymentMethodID: stringField(data, "defaultPaymentMethodId"),
	}

	var raw []string
	if list, ok := data["fcmTokens"].([]interface{}); ok {
		for _, entry := range list {
			if token, ok := entry.(string); ok {
				raw = append(raw, token)
			}
		}
	}
	if legacy := stringField(data, "fcmToken"); legacy != "" {
		raw = append(raw, legacy)
	}

	u.Tokens = dedupeTokens(raw)
	return u
}

// consultationFromDoc normalizes a raw consultation document.
// A missing or malformed participants field yields an empty participant set.
func consultationFromDoc(id string, data map[string]interface{}) Consultation {
	c := Consultation{ID: id}

	if at, ok := data["scheduledAt"].(time.Time); ok {
		c.ScheduledAt = at
	}
	c.Participants = stringListField(data, "participants")

	return c
}

// conversationFromDoc normalizes a raw conversation document. The participant
// set lives in either the "users" or the "participants" field depending on
// the age of the document.
func conversationFromDoc(id string, data map[string]interface{}) *Conversation {
	participants := stringListField(data, "users")
	if len(participants) == 0 {
		participants = stringListField(data, "participants")
	}

	return &Conversation{
		ID:           id,
		Participants: participants,
	}
}

func stringField(data map[string]interface{}, key string) string {
	if value, ok := data[key].(string); ok {
		return value
	}
	return ""
}

func stringListField(data map[string]interface{}, key string) []string {
	list, ok := data[key].([]interface{})
	if !ok {
		return nil
	}

	var values []string
	for _, entry := range list {
		if value, ok := entry.(string); ok && value != "" {
			values = append(values, value)
		}
	}
	return values
}

func dedupeTokens(tokens []string) []string {
	seen := make(map[string]struct{}, len(tokens))
	var deduped []string
	for _, token := range tokens {
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		deduped = append(deduped, token)
	}
	return deduped
}
