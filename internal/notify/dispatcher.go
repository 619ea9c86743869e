package notify

import (
	"context"
	"fmt"
	"log/slog"

	"firebase.google.com/go/v4/messaging"
	"github.com/connectapp/connect-backend/internal/logger"
)

// TokenSource resolves recipient IDs to device tokens.
type TokenSource interface {
	ResolveTokens(ctx context.Context, uid string) ([]string, error)
}

// MulticastSender is the slice of the FCM client the dispatcher needs.
// *messaging.Client satisfies it.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Dispatcher fans one logical notification out to a set of recipients with a
// single multicast delivery call.
type Dispatcher struct {
	resolver TokenSource
	sender   MulticastSender
	logger   *logger.Logger
	enabled  bool
}

// NewDispatcher creates a new fan-out dispatcher. With enabled false every
// dispatch is a logged no-op, which keeps staging environments quiet.
func NewDispatcher(resolver TokenSource, sender MulticastSender, logger *logger.Logger, enabled bool) *Dispatcher {
	return &Dispatcher{
		resolver: resolver,
		sender:   sender,
		logger:   logger.WithComponent("dispatcher"),
		enabled:  enabled,
	}
}

// Dispatch resolves tokens for every recipient, unions and deduplicates them,
// and issues one multicast delivery. Recipients with no resolvable tokens are
// skipped silently; a resolver error fails the whole dispatch.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, payload Payload) error {
	var tokens []string
	for _, uid := range recipients {
		resolved, err := d.resolver.ResolveTokens(ctx, uid)
		if err != nil {
			return err
		}
		tokens = append(tokens, resolved...)
	}

	return d.DispatchToTokens(ctx, tokens, payload)
}

// DispatchToTokens deduplicates the token set and issues exactly one
// multicast delivery call. An empty set returns immediately as success.
// Per-token rejections are FCM's concern and are not retried here; only a
// failed batch submission is an error.
func (d *Dispatcher) DispatchToTokens(ctx context.Context, tokens []string, payload Payload) error {
	log := d.logger.WithContext(ctx)

	deduped := dedupe(tokens)
	if len(deduped) == 0 {
		dispatchesTotal.WithLabelValues(string(payloadType(payload)), outcomeSkipped).Inc()
		log.Debug("no deliverable tokens, skipping dispatch",
			slog.String("title", payload.Title))
		return nil
	}

	if !d.enabled {
		log.Debug("push notifications disabled, skipping",
			slog.String("title", payload.Title),
			slog.Int("token_count", len(deduped)))
		return nil
	}

	message := &messaging.MulticastMessage{
		Tokens: deduped,
		Notification: &messaging.Notification{
			Title: payload.Title,
			Body:  payload.Body,
		},
		Data: payload.Data,
	}
	if payload.Priority != "" {
		message.Android = &messaging.AndroidConfig{
			Priority: payload.Priority,
		}
	}
	if payload.Sound != "" || payload.Category != "" {
		message.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound:    payload.Sound,
					Category: payload.Category,
				},
			},
		}
	}

	response, err := d.sender.SendEachForMulticast(ctx, message)
	if err != nil {
		dispatchesTotal.WithLabelValues(string(payloadType(payload)), outcomeError).Inc()
		return fmt.Errorf("multicast send failed: %w", err)
	}

	dispatchesTotal.WithLabelValues(string(payloadType(payload)), outcomeSent).Inc()
	tokensDeliveredTotal.Add(float64(response.SuccessCount))
	tokensFailedTotal.Add(float64(response.FailureCount))

	log.Info("notification dispatched",
		slog.String("title", payload.Title),
		slog.Int("token_count", len(deduped)),
		slog.Int("success_count", response.SuccessCount),
		slog.Int("failure_count", response.FailureCount))

	return nil
}

func payloadType(payload Payload) NotificationType {
	if payload.Data != nil {
		if t, ok := payload.Data["type"]; ok {
			return NotificationType(t)
		}
	}
	return "unknown"
}

func dedupe(tokens []string) []string {
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
