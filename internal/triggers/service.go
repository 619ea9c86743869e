package triggers

import (
	"context"
	"log/slog"
	"strings"

	"github.com/connectapp/connect-backend/internal/logger"
	"github.com/connectapp/connect-backend/internal/notify"
	"github.com/connectapp/connect-backend/internal/store"
)

// chatIDSeparator joins the two participant IDs in identifier-derived
// conversation IDs ("a_b", lexicographically ordered by the client).
const chatIDSeparator = "_"

// CallInvite is a newly created call invite record.
type CallInvite struct {
	ID       string
	FromUID  string
	FromName string
	ToUID    string
	Channel  string
	IsVideo  bool
}

// ChatMessage is a newly created chat message record.
type ChatMessage struct {
	ID       string
	ChatID   string
	AuthorID string
	Text     string
}

// UserSource is the slice of the store the trigger service needs for users.
type UserSource interface {
	GetUser(ctx context.Context, uid string) (*store.User, error)
}

// ConversationSource resolves a conversation and its participant set.
type ConversationSource interface {
	GetConversation(ctx context.Context, chatID string) (*store.Conversation, error)
}

// Dispatcher sends one notification to a recipient set.
type Dispatcher interface {
	Dispatch(ctx context.Context, recipients []string, payload notify.Payload) error
}

// Config carries the per-deployment notification tuning.
type Config struct {
	// ChatBodyMaxChars caps the chat preview body, in runes.
	ChatBodyMaxChars int
	// Sound is the delivery sound for both notifiers.
	Sound string
	// CallCategory is the APNs category enabling the incoming-call UI.
	CallCategory string
}

// Service turns newly created records into notifications. Each handler is
// stateless: validate, compute the recipient set, dispatch. A record with
// missing required fields is dropped as malformed, not treated as an error.
type Service struct {
	users         UserSource
	conversations ConversationSource
	dispatcher    Dispatcher
	config        Config
	logger        *logger.Logger
}

// NewService creates a new trigger service.
func NewService(users UserSource, conversations ConversationSource, dispatcher Dispatcher, config Config, logger *logger.Logger) *Service {
	return &Service{
		users:         users,
		conversations: conversations,
		dispatcher:    dispatcher,
		config:        config,
		logger:        logger.WithComponent("triggers"),
	}
}

// HandleCallInvite notifies the invited user of an incoming call. Invites
// without a target user or channel are dropped silently.
func (s *Service) HandleCallInvite(ctx context.Context, invite CallInvite) error {
	log := s.logger.WithContext(ctx)

	if invite.ToUID == "" || invite.Channel == "" {
		log.Warn("dropping malformed call invite",
			slog.String("invite_id", invite.ID),
			slog.Bool("has_target", invite.ToUID != ""),
			slog.Bool("has_channel", invite.Channel != ""))
		return nil
	}

	title := "Incoming Audio Call"
	if invite.IsVideo {
		title = "Incoming Video Call"
	}

	fromName := invite.FromName
	if fromName == "" {
		fromName = "Someone"
	}

	payload := notify.Payload{
		Title: title,
		Body:  "From " + fromName,
		Data: map[string]string{
			"type":    string(notify.TypeCallInvite),
			"channel": invite.Channel,
		},
		Priority: "high",
		Sound:    s.config.Sound,
		Category: s.config.CallCategory,
	}

	return s.dispatcher.Dispatch(ctx, []string{invite.ToUID}, payload)
}

// HandleChatMessage notifies the other participants of a conversation about a
// new message. The participant set comes from the conversation document when
// it carries one, otherwise from splitting the conversation ID into exactly
// two parts; anything else is dropped as malformed.
func (s *Service) HandleChatMessage(ctx context.Context, message ChatMessage) error {
	log := s.logger.WithContext(ctx)

	if message.ChatID == "" || message.AuthorID == "" {
		log.Warn("dropping malformed chat message",
			slog.String("message_id", message.ID),
			slog.Bool("has_chat", message.ChatID != ""),
			slog.Bool("has_author", message.AuthorID != ""))
		return nil
	}

	participants, err := s.resolveParticipants(ctx, message.ChatID)
	if err != nil {
		return err
	}
	if participants == nil {
		log.Warn("dropping chat message with unresolvable participants",
			slog.String("chat_id", message.ChatID))
		return nil
	}

	var recipients []string
	for _, uid := range participants {
		if uid != message.AuthorID {
			recipients = append(recipients, uid)
		}
	}
	if len(recipients) == 0 {
		return nil
	}

	author, err := s.users.GetUser(ctx, message.AuthorID)
	if err != nil {
		return err
	}

	payload := notify.Payload{
		Title: author.DisplayName(),
		Body:  previewBody(message.Text, s.config.ChatBodyMaxChars),
		Data: map[string]string{
			"type":   string(notify.TypeChatMessage),
			"chatId": message.ChatID,
		},
		Sound: s.config.Sound,
	}

	return s.dispatcher.Dispatch(ctx, recipients, payload)
}

// resolveParticipants returns the conversation's participant set, or nil when
// it cannot be determined. The conversation document wins; the ID-derived
// fallback requires the ID to split into exactly two parts.
func (s *Service) resolveParticipants(ctx context.Context, chatID string) ([]string, error) {
	conversation, err := s.conversations.GetConversation(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if conversation != nil && len(conversation.Participants) > 0 {
		return conversation.Participants, nil
	}

	parts := strings.Split(chatID, chatIDSeparator)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, nil
	}
	return parts, nil
}

// previewBody truncates the message text to the rune budget, or substitutes a
// generic placeholder when the message has no text.
func previewBody(text string, maxChars int) string {
	if text == "" {
		return "Sent you a message"
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return text
	}
	return string(runes[:maxChars])
}
