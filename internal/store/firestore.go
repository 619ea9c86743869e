package store

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	usersCollection         = "users"
	consultationsCollection = "consultations"
	chatsCollection         = "chats"
)

// Client is the Firestore-backed data access layer. All reads return the
// canonical shapes from models.go; document absence is reported as a nil
// record, never as an error.
type Client struct {
	fs *firestore.Client
}

// New creates a new store client over the given Firestore connection.
func New(fs *firestore.Client) *Client {
	return &Client{fs: fs}
}

// GetUser fetches a user by ID. Returns (nil, nil) when the document does not
// exist; deleted or never-registered users are an expected case.
func (c *Client) GetUser(ctx context.Context, uid string) (*User, error) {
	if uid == "" {
		return nil, status.Error(codes.InvalidArgument, "uid must be non-empty")
	}

	doc, err := c.fs.Collection(usersCollection).Doc(uid).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, status.Errorf(codes.Internal, "failed to fetch user %s: %v", uid, err)
	}

	return userFromDoc(doc.Ref.ID, doc.Data()), nil
}

// GetConversation fetches a conversation by ID. Returns (nil, nil) when the
// document does not exist.
func (c *Client) GetConversation(ctx context.Context, chatID string) (*Conversation, error) {
	if chatID == "" {
		return nil, status.Error(codes.InvalidArgument, "chatID must be non-empty")
	}

	doc, err := c.fs.Collection(chatsCollection).Doc(chatID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, status.Errorf(codes.Internal, "failed to fetch conversation %s: %v", chatID, err)
	}

	return conversationFromDoc(doc.Ref.ID, doc.Data()), nil
}

// ConsultationsStartingBetween returns consultations whose start time falls
// in [from, to], inclusive on both bounds. A consultation scheduled exactly
// at either bound is included.
func (c *Client) ConsultationsStartingBetween(ctx context.Context, from, to time.Time) ([]Consultation, error) {
	iter := c.fs.Collection(consultationsCollection).
		Where("scheduledAt", ">=", from).
		Where("scheduledAt", "<=", to).
		Documents(ctx)
	defer iter.Stop()

	var consultations []Consultation
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to query consultations: %v", err)
		}
		consultations = append(consultations, consultationFromDoc(doc.Ref.ID, doc.Data()))
	}

	return consultations, nil
}

// MarkConsultationPaid records a successful payment on a consultation.
func (c *Client) MarkConsultationPaid(ctx context.Context, consultationID, paymentIntentID string) error {
	if consultationID == "" {
		return status.Error(codes.InvalidArgument, "consultationID must be non-empty")
	}

	_, err := c.fs.Collection(consultationsCollection).Doc(consultationID).Set(ctx, map[string]interface{}{
		"status":          "paid",
		"paidAt":          firestore.ServerTimestamp,
		"paymentIntentId": paymentIntentID,
	}, firestore.MergeAll)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to mark consultation %s paid: %v", consultationID, err)
	}

	return nil
}

// SetUserStripeCustomerID persists the Stripe customer ID on the user document.
func (c *Client) SetUserStripeCustomerID(ctx context.Context, uid, customerID string) error {
	return c.mergeUserField(ctx, uid, "stripeCustomerId", customerID)
}

// SetUserStripeAccountID persists the Stripe Express account ID on the user document.
func (c *Client) SetUserStripeAccountID(ctx context.Context, uid, accountID string) error {
	return c.mergeUserField(ctx, uid, "stripeAccountId", accountID)
}

func (c *Client) mergeUserField(ctx context.Context, uid, field, value string) error {
	if uid == "" {
		return status.Error(codes.InvalidArgument, "uid must be non-empty")
	}

	_, err := c.fs.Collection(usersCollection).Doc(uid).Set(ctx, map[string]interface{}{
		field: value,
	}, firestore.MergeAll)
	if err != nil {
		return status.Errorf(codes.Internal, "failed to update user %s: %v", uid, err)
	}

	return nil
}
