package database

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tonicpow/wallet-recovery-go/comms"
	"github.com/tonicpow/wallet-recovery-go/notification"
)

// Verification loads the in-flight verification for an account and scope
func (c *Connection) Verification(ctx context.Context, accountID string, scope comms.Scope) (*comms.Verification, error) {
	collection := c.db().Collection(verificationsCollection)
	filter := bson.M{"accountId": accountID, "scope": scope}

	v := comms.Verification{}
	if err := collection.FindOne(ctx, filter).Decode(&v); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, comms.ErrCodeMismatch
		}
		return nil, err
	}
	return &v, nil
}

// SaveVerification upserts the verification for its account and scope; a new
// code replaces any earlier one for the same scope
func (c *Connection) SaveVerification(ctx context.Context, v *comms.Verification) error {
	collection := c.db().Collection(verificationsCollection)
	filter := bson.M{"accountId": v.AccountID, "scope": v.Scope}
	opts := options.Replace().SetUpsert(true)

	_, err := collection.ReplaceOne(ctx, filter, v, opts)
	return err
}

// EnqueueNotification records an outbound notification for delivery
func (c *Connection) EnqueueNotification(ctx context.Context, n *notification.Notification) error {
	collection := c.db().Collection(notificationsCollection)
	_, err := collection.InsertOne(ctx, n)
	return err
}
