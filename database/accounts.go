package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tonicpow/wallet-recovery-go/account"
)

// FetchAccount loads an account by id
func (c *Connection) FetchAccount(ctx context.Context, accountID string) (*account.Account, error) {
	collection := c.db().Collection(accountsCollection)

	acct := account.Account{}
	if err := collection.FindOne(ctx, bson.M{"_id": accountID}).Decode(&acct); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, account.ErrAccountNotFound
		}
		return nil, err
	}
	return &acct, nil
}

// SaveAccount upserts an account record. Account onboarding lives outside
// this service; this exists for wiring and test seeding.
func (c *Connection) SaveAccount(ctx context.Context, acct *account.Account) error {
	collection := c.db().Collection(accountsCollection)
	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"_id": acct.ID}, acct, opts)
	return err
}

// CreateAndRotateAuthKeys activates a new keyset for the account
func (c *Connection) CreateAndRotateAuthKeys(ctx context.Context, accountID string, keys account.AuthKeys) error {
	collection := c.db().Collection(accountsCollection)
	update := bson.M{"$set": bson.M{
		"authKeys":  keys,
		"updatedAt": time.Now().UTC(),
	}}

	res, err := collection.UpdateOne(ctx, bson.M{"_id": accountID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

// ClearPushTouchpoints drops push touchpoints so devices holding the old keys
// stop receiving account notifications
func (c *Connection) ClearPushTouchpoints(ctx context.Context, accountID string) error {
	collection := c.db().Collection(accountsCollection)
	update := bson.M{"$pull": bson.M{
		"touchpoints": bson.M{"type": account.TouchpointPush},
	}}

	_, err := collection.UpdateOne(ctx, bson.M{"_id": accountID}, update)
	return err
}
