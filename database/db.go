// Package database is the mongo-backed repository for accounts, recovery
// relationships, social challenges and wallet recoveries.
package database

import (
	"context"
	"fmt"
	"os"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const databaseName = "walletRecovery"

// Collection names. Relationships and challenges share one collection with a
// row-type discriminator, mirroring the single-table layout of the store.
const (
	socialRecoveryCollection = "socialRecovery"
	walletRecoveryCollection = "walletRecovery"
	accountsCollection       = "accounts"
	verificationsCollection  = "verifications"
	notificationsCollection  = "notifications"
)

// Connection is a mongo client
type Connection struct {
	*mongo.Client
}

// Connect establishes a connection to the mongo db
func Connect(ctx context.Context) (*Connection, error) {
	mongoURL := os.Getenv("RECOVERY_MONGO_URL")
	if len(mongoURL) == 0 {
		return nil, fmt.Errorf("set RECOVERY_MONGO_URL before running")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURL))
	if err != nil {
		return nil, err
	}

	conn := &Connection{client}
	if err = conn.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Connection) db() *mongo.Database {
	return c.Database(databaseName)
}

// Db exposes the underlying database for collaborators that manage their own
// collections (user pool)
func (c *Connection) Db() *mongo.Database {
	return c.db()
}

// ensureIndexes creates the secondary indexes the recovery core queries by:
// invitation code, customer account, trusted contact + customer composite,
// and the single-pending-recovery guard.
func (c *Connection) ensureIndexes(ctx context.Context) error {
	social := c.db().Collection(socialRecoveryCollection)
	_, err := social.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "code", Value: 1}}},
		{Keys: bson.D{{Key: "customerAccountId", Value: 1}}},
		{Keys: bson.D{
			{Key: "trustedContactAccountId", Value: 1},
			{Key: "customerAccountId", Value: 1},
		}},
	})
	if err != nil {
		return err
	}

	recoveries := c.db().Collection(walletRecoveryCollection)
	_, err = recoveries.Indexes().CreateMany(ctx, []mongo.IndexModel{
		// At most one pending recovery per account
		{
			Keys: bson.D{{Key: "accountId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"recoveryStatus": "pending"}),
		},
		// Chronological lookup by composite sort key
		{Keys: bson.D{
			{Key: "accountId", Value: 1},
			{Key: "recoveryTypeTime", Value: 1},
		}},
	})
	return err
}
