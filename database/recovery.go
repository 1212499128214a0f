package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tonicpow/wallet-recovery-go/delaynotify"
)

// recoveryRow wraps a WalletRecovery with the composite sort key used for
// chronological lookups
type recoveryRow struct {
	delaynotify.WalletRecovery `bson:",inline"`
	RecoveryTypeTime           string `bson:"recoveryTypeTime"`
}

func recoveryTypeTime(r *delaynotify.WalletRecovery) string {
	return string(r.RecoveryType) + "#" + r.CreatedAt.UTC().Format(time.RFC3339Nano)
}

// PendingRecovery returns the account's pending recovery, or nil when none
// is active
func (c *Connection) PendingRecovery(ctx context.Context, accountID string) (*delaynotify.WalletRecovery, error) {
	collection := c.db().Collection(walletRecoveryCollection)
	filter := bson.M{"accountId": accountID, "recoveryStatus": delaynotify.StatusPending}

	row := recoveryRow{}
	if err := collection.FindOne(ctx, filter).Decode(&row); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	recovery := row.WalletRecovery
	return &recovery, nil
}

// InsertRecovery persists a new pending recovery. The partial unique index on
// pending rows makes this a conditional write: of two concurrent creators
// exactly one insert lands, the other observes ErrRecoveryAlreadyExists.
func (c *Connection) InsertRecovery(ctx context.Context, r *delaynotify.WalletRecovery) error {
	collection := c.db().Collection(walletRecoveryCollection)
	_, err := collection.InsertOne(ctx, recoveryRow{
		WalletRecovery:   *r,
		RecoveryTypeTime: recoveryTypeTime(r),
	})
	if mongo.IsDuplicateKeyError(err) {
		return delaynotify.ErrRecoveryAlreadyExists
	}
	return err
}

// SetDelayEndTime overwrites the pending recovery's delay end
func (c *Connection) SetDelayEndTime(ctx context.Context, accountID string, delayEndTime time.Time) error {
	collection := c.db().Collection(walletRecoveryCollection)
	filter := bson.M{"accountId": accountID, "recoveryStatus": delaynotify.StatusPending}
	update := bson.M{"$set": bson.M{
		"requirements.delayEndTime": delayEndTime.UTC(),
		"updatedAt":                 time.Now().UTC(),
	}}

	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return delaynotify.ErrNoRecoveryExists
	}
	return nil
}

// RecoveryHistory returns the account's recovery attempts in reverse
// chronological order using the composite sort key
func (c *Connection) RecoveryHistory(ctx context.Context, accountID string, limit, skip int64) ([]*delaynotify.WalletRecovery, error) {
	collection := c.db().Collection(walletRecoveryCollection)
	filter := bson.M{"accountId": accountID}
	opts := options.Find().
		SetSort(bson.D{{Key: "recoveryTypeTime", Value: -1}}).
		SetLimit(limit).
		SetSkip(skip)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	history := []*delaynotify.WalletRecovery{}
	for cursor.Next(ctx) {
		row := recoveryRow{}
		if err = cursor.Decode(&row); err != nil {
			return nil, err
		}
		recovery := row.WalletRecovery
		history = append(history, &recovery)
	}
	return history, cursor.Err()
}

// TerminateRecovery conditionally moves the pending recovery to a terminal
// status. The matched-count check gives cancel/complete the same
// one-winner semantics as creation.
func (c *Connection) TerminateRecovery(ctx context.Context, accountID string, status delaynotify.RecoveryStatus) error {
	collection := c.db().Collection(walletRecoveryCollection)
	filter := bson.M{"accountId": accountID, "recoveryStatus": delaynotify.StatusPending}
	update := bson.M{"$set": bson.M{
		"recoveryStatus": status,
		"updatedAt":      time.Now().UTC(),
	}}

	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return delaynotify.ErrNoRecoveryExists
	}
	return nil
}
