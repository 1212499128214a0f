// Package userpool fronts the identity pools that issue wallet and recovery
// access tokens. Auth users are keyed per account and domain; both operations
// are idempotent so retried rotation events are safe.
package userpool

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Service is the identity subsystem contract consumed by key rotation
type Service interface {

	// RotateAccountAuthKeys repoints the account's auth users at the new
	// app, hardware and (optional) recovery pubkeys
	RotateAccountAuthKeys(ctx context.Context, accountID, appPubkey, hardwarePubkey, recoveryPubkey string) error

	// CreateRecoveryUserIfNecessary provisions a recovery-domain auth user
	// for the account when one does not already exist
	CreateRecoveryUserIfNecessary(ctx context.Context, accountID, recoveryPubkey string) error
}

const collectionName = "authUsers"

// Pool is a mongo-backed Service implementation
type Pool struct {
	db *mongo.Database
}

// NewPool returns a user pool over the given database
func NewPool(db *mongo.Database) *Pool {
	return &Pool{db: db}
}

// RotateAccountAuthKeys upserts the wallet auth user and, when a recovery
// pubkey is present, the recovery auth user
func (p *Pool) RotateAccountAuthKeys(ctx context.Context, accountID, appPubkey, hardwarePubkey, recoveryPubkey string) error {
	collection := p.db.Collection(collectionName)
	opts := options.Update().SetUpsert(true)

	filter := bson.M{"accountId": accountID, "domain": "wallet"}
	update := bson.M{"$set": bson.M{
		"appAuthPubkey":      appPubkey,
		"hardwareAuthPubkey": hardwarePubkey,
		"updatedAt":          time.Now().UTC(),
	}}
	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return errors.Wrap(err, "rotating wallet auth user")
	}

	if len(recoveryPubkey) == 0 {
		return nil
	}
	filter = bson.M{"accountId": accountID, "domain": "recovery"}
	update = bson.M{"$set": bson.M{
		"recoveryAuthPubkey": recoveryPubkey,
		"updatedAt":          time.Now().UTC(),
	}}
	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return errors.Wrap(err, "rotating recovery auth user")
	}
	return nil
}

// CreateRecoveryUserIfNecessary inserts the recovery auth user only when the
// account has none
func (p *Pool) CreateRecoveryUserIfNecessary(ctx context.Context, accountID, recoveryPubkey string) error {
	collection := p.db.Collection(collectionName)
	filter := bson.M{"accountId": accountID, "domain": "recovery"}
	update := bson.M{"$setOnInsert": bson.M{
		"accountId":          accountID,
		"domain":             "recovery",
		"recoveryAuthPubkey": recoveryPubkey,
		"createdAt":          time.Now().UTC(),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return errors.Wrap(err, "creating recovery auth user")
	}
	return nil
}
