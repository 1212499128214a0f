package database

import (
	"context"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tonicpow/wallet-recovery-go/challenge"
	"github.com/tonicpow/wallet-recovery-go/relationship"
)

// Row type discriminators within the socialRecovery collection
const (
	rowTypeRelationship = "relationship"
	rowTypeChallenge    = "challenge"
)

// socialRecoveryRow flattens the relationship phases and the challenge shape
// into one persistable document; rowType and phase discriminate on the way out
type socialRecoveryRow struct {
	ID      string `bson:"_id"`
	RowType string `bson:"rowType"`

	// relationship fields
	Phase                           string    `bson:"phase,omitempty"`
	CustomerAccountID               string    `bson:"customerAccountId,omitempty"`
	TrustedContactAccountID         string    `bson:"trustedContactAccountId,omitempty"`
	TrustedContactAlias             string    `bson:"trustedContactAlias,omitempty"`
	CustomerAlias                   string    `bson:"customerAlias,omitempty"`
	Code                            string    `bson:"code,omitempty"`
	ExpiresAt                       time.Time `bson:"expiresAt,omitempty"`
	CustomerEnrollmentPubkey        string    `bson:"customerEnrollmentPubkey,omitempty"`
	TrustedContactIdentityPubkey    string    `bson:"trustedContactIdentityPubkey,omitempty"`
	TrustedContactEnrollmentPubkey  string    `bson:"trustedContactEnrollmentPubkey,omitempty"`
	TrustedContactIdentityPubkeyMac string    `bson:"trustedContactIdentityPubkeyMac,omitempty"`
	EnrollmentKeyConfirmation       string    `bson:"enrollmentKeyConfirmation,omitempty"`
	EndorsementKeyCertificate       string    `bson:"endorsementKeyCertificate,omitempty"`

	// challenge fields
	CustomerIdentityPubkey string                                              `bson:"customerIdentityPubkey,omitempty"`
	Requests               map[string]challenge.TrustedContactChallengeRequest `bson:"trustedContactChallengeRequests,omitempty"`
	Responses              []challenge.Response                                `bson:"responses,omitempty"`
	CreatedAt              time.Time                                           `bson:"createdAt,omitempty"`
}

func rowFromRelationship(r relationship.RecoveryRelationship) socialRecoveryRow {
	common := r.Common()
	row := socialRecoveryRow{
		ID:                      common.ID,
		RowType:                 rowTypeRelationship,
		Phase:                   relationship.Phase(r),
		CustomerAccountID:       common.CustomerAccountID,
		TrustedContactAccountID: common.TrustedContactAccountID,
		TrustedContactAlias:     common.TrustedContactAlias,
		CustomerAlias:           common.CustomerAlias,
	}
	switch rel := r.(type) {
	case *relationship.Invitation:
		row.Code = rel.Code
		row.ExpiresAt = rel.ExpiresAt
		row.CustomerEnrollmentPubkey = rel.CustomerEnrollmentPubkey
	case *relationship.Unendorsed:
		row.TrustedContactIdentityPubkey = rel.TrustedContactIdentityPubkey
		row.TrustedContactEnrollmentPubkey = rel.TrustedContactEnrollmentPubkey
		row.TrustedContactIdentityPubkeyMac = rel.TrustedContactIdentityPubkeyMac
		row.EnrollmentKeyConfirmation = rel.EnrollmentKeyConfirmation
	case *relationship.Endorsed:
		row.TrustedContactIdentityPubkey = rel.TrustedContactIdentityPubkey
		row.EndorsementKeyCertificate = rel.EndorsementKeyCertificate
	}
	return row
}

func (row socialRecoveryRow) toRelationship() (relationship.RecoveryRelationship, error) {
	common := relationship.CommonFields{
		ID:                      row.ID,
		CustomerAccountID:       row.CustomerAccountID,
		TrustedContactAccountID: row.TrustedContactAccountID,
		TrustedContactAlias:     row.TrustedContactAlias,
		CustomerAlias:           row.CustomerAlias,
	}
	switch row.Phase {
	case relationship.PhaseInvitation:
		return &relationship.Invitation{
			CommonFields:             common,
			Code:                     row.Code,
			ExpiresAt:                row.ExpiresAt,
			CustomerEnrollmentPubkey: row.CustomerEnrollmentPubkey,
		}, nil
	case relationship.PhaseUnendorsed:
		return &relationship.Unendorsed{
			CommonFields:                    common,
			TrustedContactIdentityPubkey:    row.TrustedContactIdentityPubkey,
			TrustedContactEnrollmentPubkey:  row.TrustedContactEnrollmentPubkey,
			TrustedContactIdentityPubkeyMac: row.TrustedContactIdentityPubkeyMac,
			EnrollmentKeyConfirmation:       row.EnrollmentKeyConfirmation,
		}, nil
	case relationship.PhaseEndorsed:
		return &relationship.Endorsed{
			CommonFields:                 common,
			TrustedContactIdentityPubkey: row.TrustedContactIdentityPubkey,
			EndorsementKeyCertificate:    row.EndorsementKeyCertificate,
		}, nil
	}
	return nil, relationship.ErrNotFound
}

func (row socialRecoveryRow) toChallenge() *challenge.SocialChallenge {
	responses := row.Responses
	if responses == nil {
		responses = []challenge.Response{}
	}
	return &challenge.SocialChallenge{
		ID:                     row.ID,
		CustomerAccountID:      row.CustomerAccountID,
		Code:                   row.Code,
		CustomerIdentityPubkey: row.CustomerIdentityPubkey,
		Requests:               row.Requests,
		Responses:              responses,
		CreatedAt:              row.CreatedAt,
	}
}

// Relationship loads a relationship row by primary key
func (c *Connection) Relationship(ctx context.Context, id string) (relationship.RecoveryRelationship, error) {
	collection := c.db().Collection(socialRecoveryCollection)
	filter := bson.M{"_id": id, "rowType": rowTypeRelationship}

	row := socialRecoveryRow{}
	if err := collection.FindOne(ctx, filter).Decode(&row); err != nil {
		if err == mongo.ErrNoDocuments {
			log.Printf("recovery relationship %s not found", id)
			return nil, relationship.ErrNotFound
		}
		return nil, err
	}
	return row.toRelationship()
}

// RelationshipForCode resolves an invitation code through the code index,
// defensively failing when a collision slipped past code generation. Expired
// invitations do not resolve, so their codes are free to recycle.
func (c *Connection) RelationshipForCode(ctx context.Context, code string) (relationship.RecoveryRelationship, error) {
	collection := c.db().Collection(socialRecoveryCollection)
	filter := bson.M{
		"rowType":   rowTypeRelationship,
		"phase":     relationship.PhaseInvitation,
		"code":      code,
		"expiresAt": bson.M{"$gt": time.Now().UTC()},
	}

	cur, err := collection.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []socialRecoveryRow
	for cur.Next(ctx) {
		row := socialRecoveryRow{}
		if err = cur.Decode(&row); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	if err = cur.Err(); err != nil {
		return nil, err
	}

	if len(rows) > 1 {
		return nil, relationship.ErrNotUnique
	}
	if len(rows) == 0 {
		return nil, relationship.ErrNotFound
	}
	return rows[0].toRelationship()
}

// RelationshipForAccountPair queries the composite trusted contact index
func (c *Connection) RelationshipForAccountPair(ctx context.Context, customerAccountID, trustedContactAccountID string) (relationship.RecoveryRelationship, error) {
	collection := c.db().Collection(socialRecoveryCollection)
	filter := bson.M{
		"rowType":                 rowTypeRelationship,
		"trustedContactAccountId": trustedContactAccountID,
		"customerAccountId":       customerAccountID,
	}

	row := socialRecoveryRow{}
	if err := collection.FindOne(ctx, filter).Decode(&row); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}
	return row.toRelationship()
}

// pageSize bounds each index scan page so a large contact list never arrives
// in one read
const pageSize = 100

// scanRelationships pages through every relationship matching the filter.
// Pages are fetched until exhaustion; results are approximately current.
func (c *Connection) scanRelationships(ctx context.Context, filter bson.M) ([]relationship.RecoveryRelationship, error) {
	collection := c.db().Collection(socialRecoveryCollection)

	var results []relationship.RecoveryRelationship
	var skip int64
	for {
		cur, err := collection.Find(ctx, filter, &options.FindOptions{
			Skip:  &skip,
			Limit: int64Ptr(pageSize),
			Sort:  bson.D{{Key: "_id", Value: 1}},
		})
		if err != nil {
			return nil, err
		}

		var page []socialRecoveryRow
		for cur.Next(ctx) {
			row := socialRecoveryRow{}
			if err = cur.Decode(&row); err != nil {
				cur.Close(ctx)
				return nil, err
			}
			page = append(page, row)
		}
		if err = cur.Err(); err != nil {
			cur.Close(ctx)
			return nil, err
		}
		cur.Close(ctx)

		for _, row := range page {
			r, err := row.toRelationship()
			if err != nil {
				return nil, err
			}
			results = append(results, r)
		}

		if len(page) < pageSize {
			return results, nil
		}
		skip += pageSize
	}
}

// RelationshipsForCustomer scans the customer index to exhaustion
func (c *Connection) RelationshipsForCustomer(ctx context.Context, accountID string) ([]relationship.RecoveryRelationship, error) {
	return c.scanRelationships(ctx, bson.M{
		"rowType":           rowTypeRelationship,
		"customerAccountId": accountID,
	})
}

// RelationshipsForTrustedContact scans the trusted contact index to exhaustion
func (c *Connection) RelationshipsForTrustedContact(ctx context.Context, accountID string) ([]relationship.RecoveryRelationship, error) {
	return c.scanRelationships(ctx, bson.M{
		"rowType":                 rowTypeRelationship,
		"trustedContactAccountId": accountID,
	})
}

// SaveRelationship inserts or conditionally replaces a relationship row. A
// non-empty expectedPhase makes the write a compare-and-set on the stored
// phase, so racing phase transitions resolve to one winner.
func (c *Connection) SaveRelationship(ctx context.Context, r relationship.RecoveryRelationship, expectedPhase string) error {
	collection := c.db().Collection(socialRecoveryCollection)
	row := rowFromRelationship(r)

	if len(expectedPhase) == 0 {
		_, err := collection.InsertOne(ctx, row)
		if mongo.IsDuplicateKeyError(err) {
			return relationship.ErrConflict
		}
		return err
	}

	filter := bson.M{"_id": row.ID, "rowType": rowTypeRelationship, "phase": expectedPhase}
	res, err := collection.ReplaceOne(ctx, filter, row)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return relationship.ErrConflict
	}
	return nil
}

// DeleteRelationship removes the edge permanently. Challenge history that
// referenced the relationship stays in place.
func (c *Connection) DeleteRelationship(ctx context.Context, id string) error {
	collection := c.db().Collection(socialRecoveryCollection)
	res, err := collection.DeleteOne(ctx, bson.M{"_id": id, "rowType": rowTypeRelationship})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return relationship.ErrNotFound
	}
	return nil
}

// Challenge loads a social challenge by primary key
func (c *Connection) Challenge(ctx context.Context, id string) (*challenge.SocialChallenge, error) {
	collection := c.db().Collection(socialRecoveryCollection)
	filter := bson.M{"_id": id, "rowType": rowTypeChallenge}

	row := socialRecoveryRow{}
	if err := collection.FindOne(ctx, filter).Decode(&row); err != nil {
		if err == mongo.ErrNoDocuments {
			log.Printf("social challenge %s not found", id)
			return nil, challenge.ErrNotFound
		}
		return nil, err
	}
	return row.toChallenge(), nil
}

// CurrentChallengeForCustomer returns the newest challenge for the customer;
// older challenges stay behind as superseded history
func (c *Connection) CurrentChallengeForCustomer(ctx context.Context, customerAccountID string) (*challenge.SocialChallenge, error) {
	collection := c.db().Collection(socialRecoveryCollection)
	filter := bson.M{"rowType": rowTypeChallenge, "customerAccountId": customerAccountID}
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})

	row := socialRecoveryRow{}
	if err := collection.FindOne(ctx, filter, opts).Decode(&row); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, challenge.ErrNotFound
		}
		return nil, err
	}
	return row.toChallenge(), nil
}

// SaveChallenge upserts the challenge row
func (c *Connection) SaveChallenge(ctx context.Context, ch *challenge.SocialChallenge) error {
	collection := c.db().Collection(socialRecoveryCollection)
	row := socialRecoveryRow{
		ID:                     ch.ID,
		RowType:                rowTypeChallenge,
		CustomerAccountID:      ch.CustomerAccountID,
		Code:                   ch.Code,
		CustomerIdentityPubkey: ch.CustomerIdentityPubkey,
		Requests:               ch.Requests,
		Responses:              ch.Responses,
		CreatedAt:              ch.CreatedAt,
	}

	opts := options.Replace().SetUpsert(true)
	_, err := collection.ReplaceOne(ctx, bson.M{"_id": row.ID, "rowType": rowTypeChallenge}, row, opts)
	return err
}

func int64Ptr(v int64) *int64 { return &v }
