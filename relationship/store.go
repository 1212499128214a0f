package relationship

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no relationship exists for the lookup
	ErrNotFound = errors.New("recovery relationship not found")
	// ErrNotUnique is returned when a lookup that must resolve to a single
	// relationship matches more than one
	ErrNotUnique = errors.New("recovery relationship lookup is not unique")
	// ErrConflict is returned when a conditional write loses to a concurrent
	// phase transition
	ErrConflict = errors.New("recovery relationship was modified concurrently")
)

// Store is the durable keyed storage the relationship manager runs against.
// Reads by id must reflect the most recent write from the same process;
// the customer and trusted contact scans are approximately current.
type Store interface {

	// Relationship loads a relationship by id, failing with ErrNotFound
	Relationship(ctx context.Context, id string) (RecoveryRelationship, error)

	// RelationshipForCode resolves a non-expired invitation code, failing with
	// ErrNotFound or, defensively, ErrNotUnique on a code collision
	RelationshipForCode(ctx context.Context, code string) (RecoveryRelationship, error)

	// RelationshipForAccountPair returns the relationship between the customer
	// and trusted contact accounts, or nil when none exists
	RelationshipForAccountPair(ctx context.Context, customerAccountID, trustedContactAccountID string) (RecoveryRelationship, error)

	// RelationshipsForCustomer scans every relationship where the account is
	// the customer, fully paginating before returning
	RelationshipsForCustomer(ctx context.Context, accountID string) ([]RecoveryRelationship, error)

	// RelationshipsForTrustedContact scans every relationship where the
	// account is the trusted contact, fully paginating before returning
	RelationshipsForTrustedContact(ctx context.Context, accountID string) ([]RecoveryRelationship, error)

	// SaveRelationship persists the relationship. expectedPhase guards phase
	// transitions: the write only applies if the stored phase still matches,
	// failing with ErrConflict otherwise. An empty expectedPhase inserts a new
	// relationship.
	SaveRelationship(ctx context.Context, r RecoveryRelationship, expectedPhase string) error

	// DeleteRelationship removes the edge permanently
	DeleteRelationship(ctx context.Context, id string) error
}
