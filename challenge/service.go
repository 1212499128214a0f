package challenge

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tonicpow/wallet-recovery-go/relationship"
)

// RelationshipSource is the subset of the relationship store the coordinator
// needs to validate challenge participants
type RelationshipSource interface {
	Relationship(ctx context.Context, id string) (relationship.RecoveryRelationship, error)
}

// TrustedContactView is the slice of a challenge disclosed to one trusted
// contact: the customer's identity key and that contact's own request, never
// other contacts' requests or responses.
type TrustedContactView struct {
	SocialChallengeID      string                         `json:"social_challenge_id"`
	CustomerIdentityPubkey string                         `json:"customer_identity_pubkey"`
	Request                TrustedContactChallengeRequest `json:"challenge_request"`
}

// Service coordinates the social challenge protocol
type Service struct {
	store         Store
	relationships RelationshipSource
	now           func() time.Time
}

// NewService returns a social challenge coordinator
func NewService(store Store, relationships RelationshipSource) *Service {
	return &Service{
		store:         store,
		relationships: relationships,
		now:           time.Now,
	}
}

// Create starts a new challenge for the customer. Every request key must
// resolve to an endorsed relationship owned by the customer. The new
// challenge supersedes any prior challenge for the same customer.
func (s *Service) Create(ctx context.Context, customerAccountID, customerIdentityPubkey string, requests map[string]TrustedContactChallengeRequest) (*SocialChallenge, error) {
	for relationshipID := range requests {
		r, err := s.relationships.Relationship(ctx, relationshipID)
		if err != nil {
			return nil, ErrInvalidRelationship
		}
		endorsed, ok := r.(*relationship.Endorsed)
		if !ok || endorsed.CustomerAccountID != customerAccountID {
			return nil, ErrInvalidRelationship
		}
	}

	code, err := relationship.GenerateCode()
	if err != nil {
		return nil, err
	}

	c := &SocialChallenge{
		ID:                     primitive.NewObjectID().Hex(),
		CustomerAccountID:      customerAccountID,
		Code:                   code,
		CustomerIdentityPubkey: customerIdentityPubkey,
		Requests:               requests,
		Responses:              []Response{},
		CreatedAt:              s.now().UTC(),
	}
	if err = s.store.SaveChallenge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FetchAsTrustedContact returns the trusted contact's view of the customer's
// current challenge, gated on the human-shared verification code. A wrong
// code fails with ErrCodeMismatch without revealing whether the relationship
// or challenge exists.
func (s *Service) FetchAsTrustedContact(ctx context.Context, trustedContactAccountID, recoveryRelationshipID, code string) (*TrustedContactView, error) {
	r, err := s.relationships.Relationship(ctx, recoveryRelationshipID)
	if err != nil {
		return nil, ErrCodeMismatch
	}
	endorsed, ok := r.(*relationship.Endorsed)
	if !ok || endorsed.TrustedContactAccountID != trustedContactAccountID {
		return nil, ErrCodeMismatch
	}

	c, err := s.store.CurrentChallengeForCustomer(ctx, endorsed.CustomerAccountID)
	if err != nil {
		return nil, ErrCodeMismatch
	}
	if c.Code != code {
		return nil, ErrCodeMismatch
	}

	// The current challenge may not be addressed to this contact at all
	request, ok := c.RequestFor(recoveryRelationshipID)
	if !ok {
		return nil, ErrCodeMismatch
	}
	return &TrustedContactView{
		SocialChallengeID:      c.ID,
		CustomerIdentityPubkey: c.CustomerIdentityPubkey,
		Request:                request,
	}, nil
}

// Respond records a trusted contact's reconstruction material on the
// challenge. Re-submission by the same contact overwrites the earlier entry.
func (s *Service) Respond(ctx context.Context, trustedContactAccountID, socialChallengeID string, response Response) (*SocialChallenge, error) {
	c, err := s.store.Challenge(ctx, socialChallengeID)
	if err != nil {
		return nil, err
	}

	// The responder must hold an endorsed relationship referenced by the challenge
	var relationshipID string
	for id := range c.Requests {
		r, err := s.relationships.Relationship(ctx, id)
		if err != nil {
			continue
		}
		endorsed, ok := r.(*relationship.Endorsed)
		if ok && endorsed.TrustedContactAccountID == trustedContactAccountID {
			relationshipID = id
			break
		}
	}
	if len(relationshipID) == 0 {
		return nil, ErrUnauthorized
	}

	response.RecoveryRelationshipID = relationshipID
	c.PutResponse(response)
	if err = s.store.SaveChallenge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FetchAsCustomer returns the customer's challenge with every response
// collected so far. Whether enough contacts have responded to reconstruct is
// the client's decision; no quorum is enforced here.
func (s *Service) FetchAsCustomer(ctx context.Context, customerAccountID, socialChallengeID string) (*SocialChallenge, error) {
	c, err := s.store.Challenge(ctx, socialChallengeID)
	if err != nil {
		return nil, err
	}
	if c.CustomerAccountID != customerAccountID {
		return nil, ErrUnauthorized
	}
	return c, nil
}
