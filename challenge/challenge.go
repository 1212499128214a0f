// Package challenge owns the short-lived social challenge protocol used at
// recovery time to collect reconstruction material from endorsed trusted
// contacts.
package challenge

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no challenge exists for the lookup
	ErrNotFound = errors.New("social challenge not found")
	// ErrCodeMismatch is returned when the supplied verification code is
	// wrong. Deliberately indistinguishable from a missing challenge so the
	// caller learns nothing about the customer's recovery state.
	ErrCodeMismatch = errors.New("code mismatch")
	// ErrUnauthorized is returned when the caller does not hold the required
	// relationship to the challenge
	ErrUnauthorized = errors.New("not authorized for social challenge")
	// ErrInvalidRelationship is returned when a challenge request references a
	// relationship that is not an endorsed relationship of the customer
	ErrInvalidRelationship = errors.New("challenge request references an invalid relationship")
)

// TrustedContactChallengeRequest is the per-contact challenge material the
// customer addressed to one trusted contact
type TrustedContactChallengeRequest struct {
	CustomerRecoveryPubkey string `json:"customer_recovery_pubkey" bson:"customerRecoveryPubkey"`
	EnrollmentSealedPkek   string `json:"enrollment_sealed_pkek" bson:"enrollmentSealedPkek"`
}

// Response is one trusted contact's reconstruction material, keyed by the
// relationship it was produced under
type Response struct {
	RecoveryRelationshipID       string `json:"recovery_relationship_id" bson:"recoveryRelationshipId"`
	TrustedContactRecoveryPubkey string `json:"trusted_contact_recovery_pubkey" bson:"trustedContactRecoveryPubkey"`
	RecoveryKeyConfirmation      string `json:"recovery_key_confirmation" bson:"recoveryKeyConfirmation"`
	RecoverySealedPkek           string `json:"recovery_sealed_pkek" bson:"recoverySealedPkek"`
}

// SocialChallenge is one reconstruction attempt initiated by a customer.
// Challenges are never deleted; a newer challenge supersedes older ones.
type SocialChallenge struct {
	ID                     string                                    `json:"social_challenge_id" bson:"_id"`
	CustomerAccountID      string                                    `json:"customer_account_id" bson:"customerAccountId"`
	Code                   string                                    `json:"code" bson:"code"`
	CustomerIdentityPubkey string                                    `json:"customer_identity_pubkey" bson:"customerIdentityPubkey"`
	Requests               map[string]TrustedContactChallengeRequest `json:"trusted_contact_challenge_requests" bson:"trustedContactChallengeRequests"`
	Responses              []Response                                `json:"responses" bson:"responses"`
	CreatedAt              time.Time                                 `json:"created_at" bson:"createdAt"`
}

// RequestFor returns the challenge material addressed to one relationship
func (c *SocialChallenge) RequestFor(recoveryRelationshipID string) (TrustedContactChallengeRequest, bool) {
	r, ok := c.Requests[recoveryRelationshipID]
	return r, ok
}

// PutResponse appends the response, replacing any earlier response from the
// same relationship
func (c *SocialChallenge) PutResponse(r Response) {
	for i := range c.Responses {
		if c.Responses[i].RecoveryRelationshipID == r.RecoveryRelationshipID {
			c.Responses[i] = r
			return
		}
	}
	c.Responses = append(c.Responses, r)
}

// Store is the durable storage for social challenges
type Store interface {

	// Challenge loads a challenge by id, failing with ErrNotFound
	Challenge(ctx context.Context, id string) (*SocialChallenge, error)

	// CurrentChallengeForCustomer returns the most recently created challenge
	// for the customer, failing with ErrNotFound when none exists
	CurrentChallengeForCustomer(ctx context.Context, customerAccountID string) (*SocialChallenge, error)

	// SaveChallenge persists the challenge, superseding nothing: older
	// challenges for the customer stay in place as history
	SaveChallenge(ctx context.Context, c *SocialChallenge) error
}
