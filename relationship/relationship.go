// Package relationship owns the lifecycle of trust edges between a customer
// account and a trusted contact account: invitation, acceptance, endorsement
// and deletion.
package relationship

import (
	"time"
)

// CommonFields are shared by every relationship phase
type CommonFields struct {
	ID                      string `json:"recovery_relationship_id"`
	CustomerAccountID       string `json:"customer_account_id"`
	TrustedContactAccountID string `json:"trusted_contact_account_id,omitempty"`
	TrustedContactAlias     string `json:"trusted_contact_alias"`
	CustomerAlias           string `json:"customer_alias,omitempty"`
}

// RecoveryRelationship is a trust edge in one of three strictly forward
// phases: Invitation, Unendorsed or Endorsed. Each phase carries only the
// fields that are meaningful in that phase.
type RecoveryRelationship interface {
	Common() CommonFields
	phase() string
}

// Invitation is a pending, time-boxed invite created by the customer
type Invitation struct {
	CommonFields
	Code                     string    `json:"code"`
	ExpiresAt                time.Time `json:"expires_at"`
	CustomerEnrollmentPubkey string    `json:"customer_enrollment_pubkey"`
}

// Unendorsed is an accepted invite that the customer has not yet endorsed.
// Not usable for recovery.
type Unendorsed struct {
	CommonFields
	TrustedContactIdentityPubkey    string `json:"trusted_contact_identity_pubkey"`
	TrustedContactEnrollmentPubkey  string `json:"trusted_contact_enrollment_pubkey"`
	TrustedContactIdentityPubkeyMac string `json:"trusted_contact_identity_pubkey_mac"`
	EnrollmentKeyConfirmation       string `json:"enrollment_key_confirmation"`
}

// Endorsed is a relationship the customer has certified, usable in
// social challenge recovery
type Endorsed struct {
	CommonFields
	TrustedContactIdentityPubkey string `json:"trusted_contact_identity_pubkey"`
	EndorsementKeyCertificate    string `json:"endorsement_key_certificate"`
}

// Common returns the phase-independent fields
func (i *Invitation) Common() CommonFields { return i.CommonFields }

// Common returns the phase-independent fields
func (u *Unendorsed) Common() CommonFields { return u.CommonFields }

// Common returns the phase-independent fields
func (e *Endorsed) Common() CommonFields { return e.CommonFields }

func (i *Invitation) phase() string { return PhaseInvitation }
func (u *Unendorsed) phase() string { return PhaseUnendorsed }
func (e *Endorsed) phase() string { return PhaseEndorsed }

// Phase discriminators used by stores to persist the union
const (
	PhaseInvitation = "invitation"
	PhaseUnendorsed = "unendorsed"
	PhaseEndorsed   = "endorsed"
)

// Phase returns the store discriminator for a relationship
func Phase(r RecoveryRelationship) string { return r.phase() }

// Endorsement is one entry in a batch endorse request
type Endorsement struct {
	RecoveryRelationshipID    string `json:"recovery_relationship_id"`
	EndorsementKeyCertificate string `json:"endorsement_key_certificate"`
}

// RelationshipsForAccount buckets an account's relationships by role and phase
type RelationshipsForAccount struct {
	Invitations               []*Invitation          `json:"invitations"`
	UnendorsedTrustedContacts []*Unendorsed          `json:"unendorsed_trusted_contacts"`
	EndorsedTrustedContacts   []*Endorsed            `json:"endorsed_trusted_contacts"`
	Customers                 []RecoveryRelationship `json:"customers"`
}
