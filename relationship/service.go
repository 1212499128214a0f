package relationship

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"time"

	pkgerrors "github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
)

var (
	// ErrInvalidRelationshipType is returned when an operation targets a
	// relationship in the wrong phase
	ErrInvalidRelationshipType = errors.New("invalid recovery relationship type")
	// ErrCodeMismatch is returned when the supplied invitation code is wrong
	ErrCodeMismatch = errors.New("code mismatch")
	// ErrInvitationExpired is returned when the invitation code is past its expiry
	ErrInvitationExpired = errors.New("invitation expired")
	// ErrUnauthorized is returned when the caller is not a party to the
	// relationship or lacks the required proof
	ErrUnauthorized = errors.New("not authorized for recovery relationship")
	// ErrAlreadyTrustedContact is returned when a relationship already exists
	// between the two accounts
	ErrAlreadyTrustedContact = errors.New("account is already a trusted contact for this customer")
	// ErrSelfRelationship is returned when an account tries to become its own
	// trusted contact
	ErrSelfRelationship = errors.New("account cannot be its own trusted contact")
)

const codeLength = 6

// invitation codes are human shareable: unambiguous upper-case alphanumerics
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// Service manages the recovery relationship lifecycle
type Service struct {
	store         Store
	invitationTTL time.Duration
	now           func() time.Time
}

// NewService returns a relationship manager backed by the given store
func NewService(store Store, invitationTTL time.Duration) *Service {
	return &Service{
		store:         store,
		invitationTTL: invitationTTL,
		now:           time.Now,
	}
}

// GenerateCode returns a random short code from the shared alphabet
func GenerateCode() (string, error) {
	buf := make([]byte, codeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", pkgerrors.Wrap(err, "generating code")
	}
	code := make([]byte, codeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code), nil
}

// newCode generates an invitation code, retrying on the unlikely collision
// with a live invitation
func (s *Service) newCode(ctx context.Context) (string, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := GenerateCode()
		if err != nil {
			return "", err
		}
		_, err = s.store.RelationshipForCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil && !errors.Is(err, ErrNotUnique) {
			return "", err
		}
		log.Printf("invitation code collision, regenerating")
	}
	return "", errors.New("could not generate a unique invitation code")
}

// CreateInvitation opens a new invitation from the customer to a prospective
// trusted contact known to the customer by alias
func (s *Service) CreateInvitation(ctx context.Context, customer *account.Account, trustedContactAlias, customerEnrollmentPubkey string) (*Invitation, error) {
	code, err := s.newCode(ctx)
	if err != nil {
		return nil, err
	}

	invitation := &Invitation{
		CommonFields: CommonFields{
			ID:                  primitive.NewObjectID().Hex(),
			CustomerAccountID:   customer.ID,
			TrustedContactAlias: trustedContactAlias,
		},
		Code:                     code,
		ExpiresAt:                s.now().Add(s.invitationTTL).UTC(),
		CustomerEnrollmentPubkey: customerEnrollmentPubkey,
	}
	if err = s.store.SaveRelationship(ctx, invitation, ""); err != nil {
		return nil, err
	}
	return invitation, nil
}

// AcceptInvitationInput carries the trusted contact's acceptance material
type AcceptInvitationInput struct {
	TrustedContactAccountID         string
	RecoveryRelationshipID          string
	Code                            string
	CustomerAlias                   string
	TrustedContactIdentityPubkey    string
	TrustedContactEnrollmentPubkey  string
	TrustedContactIdentityPubkeyMac string
	EnrollmentKeyConfirmation       string
	Principal                       keyclaims.Principal
}

// AcceptInvitation consumes an invitation and transitions the relationship to
// Unendorsed, filling in the trusted contact's identity. Acceptance requires a
// recovery-domain token for the accepting account; a wallet token is not
// enough to become someone's trusted contact.
func (s *Service) AcceptInvitation(ctx context.Context, input AcceptInvitationInput) (*Unendorsed, error) {
	if !input.Principal.IsRecovery(input.TrustedContactAccountID) {
		return nil, ErrUnauthorized
	}
	r, err := s.store.Relationship(ctx, input.RecoveryRelationshipID)
	if err != nil {
		return nil, err
	}
	invitation, ok := r.(*Invitation)
	if !ok {
		return nil, ErrInvalidRelationshipType
	}
	if invitation.CustomerAccountID == input.TrustedContactAccountID {
		return nil, ErrSelfRelationship
	}
	if invitation.Code != input.Code {
		return nil, ErrCodeMismatch
	}
	if s.now().After(invitation.ExpiresAt) {
		return nil, ErrInvitationExpired
	}

	// One non-deleted relationship per (customer, trusted contact) pair
	existing, err := s.store.RelationshipForAccountPair(ctx, invitation.CustomerAccountID, input.TrustedContactAccountID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAlreadyTrustedContact
	}

	connection := &Unendorsed{
		CommonFields: CommonFields{
			ID:                      invitation.ID,
			CustomerAccountID:       invitation.CustomerAccountID,
			TrustedContactAccountID: input.TrustedContactAccountID,
			TrustedContactAlias:     invitation.TrustedContactAlias,
			CustomerAlias:           input.CustomerAlias,
		},
		TrustedContactIdentityPubkey:    input.TrustedContactIdentityPubkey,
		TrustedContactEnrollmentPubkey:  input.TrustedContactEnrollmentPubkey,
		TrustedContactIdentityPubkeyMac: input.TrustedContactIdentityPubkeyMac,
		EnrollmentKeyConfirmation:       input.EnrollmentKeyConfirmation,
	}
	if err = s.store.SaveRelationship(ctx, connection, PhaseInvitation); err != nil {
		return nil, err
	}
	return connection, nil
}

// ReissueInvitation regenerates the code and expiry of an invitation in place
// so the customer can re-share an expired invite without a duplicate edge
func (s *Service) ReissueInvitation(ctx context.Context, customerAccountID, recoveryRelationshipID string) (*Invitation, error) {
	r, err := s.store.Relationship(ctx, recoveryRelationshipID)
	if err != nil {
		return nil, err
	}
	invitation, ok := r.(*Invitation)
	if !ok {
		return nil, ErrInvalidRelationshipType
	}
	if invitation.CustomerAccountID != customerAccountID {
		return nil, ErrUnauthorized
	}

	code, err := s.newCode(ctx)
	if err != nil {
		return nil, err
	}
	invitation.Code = code
	invitation.ExpiresAt = s.now().Add(s.invitationTTL).UTC()
	if err = s.store.SaveRelationship(ctx, invitation, PhaseInvitation); err != nil {
		return nil, err
	}
	return invitation, nil
}

// Endorse attaches the customer's endorsement certificates to unendorsed
// relationships, transitioning each to Endorsed. A failing endorsement stops
// the batch without rolling back endorsements already applied; callers
// re-fetch to see what succeeded.
func (s *Service) Endorse(ctx context.Context, customerAccountID string, endorsements []Endorsement) error {
	for _, e := range endorsements {
		r, err := s.store.Relationship(ctx, e.RecoveryRelationshipID)
		if err != nil {
			return err
		}
		connection, ok := r.(*Unendorsed)
		if !ok {
			return ErrInvalidRelationshipType
		}
		if connection.CustomerAccountID != customerAccountID {
			return ErrUnauthorized
		}

		endorsed := &Endorsed{
			CommonFields:                 connection.CommonFields,
			TrustedContactIdentityPubkey: connection.TrustedContactIdentityPubkey,
			EndorsementKeyCertificate:    e.EndorsementKeyCertificate,
		}
		if err = s.store.SaveRelationship(ctx, endorsed, PhaseUnendorsed); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a relationship at any phase. Customers must present a
// dual-signed key proof; trusted contacts a recovery-domain principal.
func (s *Service) Delete(ctx context.Context, actingAccountID, recoveryRelationshipID string, keyProof keyclaims.KeyClaims, principal keyclaims.Principal) error {
	r, err := s.store.Relationship(ctx, recoveryRelationshipID)
	if err != nil {
		return err
	}
	common := r.Common()

	switch actingAccountID {
	case common.CustomerAccountID:
		if !keyProof.AppSigned || !keyProof.HardwareSigned {
			return ErrUnauthorized
		}
		if !principal.IsWallet(actingAccountID) {
			return ErrUnauthorized
		}
	case common.TrustedContactAccountID:
		if !principal.IsRecovery(actingAccountID) && !principal.IsWallet(actingAccountID) {
			return ErrUnauthorized
		}
	default:
		return ErrUnauthorized
	}

	return s.store.DeleteRelationship(ctx, recoveryRelationshipID)
}

// Relationships returns every relationship the account participates in,
// bucketed by role and phase. Both index scans fully paginate inside the
// store, but the merged view is approximately current, not linearizable.
func (s *Service) Relationships(ctx context.Context, accountID string) (*RelationshipsForAccount, error) {
	result := &RelationshipsForAccount{
		Invitations:               []*Invitation{},
		UnendorsedTrustedContacts: []*Unendorsed{},
		EndorsedTrustedContacts:   []*Endorsed{},
		Customers:                 []RecoveryRelationship{},
	}

	asCustomer, err := s.store.RelationshipsForCustomer(ctx, accountID)
	if err != nil {
		return nil, err
	}
	for _, r := range asCustomer {
		switch rel := r.(type) {
		case *Invitation:
			result.Invitations = append(result.Invitations, rel)
		case *Unendorsed:
			result.UnendorsedTrustedContacts = append(result.UnendorsedTrustedContacts, rel)
		case *Endorsed:
			result.EndorsedTrustedContacts = append(result.EndorsedTrustedContacts, rel)
		}
	}

	asTrustedContact, err := s.store.RelationshipsForTrustedContact(ctx, accountID)
	if err != nil {
		return nil, err
	}
	result.Customers = append(result.Customers, asTrustedContact...)

	return result, nil
}

// InvitationForCode resolves a shared invitation code to its invitation
func (s *Service) InvitationForCode(ctx context.Context, code string) (*Invitation, error) {
	r, err := s.store.RelationshipForCode(ctx, code)
	if err != nil {
		return nil, err
	}
	invitation, ok := r.(*Invitation)
	if !ok {
		return nil, ErrInvalidRelationshipType
	}
	return invitation, nil
}
