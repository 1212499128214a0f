// Package comms issues and checks the verification codes that gate sensitive
// recovery actions, scoped to the actor that requested them.
package comms

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
)

var (
	// ErrCodeMismatch is returned when the submitted code is wrong or no
	// verification is in flight for the scope
	ErrCodeMismatch = errors.New("verification code mismatch")
	// ErrCodeExpired is returned when the code is correct but stale
	ErrCodeExpired = errors.New("verification code expired")
)

// codeTTL bounds how long an issued code stays redeemable
const codeTTL = 10 * time.Minute

// Scope ties a verification to the action and actor it was issued for
type Scope string

// DelayNotifyActorScope scopes a verification to the Delay-and-Notify flow of
// one specific actor, so a code sent for a lost-app recovery cannot be
// redeemed by the hardware path
func DelayNotifyActorScope(actor keyclaims.Actor) Scope {
	return Scope("delay_notify:" + string(actor))
}

// Verification is one in-flight or redeemed verification
type Verification struct {
	AccountID     string    `bson:"accountId"`
	Scope         Scope     `bson:"scope"`
	Code          string    `bson:"code"`
	ExpiresAt     time.Time `bson:"expiresAt"`
	VerifiedUntil time.Time `bson:"verifiedUntil,omitempty"`
}

// Store is the verification repository
type Store interface {
	Verification(ctx context.Context, accountID string, scope Scope) (*Verification, error)
	SaveVerification(ctx context.Context, v *Verification) error
}

// Sender delivers a verification code over a touchpoint
type Sender interface {
	SendVerificationCode(ctx context.Context, accountID string, touchpoint account.Touchpoint, code string) error
}

// Service coordinates verification issue and redemption
type Service struct {
	store  Store
	sender Sender
	now    func() time.Time
}

// NewService returns a comms verification service
func NewService(store Store, sender Sender) *Service {
	return &Service{store: store, sender: sender, now: time.Now}
}

// newCode returns a 6-digit numeric code
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// InitiateForScope issues a fresh code for the scope and sends it over the
// given touchpoint, which must be an active email or phone channel
func (s *Service) InitiateForScope(ctx context.Context, acct *account.Account, scope Scope, touchpointID string) error {
	touchpoint, err := acct.TouchpointByID(touchpointID)
	if err != nil {
		return err
	}
	if touchpoint.Type != account.TouchpointEmail && touchpoint.Type != account.TouchpointPhone {
		return account.ErrTouchpointTypeMismatch
	}
	if !touchpoint.Active {
		return account.ErrTouchpointInactive
	}

	code, err := newCode()
	if err != nil {
		return err
	}
	verification := &Verification{
		AccountID: acct.ID,
		Scope:     scope,
		Code:      code,
		ExpiresAt: s.now().Add(codeTTL).UTC(),
	}
	if err = s.store.SaveVerification(ctx, verification); err != nil {
		return err
	}
	return s.sender.SendVerificationCode(ctx, acct.ID, *touchpoint, code)
}

// VerifyForScope redeems a code, marking the scope verified for the given
// window. A missing verification is indistinguishable from a wrong code.
func (s *Service) VerifyForScope(ctx context.Context, accountID string, scope Scope, code string, window time.Duration) error {
	verification, err := s.store.Verification(ctx, accountID, scope)
	if err != nil {
		return ErrCodeMismatch
	}
	if verification.Code != code {
		return ErrCodeMismatch
	}
	if s.now().After(verification.ExpiresAt) {
		return ErrCodeExpired
	}

	verification.VerifiedUntil = s.now().Add(window).UTC()
	return s.store.SaveVerification(ctx, verification)
}

// VerifiedForScope reports whether a successful verification is still in its
// validity window
func (s *Service) VerifiedForScope(ctx context.Context, accountID string, scope Scope) bool {
	verification, err := s.store.Verification(ctx, accountID, scope)
	if err != nil {
		return false
	}
	return s.now().Before(verification.VerifiedUntil)
}
