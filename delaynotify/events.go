package delaynotify

import (
	"time"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
	"github.com/tonicpow/wallet-recovery-go/userpool"
)

// Event is one step of a recovery request. Callers assemble an ordered event
// list per request; later events may depend on state produced by earlier ones
// in the same call.
type Event interface {
	isRecoveryEvent()
}

// CheckAccountRecoveryState loads the account and any pending recovery. It is
// mandatory as the first event of every sequence so each mutating path
// re-validates current state.
type CheckAccountRecoveryState struct{}

// CreateRecovery initiates a Delay-and-Notify recovery for a lost factor
type CreateRecovery struct {
	LostFactor  account.Factor
	Destination RecoveryDestination
	KeyProof    keyclaims.KeyClaims
}

// UpdateDelayForTestAccountRecovery shortens the delay window on a pending
// recovery. Test accounts only; exists to keep integration tests fast.
type UpdateDelayForTestAccountRecovery struct {
	DelayPeriod time.Duration
}

// CancelRecovery cancels the pending recovery
type CancelRecovery struct {
	KeyProof keyclaims.KeyClaims
}

// CheckEligibleForCompletion verifies the delay window has elapsed and that
// both destination keys signed the server-issued challenge
type CheckEligibleForCompletion struct {
	Challenge         string
	AppSignature      string
	HardwareSignature string
}

// RotateKeyset performs the key rotation and marks the recovery completed
type RotateKeyset struct {
	UserPool userpool.Service
}

func (CheckAccountRecoveryState) isRecoveryEvent()         {}
func (CreateRecovery) isRecoveryEvent()                    {}
func (UpdateDelayForTestAccountRecovery) isRecoveryEvent() {}
func (CancelRecovery) isRecoveryEvent()                    {}
func (CheckEligibleForCompletion) isRecoveryEvent()        {}
func (RotateKeyset) isRecoveryEvent()                      {}
