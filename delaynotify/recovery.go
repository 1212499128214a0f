// Package delaynotify implements the Delay-and-Notify recovery protocol: a
// self-service key rotation gated by a waiting period, driven by an ordered
// event list replayed against persisted recovery state.
package delaynotify

import (
	"context"
	"errors"
	"time"

	"github.com/tonicpow/wallet-recovery-go/account"
)

var (
	// ErrRecoveryAlreadyExists is returned when a pending recovery already
	// exists for the account
	ErrRecoveryAlreadyExists = errors.New("recovery already exists")
	// ErrNoRecoveryExists is returned when an event requires a pending
	// recovery and none is active. Composite flows treat this as benign.
	ErrNoRecoveryExists = errors.New("no recovery exists")
	// ErrStillInDelayPeriod is returned when completion is attempted before
	// the delay window opens
	ErrStillInDelayPeriod = errors.New("recovery still in delay period")
	// ErrInvalidChallenge is returned when the completion challenge is not the
	// server-issued value for this recovery
	ErrInvalidChallenge = errors.New("invalid completion challenge")
	// ErrInvalidSignature is returned when a completion signature does not
	// verify against the destination keys
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidKeyProof is returned when the key proof does not authorize the
	// requested recovery action
	ErrInvalidKeyProof = errors.New("key proof does not authorize this recovery action")
	// ErrTestAccountOnly is returned when a test-only event targets a regular
	// account
	ErrTestAccountOnly = errors.New("operation only valid for test accounts")
	// ErrNotEligibleForCompletion is returned when key rotation is attempted
	// without a preceding successful eligibility check
	ErrNotEligibleForCompletion = errors.New("recovery has not passed the completion check")
)

// RecoveryType discriminates recovery protocols
type RecoveryType string

// Recovery types
const (
	TypeDelayAndNotify RecoveryType = "delay_and_notify"
)

// RecoveryStatus is the lifecycle status of a wallet recovery
type RecoveryStatus string

// Recovery statuses
const (
	StatusPending   RecoveryStatus = "pending"
	StatusCanceled  RecoveryStatus = "canceled"
	StatusCompleted RecoveryStatus = "completed"
)

// RecoveryDestination is the key material pending activation
type RecoveryDestination struct {
	AppAuthPubkey      string `json:"app_auth_pubkey" bson:"appAuthPubkey"`
	HardwareAuthPubkey string `json:"hardware_auth_pubkey" bson:"hardwareAuthPubkey"`
	RecoveryAuthPubkey string `json:"recovery_auth_pubkey,omitempty" bson:"recoveryAuthPubkey,omitempty"`
}

// Requirements is what must hold before the recovery can complete
type Requirements struct {
	LostFactor   account.Factor `json:"lost_factor" bson:"lostFactor"`
	DelayEndTime time.Time      `json:"delay_end_time" bson:"delayEndTime"`
}

// WalletRecovery is one active or historical Delay-and-Notify attempt.
// Records are never hard-deleted; terminal statuses keep the audit trail.
type WalletRecovery struct {
	AccountID    string              `json:"account_id" bson:"accountId"`
	RecoveryType RecoveryType        `json:"recovery_type" bson:"recoveryType"`
	Status       RecoveryStatus      `json:"recovery_status" bson:"recoveryStatus"`
	Requirements Requirements        `json:"requirements" bson:"requirements"`
	Destination  RecoveryDestination `json:"recovery_action" bson:"recoveryAction"`
	CreatedAt    time.Time           `json:"created_at" bson:"createdAt"`
	UpdatedAt    time.Time           `json:"updated_at" bson:"updatedAt"`
}

// Store is the wallet recovery repository. Writes that create or terminate a
// pending recovery are conditional: of two concurrent creators exactly one
// wins and the other observes ErrRecoveryAlreadyExists.
type Store interface {

	// PendingRecovery returns the account's pending recovery, or nil when
	// none is active
	PendingRecovery(ctx context.Context, accountID string) (*WalletRecovery, error)

	// InsertRecovery persists a new pending recovery, failing with
	// ErrRecoveryAlreadyExists when one is already pending
	InsertRecovery(ctx context.Context, r *WalletRecovery) error

	// SetDelayEndTime overwrites the pending recovery's delay end, failing
	// with ErrNoRecoveryExists when none is pending
	SetDelayEndTime(ctx context.Context, accountID string, delayEndTime time.Time) error

	// TerminateRecovery moves the pending recovery to a terminal status,
	// failing with ErrNoRecoveryExists when none is pending
	TerminateRecovery(ctx context.Context, accountID string, status RecoveryStatus) error
}

// Notifier delivers the customer-facing notifications that accompany
// recovery state changes
type Notifier interface {
	RecoveryPending(ctx context.Context, r *WalletRecovery) error
	RecoveryCanceled(ctx context.Context, accountID string) error
	RecoveryCompleted(ctx context.Context, accountID string) error
}

// CompletionChallenge is the server-issued value both destination keys must
// sign to complete a recovery. Binding the destination keys into the
// challenge prevents redirecting the rotation to different keys after the
// delay window opens.
func CompletionChallenge(d RecoveryDestination) string {
	return "CompleteDelayNotify" + d.HardwareAuthPubkey + d.AppAuthPubkey + d.RecoveryAuthPubkey
}
