package delaynotify

import (
	"context"
	"errors"
	"log"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
)

// Orchestrator is the single entry point for recovery mutations: it loads the
// account's persisted recovery state, folds the event list over it, persists
// results through the store and returns a response projection.
type Orchestrator struct {
	Accounts        account.Service
	Store           Store
	Notifier        Notifier
	DelayPeriod     time.Duration
	TestDelayPeriod time.Duration

	// Now is swappable for tests; defaults to time.Now
	Now func() time.Time
}

// State is the fold value the event list runs against
type State struct {
	Account *account.Account
	Active  *WalletRecovery

	// eligible is set by a successful CheckEligibleForCompletion and consumed
	// by RotateKeyset within the same call
	eligible bool
	canceled bool
}

// Response is the projection returned to callers after a replay
type Response struct {
	PendingDelayNotify *WalletRecovery `json:"pending_delay_notify,omitempty"`
	Canceled           bool            `json:"canceled,omitempty"`
}

// Run replays the events in order against the account's recovery state.
// The first event must be CheckAccountRecoveryState.
func (o *Orchestrator) Run(ctx context.Context, accountID string, events []Event) (*Response, error) {
	if len(events) == 0 {
		return nil, errors.New("empty recovery event list")
	}
	if _, ok := events[0].(CheckAccountRecoveryState); !ok {
		return nil, errors.New("recovery event list must start with CheckAccountRecoveryState")
	}

	st := State{}
	for _, ev := range events {
		next, err := o.apply(ctx, st, accountID, ev)
		if err != nil {
			return nil, err
		}
		st = next
	}

	return &Response{
		PendingDelayNotify: st.Active,
		Canceled:           st.canceled,
	}, nil
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o *Orchestrator) apply(ctx context.Context, st State, accountID string, ev Event) (State, error) {
	switch event := ev.(type) {

	case CheckAccountRecoveryState:
		acct, err := o.Accounts.FetchAccount(ctx, accountID)
		if err != nil {
			return st, err
		}
		active, err := o.Store.PendingRecovery(ctx, accountID)
		if err != nil {
			return st, err
		}
		st.Account = acct
		st.Active = active
		return st, nil

	case CreateRecovery:
		if st.Active != nil {
			return st, ErrRecoveryAlreadyExists
		}
		actor, err := event.KeyProof.ToActor(keyclaims.ExclusiveOr)
		if err != nil {
			return st, ErrInvalidKeyProof
		}
		// The initiating actor must be the surviving factor
		if account.Factor(actor) == event.LostFactor {
			return st, ErrInvalidKeyProof
		}

		delay := o.DelayPeriod
		if st.Account.IsTestAccount {
			delay = o.TestDelayPeriod
		}
		now := o.now().UTC()
		recovery := &WalletRecovery{
			AccountID:    accountID,
			RecoveryType: TypeDelayAndNotify,
			Status:       StatusPending,
			Requirements: Requirements{
				LostFactor:   event.LostFactor,
				DelayEndTime: now.Add(delay),
			},
			Destination: event.Destination,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err = o.Store.InsertRecovery(ctx, recovery); err != nil {
			return st, err
		}
		if err = o.Notifier.RecoveryPending(ctx, recovery); err != nil {
			log.Printf("could not schedule recovery pending notifications for %s: %v", accountID, err)
		}
		st.Active = recovery
		return st, nil

	case UpdateDelayForTestAccountRecovery:
		if !st.Account.IsTestAccount {
			return st, ErrTestAccountOnly
		}
		if st.Active == nil {
			return st, ErrNoRecoveryExists
		}
		period := event.DelayPeriod
		if period <= 0 {
			period = o.TestDelayPeriod
		}
		delayEnd := o.now().UTC().Add(period)
		if err := o.Store.SetDelayEndTime(ctx, accountID, delayEnd); err != nil {
			return st, err
		}
		updated := *st.Active
		updated.Requirements.DelayEndTime = delayEnd
		updated.UpdatedAt = o.now().UTC()
		st.Active = &updated
		return st, nil

	case CancelRecovery:
		if st.Active == nil {
			return st, ErrNoRecoveryExists
		}
		if !event.KeyProof.AppSigned && !event.KeyProof.HardwareSigned {
			return st, ErrInvalidKeyProof
		}
		if err := o.Store.TerminateRecovery(ctx, accountID, StatusCanceled); err != nil {
			return st, err
		}
		if err := o.Notifier.RecoveryCanceled(ctx, accountID); err != nil {
			log.Printf("could not send recovery canceled notification for %s: %v", accountID, err)
		}
		st.Active = nil
		st.canceled = true
		return st, nil

	case CheckEligibleForCompletion:
		if st.Active == nil {
			return st, ErrNoRecoveryExists
		}
		if o.now().Before(st.Active.Requirements.DelayEndTime) {
			return st, ErrStillInDelayPeriod
		}
		destination := st.Active.Destination
		if event.Challenge != CompletionChallenge(destination) {
			return st, ErrInvalidChallenge
		}
		// Signatures verify against the destination keys recorded at creation
		// time, not the account's current keys
		if err := keyclaims.CheckSignature(event.Challenge, event.AppSignature, destination.AppAuthPubkey); err != nil {
			return st, ErrInvalidSignature
		}
		if err := keyclaims.CheckSignature(event.Challenge, event.HardwareSignature, destination.HardwareAuthPubkey); err != nil {
			return st, ErrInvalidSignature
		}
		st.eligible = true
		return st, nil

	case RotateKeyset:
		if st.Active == nil {
			return st, ErrNoRecoveryExists
		}
		if !st.eligible {
			return st, ErrNotEligibleForCompletion
		}
		destination := st.Active.Destination
		keys := account.AuthKeys{
			AppAuthPubkey:      destination.AppAuthPubkey,
			HardwareAuthPubkey: destination.HardwareAuthPubkey,
			RecoveryAuthPubkey: destination.RecoveryAuthPubkey,
		}
		if err := o.Accounts.CreateAndRotateAuthKeys(ctx, accountID, keys); err != nil {
			return st, pkgerrors.Wrap(err, "rotating account auth keys")
		}
		// User pool rotation is idempotent, so a retried event after a
		// partial failure converges instead of half-applying
		if len(destination.RecoveryAuthPubkey) > 0 {
			if err := event.UserPool.CreateRecoveryUserIfNecessary(ctx, accountID, destination.RecoveryAuthPubkey); err != nil {
				return st, pkgerrors.Wrap(err, "creating recovery auth user")
			}
		}
		if err := event.UserPool.RotateAccountAuthKeys(ctx, accountID, destination.AppAuthPubkey,
			destination.HardwareAuthPubkey, destination.RecoveryAuthPubkey); err != nil {
			return st, pkgerrors.Wrap(err, "rotating user pool auth keys")
		}
		if err := o.Accounts.ClearPushTouchpoints(ctx, accountID); err != nil {
			log.Printf("could not clear push touchpoints for %s: %v", accountID, err)
		}
		if err := o.Store.TerminateRecovery(ctx, accountID, StatusCompleted); err != nil {
			return st, err
		}
		if err := o.Notifier.RecoveryCompleted(ctx, accountID); err != nil {
			log.Printf("could not send recovery completed notification for %s: %v", accountID, err)
		}
		st.Active = nil
		st.eligible = false
		return st, nil
	}

	return st, errors.New("unknown recovery event")
}
