package delaynotify

import (
	"context"
	"testing"
	"time"

	"github.com/bitcoinschema/go-bitcoin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
)

type memAccounts struct {
	accounts    map[string]*account.Account
	pushCleared []string
	rotatedKeys map[string]account.AuthKeys
}

func newMemAccounts(accounts ...*account.Account) *memAccounts {
	m := &memAccounts{
		accounts:    map[string]*account.Account{},
		rotatedKeys: map[string]account.AuthKeys{},
	}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memAccounts) FetchAccount(_ context.Context, accountID string) (*account.Account, error) {
	a, ok := m.accounts[accountID]
	if !ok {
		return nil, account.ErrAccountNotFound
	}
	return a, nil
}

func (m *memAccounts) CreateAndRotateAuthKeys(_ context.Context, accountID string, keys account.AuthKeys) error {
	a, ok := m.accounts[accountID]
	if !ok {
		return account.ErrAccountNotFound
	}
	a.AuthKeys = keys
	m.rotatedKeys[accountID] = keys
	return nil
}

func (m *memAccounts) ClearPushTouchpoints(_ context.Context, accountID string) error {
	m.pushCleared = append(m.pushCleared, accountID)
	return nil
}

type memRecoveryStore struct {
	pending    map[string]*WalletRecovery
	terminated map[string]RecoveryStatus
}

func newMemRecoveryStore() *memRecoveryStore {
	return &memRecoveryStore{
		pending:    map[string]*WalletRecovery{},
		terminated: map[string]RecoveryStatus{},
	}
}

func (m *memRecoveryStore) PendingRecovery(_ context.Context, accountID string) (*WalletRecovery, error) {
	return m.pending[accountID], nil
}

func (m *memRecoveryStore) InsertRecovery(_ context.Context, r *WalletRecovery) error {
	if m.pending[r.AccountID] != nil {
		return ErrRecoveryAlreadyExists
	}
	copied := *r
	m.pending[r.AccountID] = &copied
	return nil
}

func (m *memRecoveryStore) SetDelayEndTime(_ context.Context, accountID string, delayEndTime time.Time) error {
	r := m.pending[accountID]
	if r == nil {
		return ErrNoRecoveryExists
	}
	r.Requirements.DelayEndTime = delayEndTime
	return nil
}

func (m *memRecoveryStore) TerminateRecovery(_ context.Context, accountID string, status RecoveryStatus) error {
	if m.pending[accountID] == nil {
		return ErrNoRecoveryExists
	}
	m.pending[accountID] = nil
	m.terminated[accountID] = status
	return nil
}

type memNotifier struct {
	pending   []string
	canceled  []string
	completed []string
}

func (m *memNotifier) RecoveryPending(_ context.Context, r *WalletRecovery) error {
	m.pending = append(m.pending, r.AccountID)
	return nil
}

func (m *memNotifier) RecoveryCanceled(_ context.Context, accountID string) error {
	m.canceled = append(m.canceled, accountID)
	return nil
}

func (m *memNotifier) RecoveryCompleted(_ context.Context, accountID string) error {
	m.completed = append(m.completed, accountID)
	return nil
}

type memUserPool struct {
	rotated       map[string][]string
	recoveryUsers map[string]string
}

func newMemUserPool() *memUserPool {
	return &memUserPool{
		rotated:       map[string][]string{},
		recoveryUsers: map[string]string{},
	}
}

func (m *memUserPool) RotateAccountAuthKeys(_ context.Context, accountID, appPubkey, hardwarePubkey, recoveryPubkey string) error {
	m.rotated[accountID] = []string{appPubkey, hardwarePubkey, recoveryPubkey}
	return nil
}

func (m *memUserPool) CreateRecoveryUserIfNecessary(_ context.Context, accountID, recoveryPubkey string) error {
	if _, ok := m.recoveryUsers[accountID]; !ok {
		m.recoveryUsers[accountID] = recoveryPubkey
	}
	return nil
}

type keyPair struct {
	priv string
	pub  string
}

func newKeyPair(t *testing.T) keyPair {
	priv, err := bitcoin.CreatePrivateKeyString()
	require.NoError(t, err)
	pub, err := bitcoin.PubKeyFromPrivateKeyString(priv, true)
	require.NoError(t, err)
	return keyPair{priv: priv, pub: pub}
}

func signedBy(t *testing.T, pair keyPair, message string) string {
	sig, err := bitcoin.SignMessage(pair.priv, message, true)
	require.NoError(t, err)
	return sig
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	accounts     *memAccounts
	store        *memRecoveryStore
	notifier     *memNotifier
	clock        *time.Time
}

func newFixture(acct *account.Account) *orchestratorFixture {
	accounts := newMemAccounts(acct)
	store := newMemRecoveryStore()
	notifier := &memNotifier{}
	now := time.Now().UTC()
	clock := &now

	return &orchestratorFixture{
		orchestrator: &Orchestrator{
			Accounts:        accounts,
			Store:           store,
			Notifier:        notifier,
			DelayPeriod:     7 * 24 * time.Hour,
			TestDelayPeriod: 20 * time.Second,
			Now:             func() time.Time { return *clock },
		},
		accounts: accounts,
		store:    store,
		notifier: notifier,
		clock:    clock,
	}
}

func testAccount(isTest bool) *account.Account {
	return &account.Account{
		ID: "acct-1",
		AuthKeys: account.AuthKeys{
			AppAuthPubkey:      "old-app-pubkey",
			HardwareAuthPubkey: "old-hw-pubkey",
		},
		IsTestAccount: isTest,
	}
}

func hardwareProof() keyclaims.KeyClaims {
	return keyclaims.KeyClaims{AccountID: "acct-1", HardwareSigned: true}
}

// TestRunRequiresStateCheck tests the mandatory first event rule
func TestRunRequiresStateCheck(t *testing.T) {
	f := newFixture(testAccount(false))

	_, err := f.orchestrator.Run(context.Background(), "acct-1", nil)
	require.Error(t, err)

	_, err = f.orchestrator.Run(context.Background(), "acct-1", []Event{
		CancelRecovery{KeyProof: hardwareProof()},
	})
	require.Error(t, err)
}

// TestCreateRecovery tests starting a Delay-and-Notify recovery
func TestCreateRecovery(t *testing.T) {
	f := newFixture(testAccount(false))
	ctx := context.Background()

	destination := RecoveryDestination{
		AppAuthPubkey:      "new-app-pubkey",
		HardwareAuthPubkey: "new-hw-pubkey",
	}
	resp, err := f.orchestrator.Run(ctx, "acct-1", []Event{
		CheckAccountRecoveryState{},
		CreateRecovery{
			LostFactor:  account.FactorApp,
			Destination: destination,
			KeyProof:    hardwareProof(),
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp.PendingDelayNotify)
	assert.Equal(t, StatusPending, resp.PendingDelayNotify.Status)
	assert.Equal(t, account.FactorApp, resp.PendingDelayNotify.Requirements.LostFactor)
	assert.Equal(t, f.clock.Add(7*24*time.Hour), resp.PendingDelayNotify.Requirements.DelayEndTime)
	assert.Equal(t, []string{"acct-1"}, f.notifier.pending)

	// A second creation while one is pending loses
	_, err = f.orchestrator.Run(ctx, "acct-1", []Event{
		CheckAccountRecoveryState{},
		CreateRecovery{
			LostFactor:  account.FactorApp,
			Destination: destination,
			KeyProof:    hardwareProof(),
		},
	})
	assert.ErrorIs(t, err, ErrRecoveryAlreadyExists)
}

// TestCreateRecoveryKeyProofRules tests that the surviving factor must initiate
func TestCreateRecoveryKeyProofRules(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name       string
		lostFactor account.Factor
		proof      keyclaims.KeyClaims
		wantErr    error
	}{
		{
			name:       "lost app initiated by hardware",
			lostFactor: account.FactorApp,
			proof:      keyclaims.KeyClaims{AccountID: "acct-1", HardwareSigned: true},
		},
		{
			name:       "lost hardware initiated by app",
			lostFactor: account.FactorHardware,
			proof:      keyclaims.KeyClaims{AccountID: "acct-1", AppSigned: true},
		},
		{
			name:       "lost factor cannot initiate",
			lostFactor: account.FactorApp,
			proof:      keyclaims.KeyClaims{AccountID: "acct-1", AppSigned: true},
			wantErr:    ErrInvalidKeyProof,
		},
		{
			name:       "both factors signed is ambiguous",
			lostFactor: account.FactorApp,
			proof:      keyclaims.KeyClaims{AccountID: "acct-1", AppSigned: true, HardwareSigned: true},
			wantErr:    ErrInvalidKeyProof,
		},
		{
			name:       "no factor signed",
			lostFactor: account.FactorApp,
			proof:      keyclaims.KeyClaims{AccountID: "acct-1"},
			wantErr:    ErrInvalidKeyProof,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(testAccount(false))
			_, err := f.orchestrator.Run(ctx, "acct-1", []Event{
				CheckAccountRecoveryState{},
				CreateRecovery{
					LostFactor:  tc.lostFactor,
					Destination: RecoveryDestination{AppAuthPubkey: "a", HardwareAuthPubkey: "h"},
					KeyProof:    tc.proof,
				},
			})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

// TestCancelRecovery tests canceling a pending recovery
func TestCancelRecovery(t *testing.T) {
	f := newFixture(testAccount(false))
	ctx := context.Background()

	// Nothing to cancel yet
	_, err := f.orchestrator.Run(ctx, "acct-1", []Event{
		CheckAccountRecoveryState{},
		CancelRecovery{KeyProof: hardwareProof()},
	})
	assert.ErrorIs(t, err, ErrNoRecoveryExists)

	_, err = f.orchestrator.Run(ctx, "acct-1", []Event{
		CheckAccountRecoveryState{},
		CreateRecovery{
			LostFactor:  account.FactorApp,
			Destination: RecoveryDestination{AppAuthPubkey: "a", HardwareAuthPubkey: "h"},
			KeyProof:    hardwareProof(),
		},
	})
	require.NoError(t, err)

	resp, err := f.orchestrator.Run(ctx, "acct-1", []Event{
		CheckAccountRecoveryState{},
		CancelRecovery{KeyProof: hardwareProof()},
	})
	require.NoError(t, err)
	assert.True(t, resp.Canceled)
	assert.Nil(t, resp.PendingDelayNotify)
	assert.Equal(t, StatusCanceled, f.store.terminated["acct-1"])
	assert.Equal(t, []string{"acct-1"}, f.notifier.canceled)

	// A canceled recovery cannot be completed
	_, err = f.orchestrator.Run(ctx, "acct-1", []Event{
		CheckAccountRecoveryState{},
		CheckEligibleForCompletion{Challenge: "anything"},
	})
	assert.ErrorIs(t, err, ErrNoRecoveryExists)
}

// TestUpdateDelayForTestAccount tests shortening the delay window
func TestUpdateDelayForTestAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("regular account refused", func(t *testing.T) {
		f := newFixture(testAccount(false))
		_, err := f.orchestrator.Run(ctx, "acct-1", []Event{
			CheckAccountRecoveryState{},
			UpdateDelayForTestAccountRecovery{DelayPeriod: time.Second},
		})
		assert.ErrorIs(t, err, ErrTestAccountOnly)
	})

	t.Run("test account shortened", func(t *testing.T) {
		f := newFixture(testAccount(true))
		_, err := f.orchestrator.Run(ctx, "acct-1", []Event{
			CheckAccountRecoveryState{},
			CreateRecovery{
				LostFactor:  account.FactorApp,
				Destination: RecoveryDestination{AppAuthPubkey: "a", HardwareAuthPubkey: "h"},
				KeyProof:    hardwareProof(),
			},
		})
		require.NoError(t, err)

		resp, err := f.orchestrator.Run(ctx, "acct-1", []Event{
			CheckAccountRecoveryState{},
			UpdateDelayForTestAccountRecovery{DelayPeriod: time.Second},
		})
		require.NoError(t, err)
		assert.Equal(t, f.clock.Add(time.Second), resp.PendingDelayNotify.Requirements.DelayEndTime)
	})
}

// TestCompleteRecovery tests the full completion path with real signatures
func TestCompleteRecovery(t *testing.T) {
	ctx := context.Background()
	appKeys := newKeyPair(t)
	hwKeys := newKeyPair(t)
	recoveryKeys := newKeyPair(t)

	destination := RecoveryDestination{
		AppAuthPubkey:      appKeys.pub,
		HardwareAuthPubkey: hwKeys.pub,
		RecoveryAuthPubkey: recoveryKeys.pub,
	}
	challenge := CompletionChallenge(destination)

	start := func(t *testing.T, f *orchestratorFixture) {
		_, err := f.orchestrator.Run(ctx, "acct-1", []Event{
			CheckAccountRecoveryState{},
			CreateRecovery{
				LostFactor:  account.FactorApp,
				Destination: destination,
				KeyProof:    hardwareProof(),
			},
		})
		require.NoError(t, err)
	}

	completionEvents := func(pool *memUserPool, challenge, appSig, hwSig string) []Event {
		return []Event{
			CheckAccountRecoveryState{},
			CheckEligibleForCompletion{
				Challenge:         challenge,
				AppSignature:      appSig,
				HardwareSignature: hwSig,
			},
			RotateKeyset{UserPool: pool},
		}
	}

	t.Run("still in delay period", func(t *testing.T) {
		f := newFixture(testAccount(false))
		start(t, f)
		_, err := f.orchestrator.Run(ctx, "acct-1", completionEvents(newMemUserPool(),
			challenge, signedBy(t, appKeys, challenge), signedBy(t, hwKeys, challenge)))
		assert.ErrorIs(t, err, ErrStillInDelayPeriod)
	})

	t.Run("completes exactly at the delay boundary", func(t *testing.T) {
		f := newFixture(testAccount(false))
		start(t, f)
		pool := newMemUserPool()

		*f.clock = f.clock.Add(7 * 24 * time.Hour)
		resp, err := f.orchestrator.Run(ctx, "acct-1", completionEvents(pool,
			challenge, signedBy(t, appKeys, challenge), signedBy(t, hwKeys, challenge)))
		require.NoError(t, err)
		assert.Nil(t, resp.PendingDelayNotify)

		assert.Equal(t, StatusCompleted, f.store.terminated["acct-1"])
		assert.Equal(t, destination.AppAuthPubkey, f.accounts.rotatedKeys["acct-1"].AppAuthPubkey)
		assert.Equal(t, destination.HardwareAuthPubkey, f.accounts.rotatedKeys["acct-1"].HardwareAuthPubkey)
		assert.Equal(t, recoveryKeys.pub, pool.recoveryUsers["acct-1"])
		assert.Equal(t, []string{appKeys.pub, hwKeys.pub, recoveryKeys.pub}, pool.rotated["acct-1"])
		assert.Equal(t, []string{"acct-1"}, f.accounts.pushCleared)
		assert.Equal(t, []string{"acct-1"}, f.notifier.completed)
	})

	t.Run("wrong challenge", func(t *testing.T) {
		f := newFixture(testAccount(false))
		start(t, f)
		*f.clock = f.clock.Add(8 * 24 * time.Hour)

		forged := "CompleteDelayNotify" + "attacker-key"
		_, err := f.orchestrator.Run(ctx, "acct-1", completionEvents(newMemUserPool(),
			forged, signedBy(t, appKeys, forged), signedBy(t, hwKeys, forged)))
		assert.ErrorIs(t, err, ErrInvalidChallenge)
	})

	t.Run("signature by the wrong key", func(t *testing.T) {
		f := newFixture(testAccount(false))
		start(t, f)
		*f.clock = f.clock.Add(8 * 24 * time.Hour)

		_, err := f.orchestrator.Run(ctx, "acct-1", completionEvents(newMemUserPool(),
			challenge, signedBy(t, hwKeys, challenge), signedBy(t, hwKeys, challenge)))
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("rotation without eligibility check", func(t *testing.T) {
		f := newFixture(testAccount(false))
		start(t, f)
		*f.clock = f.clock.Add(8 * 24 * time.Hour)

		_, err := f.orchestrator.Run(ctx, "acct-1", []Event{
			CheckAccountRecoveryState{},
			RotateKeyset{UserPool: newMemUserPool()},
		})
		assert.ErrorIs(t, err, ErrNotEligibleForCompletion)
	})
}

// TestCompletionChallenge tests the destination key binding
func TestCompletionChallenge(t *testing.T) {
	d := RecoveryDestination{
		AppAuthPubkey:      "app",
		HardwareAuthPubkey: "hw",
		RecoveryAuthPubkey: "rec",
	}
	assert.Equal(t, "CompleteDelayNotifyhwapprec", CompletionChallenge(d))

	// Omitting the recovery key changes the challenge
	d.RecoveryAuthPubkey = ""
	assert.Equal(t, "CompleteDelayNotifyhwapp", CompletionChallenge(d))
}
