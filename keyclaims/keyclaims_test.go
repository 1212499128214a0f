package keyclaims

import (
	"testing"

	"github.com/bitcoinschema/go-bitcoin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestToActorExclusiveOr tests collapsing key claims into a single actor
func TestToActorExclusiveOr(t *testing.T) {
	actor, err := KeyClaims{AccountID: "acct-1", AppSigned: true}.ToActor(ExclusiveOr)
	require.NoError(t, err)
	assert.Equal(t, ActorApp, actor)

	actor, err = KeyClaims{AccountID: "acct-1", HardwareSigned: true}.ToActor(ExclusiveOr)
	require.NoError(t, err)
	assert.Equal(t, ActorHardware, actor)

	_, err = KeyClaims{AccountID: "acct-1"}.ToActor(ExclusiveOr)
	assert.ErrorIs(t, err, ErrNoActor)

	_, err = KeyClaims{AccountID: "acct-1", AppSigned: true, HardwareSigned: true}.ToActor(ExclusiveOr)
	assert.ErrorIs(t, err, ErrAmbiguousActor)
}

// TestCheckSignature tests possession signature verification
func TestCheckSignature(t *testing.T) {
	priv, err := bitcoin.CreatePrivateKeyString()
	require.NoError(t, err)
	pub, err := bitcoin.PubKeyFromPrivateKeyString(priv, true)
	require.NoError(t, err)

	message := "CompleteDelayNotify" + pub
	signature, err := bitcoin.SignMessage(priv, message, true)
	require.NoError(t, err)

	require.NoError(t, CheckSignature(message, signature, pub))

	// Signature over a different message must not verify
	assert.ErrorIs(t, CheckSignature(message+"x", signature, pub), ErrInvalidSignature)

	// Signature by a different key must not verify
	otherPriv, err := bitcoin.CreatePrivateKeyString()
	require.NoError(t, err)
	otherSig, err := bitcoin.SignMessage(otherPriv, message, true)
	require.NoError(t, err)
	assert.ErrorIs(t, CheckSignature(message, otherSig, pub), ErrInvalidSignature)

	// Garbage pubkey
	assert.ErrorIs(t, CheckSignature(message, signature, "not-a-key"), ErrInvalidSignature)
}

// TestPrincipalDomains tests principal domain checks
func TestPrincipalDomains(t *testing.T) {
	wallet := Principal{AccountID: "acct-1", Domain: DomainWallet}
	assert.True(t, wallet.IsWallet("acct-1"))
	assert.False(t, wallet.IsWallet("acct-2"))
	assert.False(t, wallet.IsRecovery("acct-1"))

	recovery := Principal{AccountID: "acct-1", Domain: DomainRecovery}
	assert.True(t, recovery.IsRecovery("acct-1"))
	assert.False(t, recovery.IsWallet("acct-1"))
}
