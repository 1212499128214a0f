package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/challenge"
	"github.com/tonicpow/wallet-recovery-go/delaynotify"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
	"github.com/tonicpow/wallet-recovery-go/relationship"
)

// TestStatusForError tests the domain error to HTTP status mapping
func TestStatusForError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{account.ErrAccountNotFound, http.StatusNotFound},
		{relationship.ErrNotFound, http.StatusNotFound},
		{challenge.ErrNotFound, http.StatusNotFound},
		{delaynotify.ErrRecoveryAlreadyExists, http.StatusBadRequest},
		{delaynotify.ErrNoRecoveryExists, http.StatusBadRequest},
		{delaynotify.ErrStillInDelayPeriod, http.StatusBadRequest},
		{relationship.ErrCodeMismatch, http.StatusBadRequest},
		{relationship.ErrInvitationExpired, http.StatusBadRequest},
		{challenge.ErrCodeMismatch, http.StatusBadRequest},
		{delaynotify.ErrInvalidKeyProof, http.StatusForbidden},
		{delaynotify.ErrTestAccountOnly, http.StatusForbidden},
		{relationship.ErrUnauthorized, http.StatusForbidden},
		{challenge.ErrUnauthorized, http.StatusForbidden},
		{delaynotify.ErrInvalidSignature, http.StatusUnauthorized},
		{keyclaims.ErrInvalidSignature, http.StatusUnauthorized},
		{errors.New("mongo blew up"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, statusForError(tc.err), tc.err.Error())
	}

	// Wrapped errors keep their mapping
	wrapped := errors.Wrap(delaynotify.ErrStillInDelayPeriod, "completing recovery")
	assert.Equal(t, http.StatusBadRequest, statusForError(wrapped))
}

// TestPrincipalFromHeaders tests reading the authenticated identity
func TestPrincipalFromHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acct-1/recovery", nil)
	req.Header.Set(headerAuthAccount, "acct-1")
	req.Header.Set(headerAuthDomain, "recovery")

	p := principal(req)
	assert.Equal(t, "acct-1", p.AccountID)
	assert.True(t, p.IsRecovery("acct-1"))

	// Anything but an explicit recovery domain reads as wallet
	req.Header.Set(headerAuthDomain, "something-else")
	assert.True(t, principal(req).IsWallet("acct-1"))

	req.Header.Del(headerAuthDomain)
	assert.True(t, principal(req).IsWallet("acct-1"))
}
