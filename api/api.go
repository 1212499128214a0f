// Package api exposes the recovery core over HTTP. Handlers only parse and
// project; protocol decisions live in the domain packages.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apirouter "github.com/mrz1836/go-api-router"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/challenge"
	"github.com/tonicpow/wallet-recovery-go/comms"
	"github.com/tonicpow/wallet-recovery-go/delaynotify"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
	"github.com/tonicpow/wallet-recovery-go/relationship"
	"github.com/tonicpow/wallet-recovery-go/userpool"
)

// Access token headers set by the authentication gateway in front of this
// service. The gateway validates tokens; this core consumes the claims.
const (
	headerAuthAccount = "X-Auth-Account-Id"
	headerAuthDomain  = "X-Auth-Domain"
	headerAppSigned   = "X-Proof-App-Signed"
	headerHwSigned    = "X-Proof-Hw-Signed"
)

// Server carries the service dependencies the handlers dispatch into
type Server struct {
	Accounts      account.Service
	Orchestrator  *delaynotify.Orchestrator
	Relationships *relationship.Service
	Challenges    *challenge.Service
	Comms         *comms.Service
	UserPool      userpool.Service
	History       HistorySource

	// SocialRecoveryEnabled gates the trusted contact and social challenge
	// routes; injected so tests can toggle it per server
	SocialRecoveryEnabled bool
}

// keyProof reads the proof-of-possession claims from the request. The claims
// are asserted against the account addressed by the path, which the gateway
// has already matched to the token subject.
func keyProof(req *http.Request) keyclaims.KeyClaims {
	params := apirouter.GetParams(req)
	return keyclaims.KeyClaims{
		AccountID:      params.GetString("accountId"),
		AppSigned:      req.Header.Get(headerAppSigned) == "true",
		HardwareSigned: req.Header.Get(headerHwSigned) == "true",
	}
}

// principal reads the authenticated identity from the request
func principal(req *http.Request) keyclaims.Principal {
	domain := keyclaims.Domain(req.Header.Get(headerAuthDomain))
	if domain != keyclaims.DomainRecovery {
		domain = keyclaims.DomainWallet
	}
	return keyclaims.Principal{
		AccountID: req.Header.Get(headerAuthAccount),
		Domain:    domain,
	}
}

// parseBody decodes a JSON request body
func parseBody(req *http.Request, out interface{}) error {
	defer func() {
		_ = req.Body.Close()
	}()
	return json.NewDecoder(req.Body).Decode(out)
}

// statusForError maps domain errors onto the client-facing taxonomy:
// not-found 404, precondition 400, authorization 403, integrity 400/401,
// infrastructure 500 unmodified.
func statusForError(err error) int {
	switch {
	case errors.Is(err, account.ErrAccountNotFound),
		errors.Is(err, account.ErrTouchpointNotFound),
		errors.Is(err, relationship.ErrNotFound),
		errors.Is(err, challenge.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, delaynotify.ErrRecoveryAlreadyExists),
		errors.Is(err, delaynotify.ErrNoRecoveryExists),
		errors.Is(err, delaynotify.ErrStillInDelayPeriod),
		errors.Is(err, delaynotify.ErrInvalidChallenge),
		errors.Is(err, delaynotify.ErrNotEligibleForCompletion),
		errors.Is(err, relationship.ErrInvalidRelationshipType),
		errors.Is(err, relationship.ErrCodeMismatch),
		errors.Is(err, relationship.ErrInvitationExpired),
		errors.Is(err, relationship.ErrAlreadyTrustedContact),
		errors.Is(err, relationship.ErrSelfRelationship),
		errors.Is(err, relationship.ErrConflict),
		errors.Is(err, relationship.ErrNotUnique),
		errors.Is(err, challenge.ErrCodeMismatch),
		errors.Is(err, challenge.ErrInvalidRelationship),
		errors.Is(err, comms.ErrCodeMismatch),
		errors.Is(err, comms.ErrCodeExpired),
		errors.Is(err, account.ErrTouchpointInactive),
		errors.Is(err, account.ErrTouchpointTypeMismatch):
		return http.StatusBadRequest

	case errors.Is(err, delaynotify.ErrInvalidKeyProof),
		errors.Is(err, delaynotify.ErrTestAccountOnly),
		errors.Is(err, relationship.ErrUnauthorized),
		errors.Is(err, challenge.ErrUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, delaynotify.ErrInvalidSignature),
		errors.Is(err, keyclaims.ErrInvalidSignature):
		return http.StatusUnauthorized

	case errors.Is(err, keyclaims.ErrNoActor),
		errors.Is(err, keyclaims.ErrAmbiguousActor):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func returnError(w http.ResponseWriter, req *http.Request, err error) {
	apirouter.ReturnResponse(w, req, statusForError(err), map[string]string{"error": err.Error()})
}

func (s *Server) socialRecoveryForbidden(w http.ResponseWriter, req *http.Request) bool {
	if s.SocialRecoveryEnabled {
		return false
	}
	apirouter.ReturnResponse(w, req, http.StatusForbidden, map[string]string{"error": "feature not enabled"})
	return true
}

// requestContext bounds each handler's repository round-trips
func requestContext(req *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(req.Context(), 10*time.Second)
}
