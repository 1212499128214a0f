package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	apirouter "github.com/mrz1836/go-api-router"

	"github.com/tonicpow/wallet-recovery-go/account"
	"github.com/tonicpow/wallet-recovery-go/comms"
	"github.com/tonicpow/wallet-recovery-go/delaynotify"
	"github.com/tonicpow/wallet-recovery-go/keyclaims"
)

// verificationWindow is how long a redeemed code keeps its scope verified
const verificationWindow = 10 * time.Minute

type createRecoveryRequest struct {
	LostFactor  account.Factor                  `json:"lost_factor"`
	Destination delaynotify.RecoveryDestination `json:"delay_notify_destination"`
}

// createRecovery starts a Delay-and-Notify recovery for the account
func (s *Server) createRecovery(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	var body createRecoveryRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	proof := keyProof(req)
	resp, err := s.Orchestrator.Run(ctx, proof.AccountID, []delaynotify.Event{
		delaynotify.CheckAccountRecoveryState{},
		delaynotify.CreateRecovery{
			LostFactor:  body.LostFactor,
			Destination: body.Destination,
			KeyProof:    proof,
		},
	})
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, resp)
}

// recoveryStatus returns the account's pending recovery, if any
func (s *Server) recoveryStatus(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	params := apirouter.GetParams(req)
	resp, err := s.Orchestrator.Run(ctx, params.GetString("accountId"), []delaynotify.Event{
		delaynotify.CheckAccountRecoveryState{},
	})
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, resp)
}

// cancelRecovery cancels the pending recovery. Either factor may cancel.
func (s *Server) cancelRecovery(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	proof := keyProof(req)
	resp, err := s.Orchestrator.Run(ctx, proof.AccountID, []delaynotify.Event{
		delaynotify.CheckAccountRecoveryState{},
		delaynotify.CancelRecovery{KeyProof: proof},
	})
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, resp)
}

type updateTestDelayRequest struct {
	DelayPeriodSeconds int64 `json:"delay_period_num_sec"`
}

// updateTestDelay shortens the delay window on a test account's recovery
func (s *Server) updateTestDelay(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	var body updateTestDelayRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := apirouter.GetParams(req)
	resp, err := s.Orchestrator.Run(ctx, params.GetString("accountId"), []delaynotify.Event{
		delaynotify.CheckAccountRecoveryState{},
		delaynotify.UpdateDelayForTestAccountRecovery{
			DelayPeriod: time.Duration(body.DelayPeriodSeconds) * time.Second,
		},
	})
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, resp)
}

type completeRecoveryRequest struct {
	Challenge         string `json:"challenge"`
	AppSignature      string `json:"app_signature"`
	HardwareSignature string `json:"hardware_signature"`
}

// completeRecovery finishes a recovery whose delay window has elapsed. The
// route is intentionally unauthenticated: the caller holds the destination
// keys, not the account's current keys, and proves it by signing the challenge.
func (s *Server) completeRecovery(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	var body completeRecoveryRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := apirouter.GetParams(req)
	resp, err := s.Orchestrator.Run(ctx, params.GetString("accountId"), []delaynotify.Event{
		delaynotify.CheckAccountRecoveryState{},
		delaynotify.CheckEligibleForCompletion{
			Challenge:         body.Challenge,
			AppSignature:      body.AppSignature,
			HardwareSignature: body.HardwareSignature,
		},
		delaynotify.RotateKeyset{UserPool: s.UserPool},
	})
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, resp)
}

type sendVerificationCodeRequest struct {
	TouchpointID string `json:"touchpoint_id"`
}

// sendVerificationCode issues a verification code over one of the account's
// contact touchpoints, scoped to the actor driving the recovery
func (s *Server) sendVerificationCode(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	var body sendVerificationCodeRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	proof := keyProof(req)
	actor, err := proof.ToActor(keyclaims.ExclusiveOr)
	if err != nil {
		returnError(w, req, err)
		return
	}
	acct, err := s.Accounts.FetchAccount(ctx, proof.AccountID)
	if err != nil {
		returnError(w, req, err)
		return
	}

	if err = s.Comms.InitiateForScope(ctx, acct, comms.DelayNotifyActorScope(actor), body.TouchpointID); err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]string{})
}

type verifyCodeRequest struct {
	VerificationCode string `json:"verification_code"`
}

// verifyCode redeems a verification code for the actor's recovery scope
func (s *Server) verifyCode(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	var body verifyCodeRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	proof := keyProof(req)
	actor, err := proof.ToActor(keyclaims.ExclusiveOr)
	if err != nil {
		returnError(w, req, err)
		return
	}

	scope := comms.DelayNotifyActorScope(actor)
	if err = s.Comms.VerifyForScope(ctx, proof.AccountID, scope, body.VerificationCode, verificationWindow); err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]string{})
}

type authKeyProof struct {
	Key       string `json:"key"`
	Signature string `json:"signature"`
}

type rotateAuthKeysRequest struct {
	Application authKeyProof  `json:"application"`
	Hardware    authKeyProof  `json:"hardware"`
	Recovery    *authKeyProof `json:"recovery,omitempty"`
}

// rotateAuthKeys activates a new authentication keyset for the account.
// Requires the current app and hardware keys to have signed the token plus a
// possession signature from each new key over the account id. Any pending
// Delay-and-Notify is canceled first so a stale recovery cannot rotate again.
func (s *Server) rotateAuthKeys(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	ctx, cancel := requestContext(req)
	defer cancel()

	var body rotateAuthKeysRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	proof := keyProof(req)
	if !proof.AppSigned || !proof.HardwareSigned {
		returnError(w, req, delaynotify.ErrInvalidKeyProof)
		return
	}

	accountID := proof.AccountID
	if err := keyclaims.CheckSignature(accountID, body.Application.Signature, body.Application.Key); err != nil {
		returnError(w, req, err)
		return
	}
	if err := keyclaims.CheckSignature(accountID, body.Hardware.Signature, body.Hardware.Key); err != nil {
		returnError(w, req, err)
		return
	}
	if body.Recovery != nil {
		if err := keyclaims.CheckSignature(accountID, body.Recovery.Signature, body.Recovery.Key); err != nil {
			returnError(w, req, err)
			return
		}
	}

	acct, err := s.Accounts.FetchAccount(ctx, accountID)
	if err != nil {
		returnError(w, req, err)
		return
	}
	// A recovery auth key, once set, cannot be silently dropped by a rotation
	if len(acct.AuthKeys.RecoveryAuthPubkey) > 0 && body.Recovery == nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest,
			map[string]string{"error": "rotation must carry the recovery authentication key"})
		return
	}

	_, err = s.Orchestrator.Run(ctx, accountID, []delaynotify.Event{
		delaynotify.CheckAccountRecoveryState{},
		delaynotify.CancelRecovery{KeyProof: proof},
	})
	if err != nil && !errors.Is(err, delaynotify.ErrNoRecoveryExists) {
		returnError(w, req, err)
		return
	}

	keys := account.AuthKeys{
		AppAuthPubkey:      body.Application.Key,
		HardwareAuthPubkey: body.Hardware.Key,
	}
	if body.Recovery != nil {
		keys.RecoveryAuthPubkey = body.Recovery.Key
	}
	if err = s.Accounts.CreateAndRotateAuthKeys(ctx, accountID, keys); err != nil {
		returnError(w, req, err)
		return
	}
	if len(keys.RecoveryAuthPubkey) > 0 {
		if err = s.UserPool.CreateRecoveryUserIfNecessary(ctx, accountID, keys.RecoveryAuthPubkey); err != nil {
			returnError(w, req, err)
			return
		}
	}
	if err = s.UserPool.RotateAccountAuthKeys(ctx, accountID, keys.AppAuthPubkey,
		keys.HardwareAuthPubkey, keys.RecoveryAuthPubkey); err != nil {
		returnError(w, req, err)
		return
	}
	if err = s.Accounts.ClearPushTouchpoints(ctx, accountID); err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]string{})
}
