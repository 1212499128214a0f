package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	apirouter "github.com/mrz1836/go-api-router"

	"github.com/tonicpow/wallet-recovery-go/challenge"
)

type startChallengeContact struct {
	RecoveryRelationshipID string `json:"recovery_relationship_id"`
	CustomerRecoveryPubkey string `json:"customer_recovery_pubkey"`
	EnrollmentSealedPkek   string `json:"enrollment_sealed_pkek"`
}

type startChallengeRequest struct {
	CustomerIdentityPubkey string                  `json:"customer_identity_pubkey"`
	TrustedContacts        []startChallengeContact `json:"trusted_contacts"`
}

// startChallenge opens a new social challenge addressed to the customer's
// endorsed trusted contacts
func (s *Server) startChallenge(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	var body startChallengeRequest
	if err := parseBody(req, &body); err != nil || len(body.TrustedContacts) == 0 {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	requests := make(map[string]challenge.TrustedContactChallengeRequest, len(body.TrustedContacts))
	for _, contact := range body.TrustedContacts {
		requests[contact.RecoveryRelationshipID] = challenge.TrustedContactChallengeRequest{
			CustomerRecoveryPubkey: contact.CustomerRecoveryPubkey,
			EnrollmentSealedPkek:   contact.EnrollmentSealedPkek,
		}
	}

	params := apirouter.GetParams(req)
	c, err := s.Challenges.Create(ctx, params.GetString("accountId"), body.CustomerIdentityPubkey, requests)
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"social_challenge": c})
}

type verifyChallengeRequest struct {
	RecoveryRelationshipID string `json:"recovery_relationship_id"`
	Code                   string `json:"code"`
}

// verifyChallenge lets a trusted contact redeem the human-shared code for
// their view of the customer's current challenge
func (s *Server) verifyChallenge(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	var body verifyChallengeRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := apirouter.GetParams(req)
	view, err := s.Challenges.FetchAsTrustedContact(ctx, params.GetString("accountId"),
		body.RecoveryRelationshipID, body.Code)
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"social_challenge": view})
}

type respondToChallengeRequest struct {
	TrustedContactRecoveryPubkey string `json:"trusted_contact_recovery_pubkey"`
	RecoveryKeyConfirmation      string `json:"recovery_key_confirmation"`
	RecoverySealedPkek           string `json:"recovery_sealed_pkek"`
}

// respondToChallenge records a trusted contact's reconstruction material
func (s *Server) respondToChallenge(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	var body respondToChallengeRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := apirouter.GetParams(req)
	c, err := s.Challenges.Respond(ctx, params.GetString("accountId"), params.GetString("challengeId"),
		challenge.Response{
			TrustedContactRecoveryPubkey: body.TrustedContactRecoveryPubkey,
			RecoveryKeyConfirmation:      body.RecoveryKeyConfirmation,
			RecoverySealedPkek:           body.RecoverySealedPkek,
		})
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"social_challenge": c})
}

// fetchChallenge returns the customer's challenge with all collected responses
func (s *Server) fetchChallenge(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	params := apirouter.GetParams(req)
	c, err := s.Challenges.FetchAsCustomer(ctx, params.GetString("accountId"), params.GetString("challengeId"))
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"social_challenge": c})
}
