package api

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	apirouter "github.com/mrz1836/go-api-router"

	"github.com/tonicpow/wallet-recovery-go/relationship"
)

// Relationship update actions
const (
	actionAccept  = "Accept"
	actionReissue = "Reissue"
)

type createRelationshipRequest struct {
	TrustedContactAlias      string `json:"trusted_contact_alias"`
	CustomerEnrollmentPubkey string `json:"protected_customer_enrollment_pubkey"`
}

// createRelationship opens an invitation to a prospective trusted contact.
// Inviting someone into the recovery circle needs both factors present.
func (s *Server) createRelationship(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	var body createRelationshipRequest
	if err := parseBody(req, &body); err != nil || len(body.TrustedContactAlias) == 0 {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	proof := keyProof(req)
	if !proof.AppSigned || !proof.HardwareSigned {
		returnError(w, req, relationship.ErrUnauthorized)
		return
	}

	acct, err := s.Accounts.FetchAccount(ctx, proof.AccountID)
	if err != nil {
		returnError(w, req, err)
		return
	}
	invitation, err := s.Relationships.CreateInvitation(ctx, acct, body.TrustedContactAlias, body.CustomerEnrollmentPubkey)
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"invitation": invitation})
}

// listRelationships returns every relationship the account participates in
func (s *Server) listRelationships(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	params := apirouter.GetParams(req)
	result, err := s.Relationships.Relationships(ctx, params.GetString("accountId"))
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, result)
}

type endorseRelationshipsRequest struct {
	Endorsements []relationship.Endorsement `json:"endorsements"`
}

// endorseRelationships applies the customer's endorsement certificates and
// echoes back the refreshed view so the client sees what stuck
func (s *Server) endorseRelationships(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	var body endorseRelationshipsRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := apirouter.GetParams(req)
	accountID := params.GetString("accountId")
	if err := s.Relationships.Endorse(ctx, accountID, body.Endorsements); err != nil {
		returnError(w, req, err)
		return
	}

	result, err := s.Relationships.Relationships(ctx, accountID)
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, result)
}

type updateRelationshipRequest struct {
	Action string `json:"action"`

	// Accept fields
	Code                            string `json:"code,omitempty"`
	CustomerAlias                   string `json:"customer_alias,omitempty"`
	TrustedContactIdentityPubkey    string `json:"trusted_contact_identity_pubkey,omitempty"`
	TrustedContactEnrollmentPubkey  string `json:"trusted_contact_enrollment_pubkey,omitempty"`
	TrustedContactIdentityPubkeyMac string `json:"trusted_contact_identity_pubkey_mac,omitempty"`
	EnrollmentKeyConfirmation       string `json:"enrollment_key_confirmation,omitempty"`
}

// updateRelationship accepts an invitation (as the invited contact) or
// reissues its code (as the inviting customer), discriminated by action
func (s *Server) updateRelationship(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	var body updateRelationshipRequest
	if err := parseBody(req, &body); err != nil {
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	params := apirouter.GetParams(req)
	accountID := params.GetString("accountId")
	relationshipID := params.GetString("relationshipId")

	switch body.Action {
	case actionAccept:
		accepted, err := s.Relationships.AcceptInvitation(ctx, relationship.AcceptInvitationInput{
			TrustedContactAccountID:         accountID,
			RecoveryRelationshipID:          relationshipID,
			Code:                            body.Code,
			CustomerAlias:                   body.CustomerAlias,
			TrustedContactIdentityPubkey:    body.TrustedContactIdentityPubkey,
			TrustedContactEnrollmentPubkey:  body.TrustedContactEnrollmentPubkey,
			TrustedContactIdentityPubkeyMac: body.TrustedContactIdentityPubkeyMac,
			EnrollmentKeyConfirmation:       body.EnrollmentKeyConfirmation,
			Principal:                       principal(req),
		})
		if err != nil {
			returnError(w, req, err)
			return
		}
		apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"customer": accepted})

	case actionReissue:
		invitation, err := s.Relationships.ReissueInvitation(ctx, accountID, relationshipID)
		if err != nil {
			returnError(w, req, err)
			return
		}
		apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"invitation": invitation})

	default:
		apirouter.ReturnResponse(w, req, http.StatusBadRequest, map[string]string{"error": "unknown action"})
	}
}

// deleteRelationship removes a relationship at any phase
func (s *Server) deleteRelationship(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	params := apirouter.GetParams(req)
	err := s.Relationships.Delete(ctx, params.GetString("accountId"),
		params.GetString("relationshipId"), keyProof(req), principal(req))
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]string{})
}

// invitationForCode resolves a shared invitation code so the invited contact
// can preview the invite before accepting
func (s *Server) invitationForCode(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
	if s.socialRecoveryForbidden(w, req) {
		return
	}
	ctx, cancel := requestContext(req)
	defer cancel()

	params := apirouter.GetParams(req)
	invitation, err := s.Relationships.InvitationForCode(ctx, params.GetString("code"))
	if err != nil {
		returnError(w, req, err)
		return
	}
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"invitation": invitation})
}
