package api

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
	apirouter "github.com/mrz1836/go-api-router"

	"github.com/tonicpow/wallet-recovery-go/delaynotify"
)

const defaultHistoryLimit = 20

// HistorySource lists an account's historical recovery attempts
type HistorySource interface {
	RecoveryHistory(ctx context.Context, accountID string, limit, skip int64) ([]*delaynotify.WalletRecovery, error)
}

// recoveryHistory returns the account's recovery audit trail, newest first.
// Terminated attempts are never hard-deleted, so this pages over everything.
func (s *Server) recoveryHistory(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {

	// Parse the params
	params := apirouter.GetParams(req)
	accountID := params.GetString("accountId")
	limit := params.GetInt("limit")
	skip := params.GetInt("skip")
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	ctx, cancel := requestContext(req)
	defer cancel()

	records, err := s.History.RecoveryHistory(ctx, accountID, int64(limit), int64(skip))
	if err != nil {
		returnError(w, req, err)
		return
	}

	// Return the records
	apirouter.ReturnResponse(w, req, http.StatusOK, map[string]interface{}{"recoveries": records})
}
