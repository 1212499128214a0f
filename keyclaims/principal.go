package keyclaims

// Domain is the identity pool an access token was issued from
type Domain string

// Identity domains. Wallet tokens carry full account authority, recovery
// tokens are issued to the recovery key only.
const (
	DomainWallet   Domain = "wallet"
	DomainRecovery Domain = "recovery"
)

// Principal is the authenticated identity behind a request
type Principal struct {
	AccountID string
	Domain    Domain
}

// IsWallet reports whether the principal is the wallet user for the account
func (p Principal) IsWallet(accountID string) bool {
	return p.Domain == DomainWallet && p.AccountID == accountID
}

// IsRecovery reports whether the principal is the recovery user for the account
func (p Principal) IsRecovery(accountID string) bool {
	return p.Domain == DomainRecovery && p.AccountID == accountID
}
