package domain

// TokenAccount is a token balance held by Owner and denominated in Mint.
// Backs the local token ledger; corresponds to token_accounts table in PostgreSQL.
type TokenAccount struct {
	Address string
	Mint    string
	Owner   string
	Amount  uint64
}
