package pool

import "context"

// FundsGateway moves real money at the pool boundary. Deposits are pulled
// from the member's external account before the join command is submitted,
// so a pull failure surfaces as ErrInsufficientFunds at the API edge and
// on rejection the deposit is pushed straight back. Premiums are collected
// at the amount the ledger charged, and claim payouts are pushed out after
// settlement. The core engine itself never touches the gateway.
type FundsGateway interface {
	// Pull withdraws amount from the member's external account. Returns
	// ErrInsufficientFunds when the account cannot cover it.
	Pull(ctx context.Context, account string, amount int64) error

	// Push credits amount to the member's external account.
	Push(ctx context.Context, account string, amount int64) error
}

// CustodialGateway is the default gateway for custodial deployments where
// member balances live outside this system and transfers always succeed
// from the ledger's point of view.
type CustodialGateway struct{}

func (CustodialGateway) Pull(context.Context, string, int64) error { return nil }
func (CustodialGateway) Push(context.Context, string, int64) error { return nil }
