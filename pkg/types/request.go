package types

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Action identifies the vault operation a user wants to perform
type Action string

const (
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionStake    Action = "stake"
	ActionLock     Action = "lock"
	ActionBorrow   Action = "borrow"
	ActionRepay    Action = "repay"
	ActionClaim    Action = "claim"
)

// Actions lists every supported action in display order
var Actions = []Action{
	ActionDeposit,
	ActionWithdraw,
	ActionStake,
	ActionLock,
	ActionBorrow,
	ActionRepay,
	ActionClaim,
}

// ParseAction converts a user supplied verb into an Action
func ParseAction(s string) (Action, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	for _, a := range Actions {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("unknown action %q", s)
}

// TransactionRequest represents a user's intent to mutate on-chain state
type TransactionRequest struct {
	Action    Action
	Network   string
	Vault     string
	Token     string
	Amount    decimal.Decimal
	Slippage  uint32 // basis points
	Recipient string
}

// OperationName is the key under which the request's status is tracked
func (r *TransactionRequest) OperationName() string {
	return fmt.Sprintf("%s:%s:%s", r.Action, r.Network, strings.ToLower(r.Vault))
}

// String renders the request for logs and prompts
func (r *TransactionRequest) String() string {
	if r.Action == ActionClaim {
		return fmt.Sprintf("claim from %s on %s", r.Vault, r.Network)
	}
	return fmt.Sprintf("%s %s %s (%s on %s)", r.Action, r.Amount.String(), r.Token, r.Vault, r.Network)
}
