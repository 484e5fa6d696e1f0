package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"yieldctl/pkg/types"
)

var (
	// Matches: "1 USDC usdc-vault", "1.5 ETH into eth-vault", "100 DAI from dai-vault"
	amountPattern = regexp.MustCompile(`(?i)^(\d+\.?\d*)\s+([A-Z0-9]+)\s+(?:(?:INTO|TO|FROM|IN|ON)\s+)?([A-Z0-9._-]+)$`)

	// Matches: "usdc-vault", "from usdc-vault"
	claimPattern = regexp.MustCompile(`(?i)^(?:FROM\s+)?([A-Z0-9._-]+)$`)
)

// ParseCommand parses a command that starts with its action verb
// Examples:
//   - "deposit 1.5 USDC into usdc-vault"
//   - "withdraw 100 USDC from usdc-vault"
//   - "claim from usdc-vault"
func ParseCommand(command string) (*types.TransactionRequest, error) {
	command = strings.TrimSpace(command)
	verb, rest, _ := strings.Cut(command, " ")

	action, err := types.ParseAction(verb)
	if err != nil {
		return nil, err
	}
	return ParseActionCommand(action, rest)
}

// ParseActionCommand parses the arguments that follow an action verb
func ParseActionCommand(action types.Action, command string) (*types.TransactionRequest, error) {
	command = strings.Join(strings.Fields(command), " ")

	if action == types.ActionClaim {
		matches := claimPattern.FindStringSubmatch(command)
		if matches == nil {
			return nil, fmt.Errorf("invalid claim command format. Expected: 'claim <vault>' (e.g., 'claim usdc-vault')")
		}
		return &types.TransactionRequest{
			Action: action,
			Vault:  strings.ToLower(matches[1]),
			Amount: decimal.Zero,
		}, nil
	}

	matches := amountPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid %s command format. Expected: '%s <amount> <token> <vault>' (e.g., '%s 1.5 USDC usdc-vault')", action, action, action)
	}

	amount, err := decimal.NewFromString(matches[1])
	if err != nil {
		return nil, fmt.Errorf("invalid amount %s: %w", matches[1], err)
	}

	return &types.TransactionRequest{
		Action: action,
		Amount: amount,
		Token:  NormalizeTokenSymbol(matches[2]),
		Vault:  strings.ToLower(matches[3]),
	}, nil
}

// ValidateRequest validates that a request has all required fields
func ValidateRequest(req *types.TransactionRequest) error {
	if req.Network == "" {
		return fmt.Errorf("network is required")
	}
	if req.Vault == "" {
		return fmt.Errorf("vault is required")
	}
	if req.Action == types.ActionClaim {
		return nil
	}
	if req.Token == "" {
		return fmt.Errorf("token is required")
	}
	if !req.Amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if req.Slippage > 10000 {
		return fmt.Errorf("slippage cannot exceed 10000 bps")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	return strings.TrimSpace(strings.ToUpper(symbol))
}
