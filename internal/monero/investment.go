package monero

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidAddress is returned when an investor or startup address fails
// validation.
var ErrInvalidAddress = errors.New("invalid Monero address")

// PaymentIDLength is the number of hex characters in a derived payment ID.
const PaymentIDLength = 16

// PaymentID derives the payment identifier attached to every investment in
// the given startup.
func PaymentID(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])[:PaymentIDLength]
}

// UserWalletLabel is the subaddress label for a user wallet.
func UserWalletLabel(userID string) string { return "user_" + userID }

// StartupWalletLabel is the subaddress label for a startup wallet.
func StartupWalletLabel(startupID string) string { return "startup_" + startupID }

// CreateUserWallet creates the user's subaddress in account 0.
func (c *Client) CreateUserWallet(ctx context.Context, userID string) (*Address, error) {
	return c.CreateAddress(ctx, 0, UserWalletLabel(userID))
}

// CreateStartupWallet creates the startup's receiving subaddress in account 0.
func (c *Client) CreateStartupWallet(ctx context.Context, startupID string) (*Address, error) {
	return c.CreateAddress(ctx, 0, StartupWalletLabel(startupID))
}

// ProcessInvestment validates both addresses and transfers amount to the
// startup, tagged with the startup's payment ID.
func (c *Client) ProcessInvestment(ctx context.Context, fromAddress, toAddress string, amount decimal.Decimal, startupID string) (*TransferResult, error) {
	// Both addresses are validated before either failure is reported.
	fromValid := c.ValidateAddress(ctx, fromAddress)
	toValid := c.ValidateAddress(ctx, toAddress)
	switch {
	case !fromValid && !toValid:
		return nil, fmt.Errorf("investor and startup addresses: %w", ErrInvalidAddress)
	case !fromValid:
		return nil, fmt.Errorf("investor address: %w", ErrInvalidAddress)
	case !toValid:
		return nil, fmt.Errorf("startup address: %w", ErrInvalidAddress)
	}

	c.log.WithContext(ctx).WithFields(map[string]interface{}{
		"startup_id": startupID,
		"amount":     amount.String(),
	}).Info("Submitting investment transfer")

	return c.Transfer(ctx, TransferRequest{
		Destinations: []Destination{{Address: toAddress, Amount: amount}},
		PaymentID:    PaymentID(startupID),
	})
}

// InvestmentHistory returns every wallet transfer carrying the startup's
// payment ID.
func (c *Client) InvestmentHistory(ctx context.Context, startupID string) ([]Transfer, error) {
	transfers, err := c.GetTransfers(ctx, DefaultTransferQuery())
	if err != nil {
		return nil, err
	}
	pid := PaymentID(startupID)
	out := make([]Transfer, 0)
	for _, t := range transfers {
		if t.PaymentID == pid {
			out = append(out, t)
		}
	}
	return out, nil
}
