package investment

import (
	"time"

	"github.com/novastack/service_layer/internal/monero"
)

// Status is the settlement state of an investment transfer.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Investment records a private Monero investment into a startup. Amounts are
// kept in atomic units.
type Investment struct {
	ID            string        `json:"id"`
	InvestorID    string        `json:"investorId"`
	StartupID     string        `json:"startupId"`
	FromAddress   string        `json:"fromAddress"`
	ToAddress     string        `json:"toAddress"`
	PaymentID     string        `json:"paymentId"`
	AmountAtomic  monero.Atomic `json:"amountAtomic"`
	FeeAtomic     monero.Atomic `json:"feeAtomic"`
	TxHash        string        `json:"txHash"`
	TxKey         string        `json:"-"`
	Status        Status        `json:"status"`
	Confirmations uint64        `json:"confirmations"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	ConfirmedAt   *time.Time    `json:"confirmedAt,omitempty"`
}

// Settled reports whether the investment reached a terminal state.
func (i Investment) Settled() bool {
	return i.Status == StatusConfirmed || i.Status == StatusFailed
}
