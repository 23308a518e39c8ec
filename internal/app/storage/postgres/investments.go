package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/novastack/service_layer/internal/app/domain/investment"
	"github.com/novastack/service_layer/internal/monero"
)

var investmentColumns = []string{
	"id", "investor_id", "startup_id", "from_address", "to_address",
	"payment_id", "amount_atomic", "fee_atomic", "tx_hash", "tx_key", "status",
	"confirmations", "created_at", "updated_at", "confirmed_at",
}

type investmentRow struct {
	ID            string        `db:"id"`
	InvestorID    string        `db:"investor_id"`
	StartupID     string        `db:"startup_id"`
	FromAddress   string        `db:"from_address"`
	ToAddress     string        `db:"to_address"`
	PaymentID     string        `db:"payment_id"`
	AmountAtomic  monero.Atomic `db:"amount_atomic"`
	FeeAtomic     monero.Atomic `db:"fee_atomic"`
	TxHash        string        `db:"tx_hash"`
	TxKey         string        `db:"tx_key"`
	Status        string        `db:"status"`
	Confirmations int64         `db:"confirmations"`
	CreatedAt     time.Time     `db:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at"`
	ConfirmedAt   sql.NullTime  `db:"confirmed_at"`
}

func (r investmentRow) toInvestment() investment.Investment {
	inv := investment.Investment{
		ID:           r.ID,
		InvestorID:   r.InvestorID,
		StartupID:    r.StartupID,
		FromAddress:  r.FromAddress,
		ToAddress:    r.ToAddress,
		PaymentID:    r.PaymentID,
		AmountAtomic: r.AmountAtomic,
		FeeAtomic:    r.FeeAtomic,
		TxHash:       r.TxHash,
		TxKey:        r.TxKey,
		Status:       investment.Status(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Confirmations > 0 {
		inv.Confirmations = uint64(r.Confirmations)
	}
	if r.ConfirmedAt.Valid {
		at := r.ConfirmedAt.Time
		inv.ConfirmedAt = &at
	}
	return inv
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// --- InvestmentStore --------------------------------------------------------

func (s *Store) CreateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO investments (id, investor_id, startup_id, from_address, to_address,
			payment_id, amount_atomic, fee_atomic, tx_hash, tx_key, status,
			confirmations, created_at, updated_at, confirmed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`, inv.ID, inv.InvestorID, inv.StartupID, inv.FromAddress, inv.ToAddress,
		inv.PaymentID, inv.AmountAtomic, inv.FeeAtomic, inv.TxHash, inv.TxKey, string(inv.Status),
		int64(inv.Confirmations), inv.CreatedAt, inv.UpdatedAt, nullTime(inv.ConfirmedAt))
	if err != nil {
		return investment.Investment{}, mapError(err, "create investment")
	}
	return inv, nil
}

func (s *Store) UpdateInvestment(ctx context.Context, inv investment.Investment) (investment.Investment, error) {
	existing, err := s.GetInvestment(ctx, inv.ID)
	if err != nil {
		return investment.Investment{}, err
	}
	inv.CreatedAt = existing.CreatedAt
	inv.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE investments
		SET tx_hash = $2, tx_key = $3, status = $4, confirmations = $5,
			fee_atomic = $6, updated_at = $7, confirmed_at = $8
		WHERE id = $1
	`, inv.ID, inv.TxHash, inv.TxKey, string(inv.Status), int64(inv.Confirmations),
		inv.FeeAtomic, inv.UpdatedAt, nullTime(inv.ConfirmedAt))
	if err != nil {
		return investment.Investment{}, mapError(err, "update investment")
	}
	if err := requireAffected(result, "update investment"); err != nil {
		return investment.Investment{}, err
	}
	return inv, nil
}

func (s *Store) GetInvestment(ctx context.Context, id string) (investment.Investment, error) {
	var row investmentRow
	query := `SELECT ` + columnList(investmentColumns) + ` FROM investments WHERE id = $1`
	if err := s.db.GetContext(ctx, &row, query, id); err != nil {
		return investment.Investment{}, mapError(err, "get investment")
	}
	return row.toInvestment(), nil
}

func (s *Store) ListInvestmentsByInvestor(ctx context.Context, investorID string) ([]investment.Investment, error) {
	return s.selectInvestments(ctx, "list investor investments", `WHERE investor_id = $1`, investorID)
}

func (s *Store) ListInvestmentsByStartup(ctx context.Context, startupID string) ([]investment.Investment, error) {
	return s.selectInvestments(ctx, "list startup investments", `WHERE startup_id = $1`, startupID)
}

func (s *Store) ListPendingInvestments(ctx context.Context) ([]investment.Investment, error) {
	return s.selectInvestments(ctx, "list pending investments", `WHERE status = $1`, string(investment.StatusPending))
}

func (s *Store) selectInvestments(ctx context.Context, what, where string, args ...interface{}) ([]investment.Investment, error) {
	query := `SELECT ` + columnList(investmentColumns) + ` FROM investments ` + where + ` ORDER BY created_at DESC`
	var rows []investmentRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, mapError(err, what)
	}
	result := make([]investment.Investment, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toInvestment())
	}
	return result, nil
}
