// Package investments moves private Monero investments from members to
// startups and tracks them until the wallet confirms them.
package investments

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/novastack/service_layer/internal/app/domain/investment"
	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/domain/user"
	"github.com/novastack/service_layer/internal/app/metrics"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/errors"
	"github.com/novastack/service_layer/internal/monero"
	"github.com/novastack/service_layer/pkg/logger"
)

const (
	// DefaultConfirmations is the depth at which a transfer counts as settled.
	DefaultConfirmations uint64 = 10
	// TransferTypeFailed is the wallet's bucket for failed outgoing transfers.
	TransferTypeFailed = "failed"
)

// DefaultMinInvestment is 0.001 XMR.
var DefaultMinInvestment = decimal.New(1, -3)

// Wallet is the subset of the wallet RPC client used for investments.
type Wallet interface {
	ProcessInvestment(ctx context.Context, fromAddress, toAddress string, amount decimal.Decimal, startupID string) (*monero.TransferResult, error)
	InvestmentHistory(ctx context.Context, startupID string) ([]monero.Transfer, error)
	GetTransferByTxID(ctx context.Context, txid string) (*monero.Transfer, error)
	GetBalance(ctx context.Context) (*monero.Balance, error)
	GetHeight(ctx context.Context) (uint64, error)
	Refresh(ctx context.Context) (uint64, error)
}

// Profiles looks up investor profiles.
type Profiles interface {
	GetUser(ctx context.Context, id string) (user.Profile, error)
}

// Startups looks up startups without counting a view.
type Startups interface {
	GetStartup(ctx context.Context, id string) (startup.Startup, error)
}

// FundingRecorder credits a confirmed investment to its startup.
type FundingRecorder interface {
	RecordInvestor(ctx context.Context, id, investorID string, amount float64, terms string) (startup.Startup, error)
}

// Options tunes investment rules.
type Options struct {
	MinInvestment decimal.Decimal
	Confirmations uint64
}

// Service coordinates wallet transfers and investment records.
type Service struct {
	store    storage.InvestmentStore
	startups Startups
	profiles Profiles
	funding  FundingRecorder
	wallet   Wallet
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

// New constructs an investment service. Zero options fall back to
// DefaultMinInvestment and DefaultConfirmations.
func New(store storage.InvestmentStore, startups Startups, profiles Profiles, funding FundingRecorder, wallet Wallet, opts Options, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("investments")
	}
	if opts.MinInvestment.IsZero() {
		opts.MinInvestment = DefaultMinInvestment
	}
	if opts.Confirmations == 0 {
		opts.Confirmations = DefaultConfirmations
	}
	return &Service{
		store:    store,
		startups: startups,
		profiles: profiles,
		funding:  funding,
		wallet:   wallet,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// InvestInput is the payload of an investment request. FromAddress defaults
// to the investor's own wallet address.
type InvestInput struct {
	StartupID   string          `json:"startupId"`
	Amount      decimal.Decimal `json:"amount"`
	FromAddress string          `json:"fromAddress"`
}

// Portfolio summarises an investor's records.
type Portfolio struct {
	Investments       []investment.Investment `json:"investments"`
	TotalInvested     decimal.Decimal         `json:"totalInvested"`
	ActiveInvestments int                     `json:"activeInvestments"`
}

// WalletStatus is the operator view of the wallet daemon.
type WalletStatus struct {
	Balance         decimal.Decimal `json:"balance"`
	UnlockedBalance decimal.Decimal `json:"unlockedBalance"`
	Height          uint64          `json:"height"`
}

// ReconcileResult counts what one reconciliation pass did.
type ReconcileResult struct {
	Checked   int `json:"checked"`
	Confirmed int `json:"confirmed"`
	Failed    int `json:"failed"`
	Errors    int `json:"errors"`
}

// Invest transfers in.Amount XMR to the startup's wallet and records a
// pending investment.
func (s *Service) Invest(ctx context.Context, investorID string, in InvestInput) (investment.Investment, error) {
	in.StartupID = strings.TrimSpace(in.StartupID)
	if in.StartupID == "" || in.Amount.IsZero() {
		return investment.Investment{}, errors.BadRequest("Startup ID and amount are required")
	}
	if in.Amount.LessThan(s.opts.MinInvestment) {
		return investment.Investment{}, errors.BadRequest(fmt.Sprintf("Minimum investment amount is %s XMR", s.opts.MinInvestment.String())).
			WithDetails("minimum", s.opts.MinInvestment.String())
	}
	if s.wallet == nil {
		return investment.Investment{}, errors.Unavailable("Wallet service is not configured")
	}

	st, err := s.startups.GetStartup(ctx, in.StartupID)
	if err != nil {
		return investment.Investment{}, startupError(err)
	}
	if st.MoneroAddress == "" {
		return investment.Investment{}, errors.BadRequest("Startup has no wallet address")
	}

	from := strings.TrimSpace(in.FromAddress)
	if from == "" {
		profile, err := s.profiles.GetUser(ctx, investorID)
		if err != nil && !stderrors.Is(err, storage.ErrNotFound) {
			return investment.Investment{}, err
		}
		from = profile.MoneroAddress
	}
	if from == "" {
		return investment.Investment{}, errors.BadRequest("fromAddress is required when the investor has no wallet")
	}

	res, err := s.wallet.ProcessInvestment(ctx, from, st.MoneroAddress, in.Amount, st.ID)
	if err != nil {
		if stderrors.Is(err, monero.ErrInvalidAddress) {
			return investment.Investment{}, errors.Wrap(err, errors.CodeBadRequest, http.StatusBadRequest, "Invalid Monero address")
		}
		return investment.Investment{}, errors.Upstream("Investment transfer failed", err)
	}

	rec, err := s.store.CreateInvestment(ctx, investment.Investment{
		InvestorID:   investorID,
		StartupID:    st.ID,
		FromAddress:  from,
		ToAddress:    st.MoneroAddress,
		PaymentID:    monero.PaymentID(st.ID),
		AmountAtomic: res.AmountAtomic,
		FeeAtomic:    res.FeeAtomic,
		TxHash:       res.TxHash,
		TxKey:        res.TxKey,
		Status:       investment.StatusPending,
	})
	if err != nil {
		// The transfer is already broadcast; the hash is logged so the record
		// can be restored by hand.
		s.log.WithContext(ctx).WithError(err).
			WithField("tx_hash", res.TxHash).
			WithField("startup_id", st.ID).
			Error("failed to record broadcast investment")
		return investment.Investment{}, errors.Wrap(err, errors.CodeRecordPending, http.StatusAccepted,
			"Investment was sent but could not be recorded").
			WithDetails("txHash", res.TxHash)
	}

	metrics.RecordInvestment(string(investment.StatusPending))
	s.log.WithContext(ctx).
		WithField("investment_id", rec.ID).
		WithField("startup_id", st.ID).
		WithField("tx_hash", rec.TxHash).
		WithField("amount", rec.AmountAtomic.XMR().String()).
		Info("investment submitted")
	return rec, nil
}

// ListForInvestor returns the investor's records with totals. Failed
// investments are listed but excluded from the totals.
func (s *Service) ListForInvestor(ctx context.Context, investorID string) (Portfolio, error) {
	records, err := s.store.ListInvestmentsByInvestor(ctx, investorID)
	if err != nil {
		return Portfolio{}, err
	}
	out := Portfolio{Investments: records, TotalInvested: decimal.Zero}
	if out.Investments == nil {
		out.Investments = []investment.Investment{}
	}
	for _, inv := range records {
		if inv.Status == investment.StatusFailed {
			continue
		}
		out.TotalInvested = out.TotalInvested.Add(inv.AmountAtomic.XMR())
		out.ActiveInvestments++
	}
	return out, nil
}

// History returns the wallet transfers carrying the startup's payment ID.
func (s *Service) History(ctx context.Context, startupID string) ([]monero.Transfer, error) {
	if _, err := s.startups.GetStartup(ctx, startupID); err != nil {
		return nil, startupError(err)
	}
	if s.wallet == nil {
		return nil, errors.Unavailable("Wallet service is not configured")
	}
	transfers, err := s.wallet.InvestmentHistory(ctx, startupID)
	if err != nil {
		return nil, errors.Upstream("Failed to fetch investment history", err)
	}
	return transfers, nil
}

// Reconcile checks every pending investment against the wallet. Transfers
// that reached the confirmation threshold are confirmed and credited to the
// startup; transfers the wallet reports as failed are marked failed. Lookup
// errors are counted and left for the next pass.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	if s.wallet == nil {
		return result, errors.Unavailable("Wallet service is not configured")
	}
	pending, err := s.store.ListPendingInvestments(ctx)
	if err != nil {
		return result, err
	}

	for _, inv := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		entry := s.log.WithContext(ctx).WithField("investment_id", inv.ID).WithField("tx_hash", inv.TxHash)

		tx, err := s.wallet.GetTransferByTxID(ctx, inv.TxHash)
		if err != nil {
			result.Errors++
			entry.WithError(err).Warn("investment lookup failed")
			continue
		}

		switch {
		case tx.Type == TransferTypeFailed:
			inv.Status = investment.StatusFailed
			if _, err := s.store.UpdateInvestment(ctx, inv); err != nil {
				result.Errors++
				entry.WithError(err).Error("failed to mark investment failed")
				continue
			}
			result.Failed++
			metrics.RecordInvestment(string(investment.StatusFailed))
			entry.Warn("investment transfer failed")

		case tx.Confirmations >= s.opts.Confirmations:
			// Credit before confirming so a failed credit stays pending and is
			// retried. Credits are keyed by tx hash, so a retry after a failed
			// status write does not count the money twice.
			if s.funding != nil {
				amount := inv.AmountAtomic.XMR().InexactFloat64()
				if _, err := s.funding.RecordInvestor(ctx, inv.StartupID, inv.InvestorID, amount, fundingTerms(inv.TxHash)); err != nil {
					result.Errors++
					entry.WithError(err).Error("failed to credit startup funding")
					continue
				}
			}
			now := s.now().UTC()
			inv.Status = investment.StatusConfirmed
			inv.Confirmations = tx.Confirmations
			inv.ConfirmedAt = &now
			if _, err := s.store.UpdateInvestment(ctx, inv); err != nil {
				result.Errors++
				entry.WithError(err).Error("failed to confirm investment")
				continue
			}
			result.Confirmed++
			metrics.RecordInvestment(string(investment.StatusConfirmed))
			entry.WithField("confirmations", tx.Confirmations).Info("investment confirmed")

		case tx.Confirmations != inv.Confirmations:
			inv.Confirmations = tx.Confirmations
			if _, err := s.store.UpdateInvestment(ctx, inv); err != nil {
				result.Errors++
				entry.WithError(err).Warn("failed to update confirmations")
			}
		}
	}
	return result, nil
}

// WalletStatus reports balance and chain height.
func (s *Service) WalletStatus(ctx context.Context) (WalletStatus, error) {
	if s.wallet == nil {
		return WalletStatus{}, errors.Unavailable("Wallet service is not configured")
	}
	bal, err := s.wallet.GetBalance(ctx)
	if err != nil {
		return WalletStatus{}, errors.Upstream("Failed to fetch wallet balance", err)
	}
	height, err := s.wallet.GetHeight(ctx)
	if err != nil {
		return WalletStatus{}, errors.Upstream("Failed to fetch wallet height", err)
	}
	return WalletStatus{Balance: bal.Balance, UnlockedBalance: bal.UnlockedBalance, Height: height}, nil
}

// RefreshWallet asks the daemon to scan for new blocks and returns how many
// were fetched.
func (s *Service) RefreshWallet(ctx context.Context) (uint64, error) {
	if s.wallet == nil {
		return 0, errors.Unavailable("Wallet service is not configured")
	}
	fetched, err := s.wallet.Refresh(ctx)
	if err != nil {
		return 0, errors.Upstream("Failed to refresh wallet", err)
	}
	return fetched, nil
}

// fundingTerms identifies the credit for a transfer on the startup's
// investor list.
func fundingTerms(txHash string) string {
	return "monero:" + txHash
}

func startupError(err error) error {
	if stderrors.Is(err, storage.ErrNotFound) {
		return errors.Wrap(err, errors.CodeNotFound, http.StatusNotFound, "Startup not found")
	}
	return err
}
