package jobs

import (
	"context"

	"github.com/novastack/service_layer/internal/app/services/investments"
	"github.com/novastack/service_layer/pkg/logger"
)

const (
	WalletRefreshJob = "wallet_refresh"
	ReconcileJob     = "investment_reconcile"
)

// WalletRefresher triggers a wallet rescan of new blocks.
type WalletRefresher interface {
	RefreshWallet(ctx context.Context) (uint64, error)
}

// Reconciler settles pending investments.
type Reconciler interface {
	Reconcile(ctx context.Context) (investments.ReconcileResult, error)
}

// NewWalletRefreshJob builds the job that keeps the wallet in sync with the
// chain.
func NewWalletRefreshJob(schedule string, svc WalletRefresher, log *logger.Logger) Job {
	return Job{
		Name:     WalletRefreshJob,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			fetched, err := svc.RefreshWallet(ctx)
			if err != nil {
				return err
			}
			if fetched > 0 {
				log.WithContext(ctx).WithField("blocks_fetched", fetched).Info("wallet refreshed")
			}
			return nil
		},
	}
}

// NewReconcileJob builds the job that confirms or fails pending investments.
func NewReconcileJob(schedule string, svc Reconciler, log *logger.Logger) Job {
	return Job{
		Name:     ReconcileJob,
		Schedule: schedule,
		Run: func(ctx context.Context) error {
			res, err := svc.Reconcile(ctx)
			if err != nil {
				return err
			}
			if res.Checked > 0 {
				log.WithContext(ctx).WithFields(map[string]interface{}{
					"checked":   res.Checked,
					"confirmed": res.Confirmed,
					"failed":    res.Failed,
					"errors":    res.Errors,
				}).Info("investments reconciled")
			}
			return nil
		},
	}
}
