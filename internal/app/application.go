package app

import (
	"context"
	"fmt"

	"github.com/novastack/service_layer/internal/app/jobs"
	"github.com/novastack/service_layer/internal/app/metrics"
	"github.com/novastack/service_layer/internal/app/services/investments"
	"github.com/novastack/service_layer/internal/app/services/startups"
	"github.com/novastack/service_layer/internal/app/services/users"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/app/storage/memory"
	"github.com/novastack/service_layer/internal/app/system"
	"github.com/novastack/service_layer/internal/config"
	"github.com/novastack/service_layer/internal/monero"
	"github.com/novastack/service_layer/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users       storage.UserStore
	Startups    storage.StartupStore
	Investments storage.InvestmentStore
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Users       *users.Service
	Startups    *startups.Service
	Investments *investments.Service
	Wallet      *monero.Client
	Scheduler   *jobs.Scheduler
}

// New builds a fully initialised application with the provided stores. When
// wallet is nil a client is built from cfg.Monero.
func New(stores Stores, wallet *monero.Client, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if cfg == nil {
		cfg = config.Default()
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Startups == nil {
		stores.Startups = mem
	}
	if stores.Investments == nil {
		stores.Investments = mem
	}

	if wallet == nil {
		wallet = monero.NewClient(monero.Config{
			RPCURL:   cfg.Monero.RPCURL,
			Username: cfg.Monero.Username,
			Password: cfg.Monero.Password,
			Timeout:  cfg.Monero.Timeout,
		}, monero.WithLogger(log.Named("monero")), monero.WithObserver(metrics.WalletObserver{}))
	}

	minInvestment, err := cfg.MinInvestment()
	if err != nil {
		return nil, err
	}

	userService := users.New(stores.Users, wallet, log.Named("users"))
	startupService := startups.New(stores.Startups, wallet, log.Named("startups"))
	startupService.AttachMembers(stores.Users)
	investmentService := investments.New(
		stores.Investments,
		stores.Startups,
		stores.Users,
		startupService,
		wallet,
		investments.Options{MinInvestment: minInvestment, Confirmations: cfg.Monero.Confirmations},
		log.Named("investments"),
	)

	manager := system.NewManager()
	scheduler := jobs.NewScheduler(log.Named("jobs"))
	if cfg.Jobs.Enabled {
		for _, job := range []jobs.Job{
			jobs.NewWalletRefreshJob(cfg.Jobs.WalletRefresh, investmentService, log),
			jobs.NewReconcileJob(cfg.Jobs.ReconcileTxs, investmentService, log),
		} {
			if err := scheduler.Register(job); err != nil {
				return nil, fmt.Errorf("register %s job: %w", job.Name, err)
			}
		}
		if err := manager.Register(scheduler); err != nil {
			return nil, fmt.Errorf("register %s: %w", scheduler.Name(), err)
		}
	} else {
		log.Warn("background jobs disabled; wallet refresh and reconciliation will not run")
	}

	return &Application{
		manager:     manager,
		log:         log,
		Users:       userService,
		Startups:    startupService,
		Investments: investmentService,
		Wallet:      wallet,
		Scheduler:   scheduler,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Services lists the registered lifecycle services in start order.
func (a *Application) Services() []string {
	return a.manager.Services()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	a.log.WithField("services", a.manager.Services()).Info("starting application")
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
