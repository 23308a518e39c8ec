package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novastack/service_layer/internal/app/system"
	"github.com/novastack/service_layer/internal/config"
	"github.com/novastack/service_layer/internal/monero"
)

func TestNew_DefaultsToMemoryStores(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs.Enabled = false

	application, err := New(Stores{}, monero.NewClient(monero.Config{}), cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, application.Users)
	require.NotNil(t, application.Startups)
	require.NotNil(t, application.Investments)
	assert.Empty(t, application.Services())
}

func TestNew_RegistersScheduler(t *testing.T) {
	application, err := New(Stores{}, nil, config.Default(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"jobs-scheduler"}, application.Services())
	require.NotNil(t, application.Wallet)
	assert.Equal(t, "http://localhost:18083/json_rpc", application.Wallet.Endpoint())
	assert.Error(t, application.Scheduler.RunNow(context.Background(), "unknown"))
}

func TestNew_RejectsBadSchedule(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs.ReconcileTxs = "every now and then"

	_, err := New(Stores{}, nil, cfg, nil)
	assert.Error(t, err)
}

func TestNew_RejectsBadMinimum(t *testing.T) {
	cfg := config.Default()
	cfg.Monero.MinInvestment = "lots"

	_, err := New(Stores{}, nil, cfg, nil)
	assert.Error(t, err)
}

func TestApplication_Lifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs.Enabled = false
	application, err := New(Stores{}, nil, cfg, nil)
	require.NoError(t, err)

	var events []string
	require.NoError(t, application.Attach(system.FuncService{
		ServiceName: "probe",
		StartFunc:   func(context.Context) error { events = append(events, "start"); return nil },
		StopFunc:    func(context.Context) error { events = append(events, "stop"); return nil },
	}))

	ctx := context.Background()
	require.NoError(t, application.Start(ctx))
	require.NoError(t, application.Stop(ctx))
	assert.Equal(t, []string{"start", "stop"}, events)
}
