package commands

import (
	"bytes"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/novastack/service_layer/internal/middleware"
	"github.com/novastack/service_layer/internal/monero"
	"github.com/novastack/service_layer/pkg/testutil"
)

const testSecret = "cli-test-secret"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LOG_OUTPUT", "stderr")

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestWalletPaymentID(t *testing.T) {
	out, err := run(t, "wallet", "payment-id", "startup-42")
	require.NoError(t, err)
	assert.Equal(t, monero.PaymentID("startup-42"), out)
	assert.Len(t, out, monero.PaymentIDLength)
}

func TestWalletPaymentID_RequiresArgument(t *testing.T) {
	_, err := run(t, "wallet", "payment-id")
	assert.Error(t, err)
}

func TestWalletQueries(t *testing.T) {
	daemon, url := testutil.StartWalletDaemon(t)
	t.Setenv("MONERO_WALLET_RPC_URL", url)

	out, err := run(t, "wallet", "height")
	require.NoError(t, err)
	assert.Equal(t, "3100200", out)

	out, err = run(t, "wallet", "balance")
	require.NoError(t, err)
	assert.Contains(t, out, `"balance": "2.5"`)
	assert.Contains(t, out, `"unlockedBalance": "2"`)

	out, err = run(t, "wallet", "validate", testutil.InvalidAddress)
	require.NoError(t, err)
	assert.Equal(t, "false", out)

	out, err = run(t, "wallet", "history", "startup-1")
	require.NoError(t, err)
	assert.Equal(t, "[]", out)

	assert.Equal(t, 1, daemon.Count("get_balance"))
	assert.Equal(t, 1, daemon.Count("get_transfers"))
}

func TestToken(t *testing.T) {
	out, err := run(t, "token", "user-7", "--role", "admin", "--ttl", "1h")
	require.NoError(t, err)

	claims := &middleware.Claims{}
	parsed, err := jwt.ParseWithClaims(out, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-7", claims.UserID)
	assert.Equal(t, "admin", claims.Role)
}

func TestMigrate_RequiresDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := run(t, "migrate", "version")
	assert.ErrorIs(t, err, errNoDatabase)
}

func TestRoot_RequiresSecret(t *testing.T) {
	cmd := NewRootCommand()
	t.Setenv("JWT_SECRET", "")
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"wallet", "payment-id", "x"})
	assert.Error(t, cmd.Execute())
}
