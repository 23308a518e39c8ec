package monero

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	ID     uint64
	Method string
	Params map[string]interface{}
	User   string
	Pass   string
}

// fakeWallet answers JSON-RPC calls from a per-method table.
type fakeWallet struct {
	mu      sync.Mutex
	calls   []recordedCall
	results map[string]interface{}
	errors  map[string]*RPCError
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		results: make(map[string]interface{}),
		errors:  make(map[string]*RPCError),
	}
}

func (f *fakeWallet) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/json_rpc" {
		http.NotFound(w, r)
		return
	}
	var req struct {
		ID     uint64                 `json:"id"`
		Method string                 `json:"method"`
		Params map[string]interface{} `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, pass, _ := r.BasicAuth()

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{ID: req.ID, Method: req.Method, Params: req.Params, User: user, Pass: pass})
	result, hasResult := f.results[req.Method]
	rpcErr := f.errors[req.Method]
	f.mu.Unlock()

	resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
	switch {
	case rpcErr != nil:
		resp["error"] = rpcErr
	case hasResult:
		resp["result"] = result
	default:
		resp["result"] = map[string]interface{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (f *fakeWallet) Calls() []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedCall(nil), f.calls...)
}

func newTestClient(t *testing.T, wallet *fakeWallet) *Client {
	t.Helper()
	srv := httptest.NewServer(wallet)
	t.Cleanup(srv.Close)
	return NewClient(Config{RPCURL: srv.URL, Username: "novastack", Password: "secret"})
}

func TestCall_SendsNumberedAuthenticatedRequests(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["get_height"] = map[string]interface{}{"height": 3100200}
	client := newTestClient(t, wallet)

	for i := 0; i < 3; i++ {
		height, err := client.GetHeight(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(3100200), height)
	}

	calls := wallet.Calls()
	require.Len(t, calls, 3)
	for i, call := range calls {
		assert.Equal(t, uint64(i+1), call.ID)
		assert.Equal(t, "get_height", call.Method)
		assert.Equal(t, "novastack", call.User)
		assert.Equal(t, "secret", call.Pass)
	}
}

func TestCall_RPCError(t *testing.T) {
	wallet := newFakeWallet()
	wallet.errors["get_balance"] = &RPCError{Code: -13, Message: "No wallet file"}
	client := newTestClient(t, wallet)

	_, err := client.GetBalance(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Monero RPC Error: No wallet file", err.Error())

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -13, rpcErr.Code)
}

func TestCall_HTTPStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(Config{RPCURL: srv.URL})
	_, err := client.GetHeight(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{})
	assert.Equal(t, "http://localhost:18083/json_rpc", client.Endpoint())
	assert.Equal(t, DefaultUsername, client.username)
	assert.Equal(t, DefaultPassword, client.password)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
}

func TestGetBalance_ConvertsToXMR(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["get_balance"] = map[string]interface{}{
		"balance":          uint64(2_500_000_000_000),
		"unlocked_balance": uint64(1_000_000_000),
	}
	client := newTestClient(t, wallet)

	bal, err := client.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2.5", bal.Balance.String())
	assert.Equal(t, "0.001", bal.UnlockedBalance.String())
}

func TestGetAddress_UsesFirstEntry(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["get_address"] = map[string]interface{}{
		"address": "44primary",
		"addresses": []map[string]interface{}{
			{"address": "8Bsub", "address_index": 4},
		},
	}
	client := newTestClient(t, wallet)

	addr, err := client.GetAddress(context.Background(), 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "44primary", addr.Address)
	assert.Equal(t, uint32(4), addr.AddressIndex)

	call := wallet.Calls()[0]
	assert.Equal(t, float64(0), call.Params["account_index"])
	assert.Equal(t, []interface{}{float64(4)}, call.Params["address_index"])
}

func TestGetAddress_NoEntries(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["get_address"] = map[string]interface{}{"address": "44primary"}
	client := newTestClient(t, wallet)

	_, err := client.GetAddress(context.Background(), 0, 0)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestTransfer_FloorsAmountsAndAppliesDefaults(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["transfer"] = map[string]interface{}{
		"tx_hash": "abc123",
		"tx_key":  "key456",
		"amount":  uint64(1_234_567_890_123),
		"fee":     uint64(30_000_000),
	}
	client := newTestClient(t, wallet)

	res, err := client.Transfer(context.Background(), TransferRequest{
		Destinations: []Destination{{Address: "8Bdest", Amount: decimal.RequireFromString("1.2345678901239")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "abc123", res.TxHash)
	assert.Equal(t, "key456", res.TxKey)
	assert.Equal(t, "1.234567890123", res.Amount.String())
	assert.Equal(t, "0.00003", res.Fee.String())

	params := wallet.Calls()[0].Params
	dests := params["destinations"].([]interface{})
	require.Len(t, dests, 1)
	dest := dests[0].(map[string]interface{})
	assert.Equal(t, float64(1_234_567_890_123), dest["amount"])
	assert.Equal(t, "8Bdest", dest["address"])
	assert.Equal(t, float64(1), params["priority"])
	assert.Equal(t, float64(10), params["mixin"])
	assert.Equal(t, true, params["get_tx_key"])
	assert.Equal(t, true, params["get_tx_hex"])
	_, hasPaymentID := params["payment_id"]
	assert.False(t, hasPaymentID)
}

func TestTransfer_PassesPaymentIDAndOptions(t *testing.T) {
	wallet := newFakeWallet()
	client := newTestClient(t, wallet)

	_, err := client.Transfer(context.Background(), TransferRequest{
		Destinations: []Destination{{Address: "8Bdest", Amount: decimal.NewFromInt(1)}},
		PaymentID:    "0123456789abcdef",
		Priority:     3,
		Mixin:        15,
	})
	require.NoError(t, err)

	params := wallet.Calls()[0].Params
	assert.Equal(t, "0123456789abcdef", params["payment_id"])
	assert.Equal(t, float64(3), params["priority"])
	assert.Equal(t, float64(15), params["mixin"])
}

func TestTransfer_RejectsEmptyAndNegative(t *testing.T) {
	wallet := newFakeWallet()
	client := newTestClient(t, wallet)

	_, err := client.Transfer(context.Background(), TransferRequest{})
	assert.ErrorIs(t, err, ErrNoDestinations)

	_, err = client.Transfer(context.Background(), TransferRequest{
		Destinations: []Destination{{Address: "8Bdest", Amount: decimal.NewFromInt(-1)}},
	})
	assert.Error(t, err)
	assert.Empty(t, wallet.Calls())
}

func TestGetTransfers_MergesBucketsInOrder(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["get_transfers"] = map[string]interface{}{
		"pool":    []map[string]interface{}{{"txid": "pool1", "type": "pool", "amount": 1}},
		"out":     []map[string]interface{}{{"txid": "out1", "type": "out", "amount": 2_000_000_000_000, "fee": 10}},
		"in":      []map[string]interface{}{{"txid": "in1", "type": "in", "amount": 500_000_000_000, "payment_id": "aa"}, {"txid": "in2", "type": "in", "amount": 3}},
		"pending": []map[string]interface{}{{"txid": "pend1", "type": "pending", "amount": 4}},
	}
	client := newTestClient(t, wallet)

	transfers, err := client.GetTransfers(context.Background(), DefaultTransferQuery())
	require.NoError(t, err)
	require.Len(t, transfers, 5)

	ids := make([]string, 0, len(transfers))
	for _, tr := range transfers {
		ids = append(ids, tr.TxID)
	}
	assert.Equal(t, []string{"in1", "in2", "out1", "pend1", "pool1"}, ids)
	assert.Equal(t, "0.5", transfers[0].Amount.String())
	assert.True(t, transfers[0].Fee.IsZero())
	assert.Equal(t, "aa", transfers[0].PaymentID)
	assert.Equal(t, "2", transfers[2].Amount.String())
	assert.Equal(t, Atomic(10), transfers[2].FeeAtomic)

	params := wallet.Calls()[0].Params
	assert.Equal(t, true, params["in"])
	assert.Equal(t, true, params["out"])
	assert.Equal(t, true, params["pending"])
	assert.Equal(t, false, params["failed"])
	assert.Equal(t, true, params["pool"])
}

func TestGetTransfers_EmptyResult(t *testing.T) {
	wallet := newFakeWallet()
	client := newTestClient(t, wallet)

	transfers, err := client.GetTransfers(context.Background(), DefaultTransferQuery())
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestGetTransferByTxID(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["get_transfer_by_txid"] = map[string]interface{}{
		"transfer": map[string]interface{}{"txid": "tx9", "type": "out", "confirmations": 12, "amount": 1_000_000_000_000},
	}
	client := newTestClient(t, wallet)

	tr, err := client.GetTransferByTxID(context.Background(), "tx9")
	require.NoError(t, err)
	assert.Equal(t, "tx9", tr.TxID)
	assert.Equal(t, uint64(12), tr.Confirmations)
	assert.Equal(t, "1", tr.Amount.String())
	assert.Equal(t, "tx9", wallet.Calls()[0].Params["txid"])
}

func TestValidateAddress(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["validate_address"] = map[string]interface{}{"valid": true}
	client := newTestClient(t, wallet)
	assert.True(t, client.ValidateAddress(context.Background(), "44good"))

	wallet.errors["validate_address"] = &RPCError{Code: -1, Message: "boom"}
	assert.False(t, client.ValidateAddress(context.Background(), "44good"))

	unreachable := NewClient(Config{RPCURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	assert.False(t, unreachable.ValidateAddress(context.Background(), "44good"))
}

func TestRefreshRescanStop(t *testing.T) {
	wallet := newFakeWallet()
	wallet.results["refresh"] = map[string]interface{}{"blocks_fetched": 24, "received_money": true}
	client := newTestClient(t, wallet)

	fetched, err := client.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(24), fetched)
	require.NoError(t, client.RescanBlockchain(context.Background()))
	require.NoError(t, client.StopWallet(context.Background()))

	calls := wallet.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "rescan_blockchain", calls[1].Method)
	assert.Equal(t, "stop_wallet", calls[2].Method)
}

type countingObserver struct {
	mu      sync.Mutex
	methods []string
	errs    int
}

func (o *countingObserver) ObserveWalletRPC(method string, err error, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.methods = append(o.methods, method)
	if err != nil {
		o.errs++
	}
}

func TestObserver_SeesEveryCall(t *testing.T) {
	wallet := newFakeWallet()
	wallet.errors["stop_wallet"] = &RPCError{Code: -1, Message: "busy"}
	srv := httptest.NewServer(wallet)
	defer srv.Close()

	obs := &countingObserver{}
	client := NewClient(Config{RPCURL: srv.URL}, WithObserver(obs))
	_, _ = client.GetHeight(context.Background())
	_ = client.StopWallet(context.Background())

	assert.Equal(t, []string{"get_height", "stop_wallet"}, obs.methods)
	assert.Equal(t, 1, obs.errs)
}
