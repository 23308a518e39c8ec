// Package testutil provides shared test doubles.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Fixed values reported by WalletDaemon.
const (
	DaemonBalance  = 2500000000000
	DaemonUnlocked = 2000000000000
	DaemonHeight   = 3100200
	DaemonFetched  = 4

	// InvalidAddress is the only address validate_address rejects.
	InvalidAddress = "bad-address"
)

// WalletDaemon is a minimal monero-wallet-rpc stand-in. It hands out
// addresses of the form "4"+label and remembers every transfer.
type WalletDaemon struct {
	mu        sync.Mutex
	calls     map[string]int
	addresses int
	transfers []map[string]interface{}
}

func NewWalletDaemon() *WalletDaemon {
	return &WalletDaemon{calls: make(map[string]int)}
}

// StartWalletDaemon serves a WalletDaemon until the test ends and returns it
// with its base URL.
func StartWalletDaemon(t testing.TB) (*WalletDaemon, string) {
	t.Helper()
	d := NewWalletDaemon()
	srv := httptest.NewServer(d)
	t.Cleanup(srv.Close)
	return d, srv.URL
}

func (d *WalletDaemon) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID     uint64                 `json:"id"`
		Method string                 `json:"method"`
		Params map[string]interface{} `json:"params"`
	}
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	d.mu.Lock()
	d.calls[req.Method]++
	var result interface{}
	switch req.Method {
	case "create_address":
		d.addresses++
		result = map[string]interface{}{
			"address":       fmt.Sprintf("4%s", req.Params["label"]),
			"address_index": d.addresses,
		}
	case "validate_address":
		result = map[string]interface{}{"valid": req.Params["address"] != InvalidAddress}
	case "transfer":
		dest := req.Params["destinations"].([]interface{})[0].(map[string]interface{})
		txid := fmt.Sprintf("tx-%d", len(d.transfers)+1)
		d.transfers = append(d.transfers, map[string]interface{}{
			"txid":          txid,
			"payment_id":    req.Params["payment_id"],
			"address":       dest["address"],
			"type":          "out",
			"amount":        dest["amount"],
			"fee":           20000,
			"confirmations": 0,
		})
		result = map[string]interface{}{
			"tx_hash": txid,
			"tx_key":  "key-" + txid,
			"amount":  dest["amount"],
			"fee":     20000,
		}
	case "get_transfers":
		result = map[string]interface{}{"out": d.transfers}
	case "get_balance":
		result = map[string]interface{}{"balance": DaemonBalance, "unlocked_balance": DaemonUnlocked}
	case "get_height":
		result = map[string]interface{}{"height": DaemonHeight}
	case "refresh":
		result = map[string]interface{}{"blocks_fetched": DaemonFetched}
	default:
		result = map[string]interface{}{}
	}
	d.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"jsonrpc": "2.0", "id": req.ID, "result": result})
}

// Count reports how many times method was called.
func (d *WalletDaemon) Count(method string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls[method]
}

// Transfers returns the number of recorded transfers.
func (d *WalletDaemon) Transfers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transfers)
}
