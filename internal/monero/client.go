// Package monero provides a monero-wallet-rpc client for NovaStack investments.
package monero

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"

	"github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/pkg/logger"
)

const (
	DefaultRPCURL   = "http://localhost:18083"
	DefaultUsername = "novastack"
	DefaultPassword = "wallet_password"
	DefaultTimeout  = 30 * time.Second

	maxResponseBytes = 8 << 20
)

var (
	// ErrNoDestinations is returned when a transfer has no recipients.
	ErrNoDestinations = errors.New("transfer requires at least one destination")
	// ErrNoAddress is returned when get_address yields no entries.
	ErrNoAddress = errors.New("wallet returned no addresses")
)

// Observer receives one callback per RPC round trip.
type Observer interface {
	ObserveWalletRPC(method string, err error, duration time.Duration)
}

// Config holds client configuration.
type Config struct {
	RPCURL   string
	Username string
	Password string
	Timeout  time.Duration
}

// Client talks JSON-RPC to a monero-wallet-rpc daemon. It keeps no state
// besides the request counter.
type Client struct {
	rpcURL     string
	username   string
	password   string
	httpClient *http.Client
	rpcID      uint64
	log        *logger.Logger
	observer   Observer
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger used for call failures.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithObserver registers a metrics observer.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// NewClient creates a wallet client. Empty config fields take the defaults.
func NewClient(cfg Config, opts ...Option) *Client {
	if strings.TrimSpace(cfg.RPCURL) == "" {
		cfg.RPCURL = DefaultRPCURL
	}
	if cfg.Username == "" && cfg.Password == "" {
		cfg.Username = DefaultUsername
		cfg.Password = DefaultPassword
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		rpcURL:   strings.TrimRight(cfg.RPCURL, "/") + "/json_rpc",
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.NewDefault("monero"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the JSON-RPC URL the client posts to.
func (c *Client) Endpoint() string {
	return c.rpcURL
}

// =============================================================================
// Core RPC
// =============================================================================

// Call issues one JSON-RPC request and returns the raw result.
func (c *Client) Call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.call(ctx, method, params)
	if c.observer != nil {
		c.observer.ObserveWalletRPC(method, err, time.Since(start))
	}
	if err != nil {
		c.log.WithContext(ctx).WithError(err).WithField("method", method).Error("Monero RPC call failed")
		return nil, err
	}
	return result, nil
}

func (c *Client) call(ctx context.Context, method string, params interface{}) (json.RawMessage, error) {
	if params == nil {
		params = struct{}{}
	}
	req := RPCRequest{
		JSONRPC: "2.0",
		ID:      atomic.AddUint64(&c.rpcID, 1),
		Method:  method,
		Params:  params,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.username != "" || c.password != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: execute request: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", method, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(respBody))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%s: http %d: %s", method, resp.StatusCode, msg)
	}

	var rpcResp RPCResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return nil, fmt.Errorf("%s: unmarshal response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	return rpcResp.Result, nil
}

func (c *Client) callInto(ctx context.Context, method string, params, out interface{}) error {
	result, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("%s: decode result: %w", method, err)
	}
	return nil
}

// =============================================================================
// Wallet Methods
// =============================================================================

// GetBalance returns the wallet balance in XMR.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var res getBalanceResult
	if err := c.callInto(ctx, "get_balance", nil, &res); err != nil {
		return nil, err
	}
	return &Balance{
		Balance:         res.Balance.XMR(),
		UnlockedBalance: res.UnlockedBalance.XMR(),
	}, nil
}

// GetAddress returns the address at index within account.
func (c *Client) GetAddress(ctx context.Context, account, index uint32) (*Address, error) {
	var res getAddressResult
	params := getAddressParams{AccountIndex: account, AddressIndex: []uint32{index}}
	if err := c.callInto(ctx, "get_address", params, &res); err != nil {
		return nil, err
	}
	if len(res.Addresses) == 0 {
		return nil, ErrNoAddress
	}
	return &Address{
		Address:      res.Address,
		AddressIndex: res.Addresses[0].AddressIndex,
	}, nil
}

// CreateAddress creates a labelled subaddress in account.
func (c *Client) CreateAddress(ctx context.Context, account uint32, label string) (*Address, error) {
	var res createAddressResult
	params := createAddressParams{AccountIndex: account, Label: label}
	if err := c.callInto(ctx, "create_address", params, &res); err != nil {
		return nil, err
	}
	return &Address{Address: res.Address, AddressIndex: res.AddressIndex}, nil
}

// Transfer sends XMR to the request's destinations. Amounts are floored to
// whole atomic units.
func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if len(req.Destinations) == 0 {
		return nil, ErrNoDestinations
	}

	dests := make([]rpcDestination, 0, len(req.Destinations))
	for _, d := range req.Destinations {
		amount, err := FromXMR(d.Amount)
		if err != nil {
			return nil, fmt.Errorf("destination %s: %w", d.Address, err)
		}
		dests = append(dests, rpcDestination{Amount: amount, Address: d.Address})
	}

	params := transferParams{
		Destinations: dests,
		Priority:     req.Priority,
		Mixin:        req.Mixin,
		GetTxKey:     true,
		GetTxHex:     true,
		PaymentID:    req.PaymentID,
	}
	if params.Priority == 0 {
		params.Priority = DefaultPriority
	}
	if params.Mixin == 0 {
		params.Mixin = DefaultMixin
	}

	var res transferResult
	if err := c.callInto(ctx, "transfer", params, &res); err != nil {
		return nil, err
	}
	return &TransferResult{
		TxHash:       res.TxHash,
		TxKey:        res.TxKey,
		Amount:       res.Amount.XMR(),
		Fee:          res.Fee.XMR(),
		AmountAtomic: res.Amount,
		FeeAtomic:    res.Fee,
		TxBlob:       res.TxBlob,
	}, nil
}

// GetTransfers returns the selected transfer buckets merged in the order
// in, out, pending, failed, pool.
func (c *Client) GetTransfers(ctx context.Context, q TransferQuery) ([]Transfer, error) {
	params := getTransfersParams{In: q.In, Out: q.Out, Pending: q.Pending, Failed: q.Failed, Pool: q.Pool}
	result, err := c.Call(ctx, "get_transfers", params)
	if err != nil {
		return nil, err
	}

	var transfers []Transfer
	for _, bucket := range transferBuckets {
		entries := gjson.GetBytes(result, bucket)
		if !entries.IsArray() {
			continue
		}
		var raw []rpcTransfer
		if err := json.Unmarshal([]byte(entries.Raw), &raw); err != nil {
			return nil, fmt.Errorf("get_transfers: decode %s bucket: %w", bucket, err)
		}
		for _, t := range raw {
			transfers = append(transfers, t.toTransfer())
		}
	}
	return transfers, nil
}

// GetTransferByTxID returns a single transfer.
func (c *Client) GetTransferByTxID(ctx context.Context, txid string) (*Transfer, error) {
	var res getTransferByTxIDResult
	if err := c.callInto(ctx, "get_transfer_by_txid", map[string]string{"txid": txid}, &res); err != nil {
		return nil, err
	}
	t := res.Transfer.toTransfer()
	return &t, nil
}

// ValidateAddress reports whether address is a valid Monero address. Any
// failure, including an unreachable wallet, yields false.
func (c *Client) ValidateAddress(ctx context.Context, address string) bool {
	var res validateAddressResult
	if err := c.callInto(ctx, "validate_address", map[string]string{"address": address}, &res); err != nil {
		return false
	}
	return res.Valid
}

// GetHeight returns the wallet's current block height.
func (c *Client) GetHeight(ctx context.Context) (uint64, error) {
	var res getHeightResult
	if err := c.callInto(ctx, "get_height", nil, &res); err != nil {
		return 0, err
	}
	return res.Height, nil
}

// RescanBlockchain rescans the chain from the genesis block.
func (c *Client) RescanBlockchain(ctx context.Context) error {
	return c.callInto(ctx, "rescan_blockchain", nil, nil)
}

// Refresh syncs the wallet and returns the number of blocks fetched.
func (c *Client) Refresh(ctx context.Context) (uint64, error) {
	var res refreshResult
	if err := c.callInto(ctx, "refresh", nil, &res); err != nil {
		return 0, err
	}
	return res.BlocksFetched, nil
}

// StopWallet saves the wallet and stops the daemon.
func (c *Client) StopWallet(ctx context.Context) error {
	return c.callInto(ctx, "stop_wallet", nil, nil)
}
