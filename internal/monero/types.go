package monero

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// RPCRequest is a JSON-RPC 2.0 request envelope.
type RPCRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

// RPCResponse is a JSON-RPC 2.0 response envelope.
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is an error object returned by the wallet daemon.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("Monero RPC Error: %s", e.Message)
}

// Balance is the wallet balance in XMR.
type Balance struct {
	Balance         decimal.Decimal `json:"balance"`
	UnlockedBalance decimal.Decimal `json:"unlockedBalance"`
}

// Address is a wallet (sub)address and its index within the account.
type Address struct {
	Address      string `json:"address"`
	AddressIndex uint32 `json:"addressIndex"`
}

// Destination is one recipient of a transfer.
type Destination struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
}

// TransferRequest describes an outgoing transfer. Zero Priority and Mixin
// select the defaults.
type TransferRequest struct {
	Destinations []Destination
	PaymentID    string
	Priority     uint32
	Mixin        uint32
}

const (
	DefaultPriority uint32 = 1
	DefaultMixin    uint32 = 10
)

// TransferResult is the wallet's reply to a submitted transfer.
type TransferResult struct {
	TxHash string          `json:"txHash"`
	TxKey  string          `json:"txKey"`
	Amount decimal.Decimal `json:"amount"`
	Fee    decimal.Decimal `json:"fee"`

	AmountAtomic Atomic `json:"amountAtomic"`
	FeeAtomic    Atomic `json:"feeAtomic"`
	TxBlob       string `json:"-"`
}

// SubaddressIndex locates a subaddress inside the wallet.
type SubaddressIndex struct {
	Major uint32 `json:"major"`
	Minor uint32 `json:"minor"`
}

// Transfer is one entry of the wallet's transfer history, amounts in XMR.
type Transfer struct {
	TxID            string          `json:"txid"`
	PaymentID       string          `json:"paymentId"`
	Address         string          `json:"address"`
	Type            string          `json:"type"`
	Height          uint64          `json:"height"`
	Timestamp       uint64          `json:"timestamp"`
	Confirmations   uint64          `json:"confirmations"`
	UnlockTime      uint64          `json:"unlockTime"`
	Locked          bool            `json:"locked"`
	DoubleSpendSeen bool            `json:"doubleSpendSeen"`
	Note            string          `json:"note,omitempty"`
	SubaddrIndex    SubaddressIndex `json:"subaddrIndex"`
	Amount          decimal.Decimal `json:"amount"`
	Fee             decimal.Decimal `json:"fee"`
	AmountAtomic    Atomic          `json:"amountAtomic"`
	FeeAtomic       Atomic          `json:"feeAtomic"`
}

// TransferQuery selects which transfer buckets get_transfers returns.
type TransferQuery struct {
	In      bool
	Out     bool
	Pending bool
	Failed  bool
	Pool    bool
}

// DefaultTransferQuery returns incoming, outgoing, pending and pool transfers.
func DefaultTransferQuery() TransferQuery {
	return TransferQuery{In: true, Out: true, Pending: true, Failed: false, Pool: true}
}

// transferBuckets is the order in which get_transfers buckets are merged.
var transferBuckets = []string{"in", "out", "pending", "failed", "pool"}

// --- wire formats -----------------------------------------------------------

type getBalanceResult struct {
	Balance         Atomic `json:"balance"`
	UnlockedBalance Atomic `json:"unlocked_balance"`
}

type getAddressParams struct {
	AccountIndex uint32   `json:"account_index"`
	AddressIndex []uint32 `json:"address_index"`
}

type getAddressResult struct {
	Address   string `json:"address"`
	Addresses []struct {
		Address      string `json:"address"`
		AddressIndex uint32 `json:"address_index"`
		Label        string `json:"label"`
		Used         bool   `json:"used"`
	} `json:"addresses"`
}

type createAddressParams struct {
	AccountIndex uint32 `json:"account_index"`
	Label        string `json:"label,omitempty"`
}

type createAddressResult struct {
	Address      string `json:"address"`
	AddressIndex uint32 `json:"address_index"`
}

type rpcDestination struct {
	Amount  Atomic `json:"amount"`
	Address string `json:"address"`
}

type transferParams struct {
	Destinations []rpcDestination `json:"destinations"`
	Priority     uint32           `json:"priority"`
	Mixin        uint32           `json:"mixin"`
	GetTxKey     bool             `json:"get_tx_key"`
	GetTxHex     bool             `json:"get_tx_hex"`
	PaymentID    string           `json:"payment_id,omitempty"`
}

type transferResult struct {
	TxHash string `json:"tx_hash"`
	TxKey  string `json:"tx_key"`
	Amount Atomic `json:"amount"`
	Fee    Atomic `json:"fee"`
	TxBlob string `json:"tx_blob"`
}

type getTransfersParams struct {
	In      bool `json:"in"`
	Out     bool `json:"out"`
	Pending bool `json:"pending"`
	Failed  bool `json:"failed"`
	Pool    bool `json:"pool"`
}

type rpcTransfer struct {
	TxID            string          `json:"txid"`
	PaymentID       string          `json:"payment_id"`
	Address         string          `json:"address"`
	Type            string          `json:"type"`
	Height          uint64          `json:"height"`
	Timestamp       uint64          `json:"timestamp"`
	Confirmations   uint64          `json:"confirmations"`
	UnlockTime      uint64          `json:"unlock_time"`
	Locked          bool            `json:"locked"`
	DoubleSpendSeen bool            `json:"double_spend_seen"`
	Note            string          `json:"note"`
	SubaddrIndex    SubaddressIndex `json:"subaddr_index"`
	Amount          Atomic          `json:"amount"`
	Fee             Atomic          `json:"fee"`
}

func (t rpcTransfer) toTransfer() Transfer {
	return Transfer{
		TxID:            t.TxID,
		PaymentID:       t.PaymentID,
		Address:         t.Address,
		Type:            t.Type,
		Height:          t.Height,
		Timestamp:       t.Timestamp,
		Confirmations:   t.Confirmations,
		UnlockTime:      t.UnlockTime,
		Locked:          t.Locked,
		DoubleSpendSeen: t.DoubleSpendSeen,
		Note:            t.Note,
		SubaddrIndex:    t.SubaddrIndex,
		Amount:          t.Amount.XMR(),
		Fee:             t.Fee.XMR(),
		AmountAtomic:    t.Amount,
		FeeAtomic:       t.Fee,
	}
}

type getTransferByTxIDResult struct {
	Transfer rpcTransfer `json:"transfer"`
}

type validateAddressResult struct {
	Valid            bool   `json:"valid"`
	Integrated       bool   `json:"integrated"`
	Subaddress       bool   `json:"subaddress"`
	NetType          string `json:"nettype"`
	OpenAliasAddress string `json:"openalias_address"`
}

type getHeightResult struct {
	Height uint64 `json:"height"`
}

type refreshResult struct {
	BlocksFetched uint64 `json:"blocks_fetched"`
	ReceivedMoney bool   `json:"received_money"`
}
