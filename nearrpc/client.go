// Package nearrpc is a minimal JSON-RPC client for the ledger node API.
//
// It covers only what the driver needs: access key and account views,
// synchronous transaction submission and transaction status lookups. All
// calls use positional parameters so the generic go-ethereum JSON-RPC client
// can carry them.
package nearrpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/transaction"
)

// Client talks to one RPC endpoint.
type Client struct {
	rpc      *rpc.Client
	endpoint string
	log      *slog.Logger
}

// Dial connects to endpoint. There is no per-call deadline beyond what ctx
// carries; transaction submission blocks until the node answers.
func Dial(ctx context.Context, endpoint string, log *slog.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: 0}
	c, err := rpc.DialOptions(ctx, endpoint, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("could not dial RPC %s: %w", endpoint, err)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{rpc: c, endpoint: endpoint, log: log}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() {
	c.rpc.Close()
}

// Endpoint returns the RPC URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

type queryResult struct {
	BlockHash   string `json:"block_hash"`
	BlockHeight uint64 `json:"block_height"`
	// Error is set by the legacy path-based query form instead of a JSON-RPC error.
	Error string `json:"error,omitempty"`
}

type accessKeyResult struct {
	queryResult
	Nonce      uint64          `json:"nonce"`
	Permission json.RawMessage `json:"permission"`
}

type accountResult struct {
	queryResult
	Amount       string `json:"amount"`
	Locked       string `json:"locked"`
	CodeHash     string `json:"code_hash"`
	StorageUsage uint64 `json:"storage_usage"`
}

// ViewAccessKey returns the nonce and a recent block hash for a signing key.
func (c *Client) ViewAccessKey(ctx context.Context, accountID interfaces.AccountID, pk interfaces.PublicKey) (*interfaces.AccessKeyView, error) {
	var res accessKeyResult
	path := fmt.Sprintf("access_key/%s/%s", accountID, pk)
	if err := c.query(ctx, path, &res, &res.queryResult); err != nil {
		return nil, err
	}

	blockHash, err := transaction.ParseBlockHash(res.BlockHash)
	if err != nil {
		return nil, err
	}

	var fullAccess string
	_ = json.Unmarshal(res.Permission, &fullAccess)

	return &interfaces.AccessKeyView{
		Nonce:       res.Nonce,
		BlockHash:   blockHash,
		BlockHeight: res.BlockHeight,
		FullAccess:  fullAccess == "FullAccess",
	}, nil
}

// ViewAccount returns the account's balance and code hash.
func (c *Client) ViewAccount(ctx context.Context, accountID interfaces.AccountID) (*interfaces.AccountView, error) {
	var res accountResult
	if err := c.query(ctx, "account/"+string(accountID), &res, &res.queryResult); err != nil {
		return nil, err
	}

	amount, ok := new(big.Int).SetString(res.Amount, 10)
	if !ok {
		return nil, fmt.Errorf("invalid account amount %q", res.Amount)
	}
	locked, ok := new(big.Int).SetString(res.Locked, 10)
	if !ok {
		locked = new(big.Int)
	}

	return &interfaces.AccountView{
		Amount:       amount,
		Locked:       locked,
		CodeHash:     res.CodeHash,
		StorageUsage: res.StorageUsage,
		BlockHeight:  res.BlockHeight,
	}, nil
}

func (c *Client) query(ctx context.Context, path string, result any, meta *queryResult) error {
	start := time.Now()
	err := c.rpc.CallContext(ctx, result, "query", path, "")
	c.log.Debug("RPC query", "path", path, "err", err, "duration", time.Since(start))
	if err != nil {
		return classifyError(err)
	}
	if meta.Error != "" {
		return classifyMessage(meta.Error)
	}
	return nil
}

// BroadcastTxCommit submits a signed transaction and waits for its final outcome.
func (c *Client) BroadcastTxCommit(ctx context.Context, stx *transaction.SignedTransaction) (*interfaces.TransactionOutcome, error) {
	encoded, err := stx.Base64()
	if err != nil {
		return nil, fmt.Errorf("could not encode transaction: %w", err)
	}

	start := time.Now()
	var res FinalExecutionOutcome
	err = c.rpc.CallContext(ctx, &res, "broadcast_tx_commit", encoded)
	c.log.Debug("RPC broadcast_tx_commit",
		"txHash", stx.HashString(),
		"err", err,
		"duration", time.Since(start))
	if err != nil {
		return nil, classifyError(err)
	}

	outcome, err := res.Outcome()
	if err != nil {
		return nil, err
	}
	if outcome.TxHash == "" {
		outcome.TxHash = stx.HashString()
	}
	if outcome.SignerID == "" {
		outcome.SignerID = stx.Transaction.SignerID
	}
	return outcome, nil
}

// TxStatus looks up the outcome of a previously submitted transaction.
func (c *Client) TxStatus(ctx context.Context, txHash string, senderID interfaces.AccountID) (*interfaces.TransactionOutcome, error) {
	var res FinalExecutionOutcome
	if err := c.rpc.CallContext(ctx, &res, "tx", txHash, string(senderID)); err != nil {
		return nil, classifyError(err)
	}
	return res.Outcome()
}

// ErrUnknownTransaction is returned by TxStatus while the node has not seen the transaction yet.
var ErrUnknownTransaction = errors.New("unknown transaction")

// classifyError maps node errors onto the sentinel errors callers match on.
// Unrecognized errors are returned unchanged.
func classifyError(err error) error {
	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) || dataErr.ErrorData() == nil {
		if sentinel := sentinelFor(err.Error()); sentinel != nil {
			return fmt.Errorf("%w: %v", sentinel, err)
		}
		return err
	}

	var msg string
	if data, ok := dataErr.ErrorData().(string); ok {
		msg = data
	} else {
		raw, _ := json.Marshal(dataErr.ErrorData())
		msg = string(raw)
	}
	if sentinel := sentinelFor(msg); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return fmt.Errorf("%w: %s", err, msg)
}

func classifyMessage(msg string) error {
	if sentinel := sentinelFor(msg); sentinel != nil {
		return fmt.Errorf("%w: %s", sentinel, msg)
	}
	return errors.New(msg)
}

func sentinelFor(msg string) error {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "access key") && strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "unknown_access_key"):
		return interfaces.ErrAccessKeyNotFound
	case strings.Contains(lower, "does not exist"),
		strings.Contains(lower, "unknown_account"),
		strings.Contains(lower, "accountdoesnotexist"):
		return interfaces.ErrAccountNotFound
	case strings.Contains(lower, "unknown_transaction"),
		strings.Contains(lower, "doesn't exist"):
		return ErrUnknownTransaction
	default:
		return nil
	}
}
