// Package nearrpctest provides an in-process ledger node for tests. It speaks
// the subset of the JSON-RPC API used by nearrpc, verifies signatures and
// nonces, applies account actions and runs function calls against a pluggable
// contract.
package nearrpctest

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/mr-tron/base58"
	"github.com/ruteri/commit-reveal-driver/interfaces"
	"github.com/ruteri/commit-reveal-driver/transaction"
)

// Contract executes a function call. A nil failure means success, with ret
// being the JSON-encoded return value.
type Contract func(signer, receiver interfaces.AccountID, method string, args []byte) (ret []byte, failure any)

type accountState struct {
	amount *big.Int
	keys   map[interfaces.PublicKey]uint64
	code   []byte
}

type txRecord struct {
	stx     *transaction.SignedTransaction
	outcome map[string]any
}

// Node is a fake ledger node served over HTTP.
type Node struct {
	mu        sync.Mutex
	server    *httptest.Server
	accounts  map[interfaces.AccountID]*accountState
	txs       map[string]*txRecord
	submitted []*transaction.SignedTransaction
	blockHash [32]byte
	height    uint64

	// Contract runs function calls. Defaults to NewCommitRevealContract().
	Contract Contract
	// Methods counts JSON-RPC calls by method name.
	Methods map[string]int
}

// NewNode starts a node. Call Close when done.
func NewNode() *Node {
	n := &Node{
		accounts:  make(map[interfaces.AccountID]*accountState),
		txs:       make(map[string]*txRecord),
		blockHash: sha256.Sum256([]byte("genesis")),
		height:    1,
		Contract:  NewCommitRevealContract(),
		Methods:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Post("/", n.handle)
	n.server = httptest.NewServer(r)
	return n
}

// URL returns the endpoint to dial.
func (n *Node) URL() string {
	return n.server.URL
}

// Close stops the server.
func (n *Node) Close() {
	n.server.Close()
}

// AddAccount creates an account holding amount with pk as its only full-access key.
func (n *Node) AddAccount(id interfaces.AccountID, pk interfaces.PublicKey, amount *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.accounts[id] = &accountState{
		amount: new(big.Int).Set(amount),
		keys:   map[interfaces.PublicKey]uint64{pk: 0},
	}
}

// HasAccount reports whether the account exists.
func (n *Node) HasAccount(id interfaces.AccountID) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, ok := n.accounts[id]
	return ok
}

// Balance returns the account balance, or nil when the account does not exist.
func (n *Node) Balance(id interfaces.AccountID) *big.Int {
	n.mu.Lock()
	defer n.mu.Unlock()
	acc, ok := n.accounts[id]
	if !ok {
		return nil
	}
	return new(big.Int).Set(acc.amount)
}

// Code returns the deployed code of an account.
func (n *Node) Code(id interfaces.AccountID) []byte {
	n.mu.Lock()
	defer n.mu.Unlock()
	if acc, ok := n.accounts[id]; ok {
		return acc.code
	}
	return nil
}

// Submitted returns every accepted transaction in submission order.
func (n *Node) Submitted() []*transaction.SignedTransaction {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*transaction.SignedTransaction(nil), n.submitted...)
}

// MethodNames returns the function-call method names of accepted transactions in order.
func (n *Node) MethodNames() []string {
	var out []string
	for _, stx := range n.Submitted() {
		for _, a := range stx.Transaction.Actions {
			if fc, ok := a.(*transaction.FunctionCall); ok {
				out = append(out, fc.MethodName)
			}
		}
	}
	return out
}

type request struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

func (n *Node) handle(w http.ResponseWriter, r *http.Request) {
	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.Methods[req.Method]++
	result, rerr := n.dispatch(&req)
	n.mu.Unlock()

	resp := response{JSONRPC: "2.0", ID: req.ID, Result: result, Error: rerr}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (n *Node) dispatch(req *request) (any, *rpcError) {
	params := make([]string, len(req.Params))
	for i, p := range req.Params {
		if err := json.Unmarshal(p, &params[i]); err != nil {
			return nil, &rpcError{Code: -32602, Message: "Invalid params", Data: err.Error()}
		}
	}

	switch req.Method {
	case "query":
		if len(params) == 0 {
			return nil, &rpcError{Code: -32602, Message: "Invalid params"}
		}
		return n.query(params[0])
	case "broadcast_tx_commit":
		if len(params) != 1 {
			return nil, &rpcError{Code: -32602, Message: "Invalid params"}
		}
		return n.broadcast(params[0])
	case "tx":
		if len(params) != 2 {
			return nil, &rpcError{Code: -32602, Message: "Invalid params"}
		}
		rec, ok := n.txs[params[0]]
		if !ok {
			return nil, serverError(fmt.Sprintf("Transaction %s doesn't exist", params[0]))
		}
		return rec.outcome, nil
	default:
		return nil, &rpcError{Code: -32601, Message: "Method not found"}
	}
}

func serverError(data string) *rpcError {
	return &rpcError{Code: -32000, Message: "Server error", Data: data}
}

func (n *Node) query(path string) (any, *rpcError) {
	parts := strings.Split(path, "/")
	switch {
	case len(parts) == 3 && parts[0] == "access_key":
		acc, ok := n.accounts[interfaces.AccountID(parts[1])]
		if !ok {
			return nil, serverError(fmt.Sprintf("account %s does not exist while viewing", parts[1]))
		}
		pk, err := interfaces.NewPublicKeyFromString(parts[2])
		if err != nil {
			return nil, serverError(err.Error())
		}
		nonce, ok := acc.keys[pk]
		if !ok {
			// The legacy query form reports missing keys inside the result.
			return map[string]any{
				"error":        fmt.Sprintf("access key %s does not exist while viewing", parts[2]),
				"block_hash":   base58.Encode(n.blockHash[:]),
				"block_height": n.height,
			}, nil
		}
		return map[string]any{
			"nonce":        nonce,
			"permission":   "FullAccess",
			"block_hash":   base58.Encode(n.blockHash[:]),
			"block_height": n.height,
		}, nil
	case len(parts) == 2 && parts[0] == "account":
		acc, ok := n.accounts[interfaces.AccountID(parts[1])]
		if !ok {
			return nil, serverError(fmt.Sprintf("account %s does not exist while viewing", parts[1]))
		}
		codeHash := "11111111111111111111111111111111"
		if len(acc.code) > 0 {
			sum := sha256.Sum256(acc.code)
			codeHash = base58.Encode(sum[:])
		}
		return map[string]any{
			"amount":        acc.amount.String(),
			"locked":        "0",
			"code_hash":     codeHash,
			"storage_usage": 182 + len(acc.code),
			"block_hash":    base58.Encode(n.blockHash[:]),
			"block_height":  n.height,
		}, nil
	default:
		return nil, serverError("unsupported query " + path)
	}
}

func (n *Node) broadcast(encoded string) (any, *rpcError) {
	stx, err := transaction.DecodeSignedTransaction(encoded)
	if err != nil {
		return nil, serverError(err.Error())
	}
	if !stx.Verify() {
		return nil, serverError("InvalidTransaction: InvalidSignature")
	}

	tx := stx.Transaction
	signer, ok := n.accounts[tx.SignerID]
	if !ok {
		return nil, serverError(fmt.Sprintf("InvalidTransaction: SignerDoesNotExist %s", tx.SignerID))
	}
	current, ok := signer.keys[tx.PublicKey]
	if !ok {
		return nil, serverError("InvalidTransaction: InvalidAccessKeyError AccessKeyNotFound")
	}
	if tx.Nonce <= current {
		return nil, serverError(fmt.Sprintf("InvalidTransaction: InvalidNonce tx nonce %d must be larger than %d", tx.Nonce, current))
	}
	if tx.BlockHash != n.blockHash {
		return nil, serverError("InvalidTransaction: Expired")
	}
	signer.keys[tx.PublicKey] = tx.Nonce

	status, logs := n.apply(tx)

	n.height++
	n.blockHash = sha256.Sum256(n.blockHash[:])

	hash := stx.HashString()
	outcome := map[string]any{
		"status": status,
		"transaction": map[string]any{
			"hash":        hash,
			"signer_id":   string(tx.SignerID),
			"receiver_id": string(tx.ReceiverID),
			"nonce":       tx.Nonce,
		},
		"transaction_outcome": map[string]any{
			"id":      hash,
			"outcome": map[string]any{"logs": []string{}},
		},
		"receipts_outcome": []any{
			map[string]any{
				"id":      base58.Encode(n.blockHash[:]),
				"outcome": map[string]any{"logs": logs},
			},
		},
	}
	n.txs[hash] = &txRecord{stx: stx, outcome: outcome}
	n.submitted = append(n.submitted, stx)
	return outcome, nil
}

func actionError(index int, kind any) map[string]any {
	return map[string]any{
		"Failure": map[string]any{
			"ActionError": map[string]any{"index": index, "kind": kind},
		},
	}
}

// apply runs the actions of tx. Changes are committed only if every action succeeds.
func (n *Node) apply(tx *transaction.Transaction) (status any, logs []string) {
	logs = []string{}
	staged := make(map[interfaces.AccountID]*accountState)
	lookup := func(id interfaces.AccountID) (*accountState, bool) {
		if acc, ok := staged[id]; ok {
			return acc, acc != nil
		}
		acc, ok := n.accounts[id]
		if !ok {
			return nil, false
		}
		cp := &accountState{amount: new(big.Int).Set(acc.amount), keys: make(map[interfaces.PublicKey]uint64), code: acc.code}
		for k, v := range acc.keys {
			cp.keys[k] = v
		}
		staged[id] = cp
		return cp, true
	}

	var ret []byte
	for i, action := range tx.Actions {
		switch a := action.(type) {
		case *transaction.CreateAccount:
			if _, exists := lookup(tx.ReceiverID); exists {
				return actionError(i, map[string]any{"AccountAlreadyExists": map[string]any{"account_id": tx.ReceiverID}}), logs
			}
			staged[tx.ReceiverID] = &accountState{amount: new(big.Int), keys: make(map[interfaces.PublicKey]uint64)}
		case *transaction.Transfer:
			from, _ := lookup(tx.SignerID)
			to, ok := lookup(tx.ReceiverID)
			if !ok {
				return actionError(i, map[string]any{"AccountDoesNotExist": map[string]any{"account_id": tx.ReceiverID}}), logs
			}
			if from.amount.Cmp(a.Deposit) < 0 {
				return map[string]any{"Failure": map[string]any{"InvalidTxError": map[string]any{"NotEnoughBalance": map[string]any{"signer_id": tx.SignerID}}}}, logs
			}
			from.amount.Sub(from.amount, a.Deposit)
			to.amount.Add(to.amount, a.Deposit)
		case *transaction.AddKey:
			acc, ok := lookup(tx.ReceiverID)
			if !ok {
				return actionError(i, map[string]any{"AccountDoesNotExist": map[string]any{"account_id": tx.ReceiverID}}), logs
			}
			acc.keys[a.PublicKey] = a.Nonce
		case *transaction.DeployContract:
			acc, ok := lookup(tx.ReceiverID)
			if !ok {
				return actionError(i, map[string]any{"AccountDoesNotExist": map[string]any{"account_id": tx.ReceiverID}}), logs
			}
			acc.code = a.Code
		case *transaction.DeleteAccount:
			acc, ok := lookup(tx.ReceiverID)
			if !ok || tx.SignerID != tx.ReceiverID {
				return actionError(i, map[string]any{"ActorNoPermission": map[string]any{"account_id": tx.ReceiverID}}), logs
			}
			if beneficiary, ok := lookup(a.BeneficiaryID); ok {
				beneficiary.amount.Add(beneficiary.amount, acc.amount)
			}
			staged[tx.ReceiverID] = nil
		case *transaction.FunctionCall:
			acc, ok := lookup(tx.ReceiverID)
			if !ok {
				return actionError(i, map[string]any{"AccountDoesNotExist": map[string]any{"account_id": tx.ReceiverID}}), logs
			}
			if len(acc.code) == 0 {
				return actionError(i, map[string]any{"FunctionCallError": map[string]any{"CompilationError": map[string]any{"CodeDoesNotExist": map[string]any{"account_id": tx.ReceiverID}}}}), logs
			}
			var failure any
			ret, failure = n.Contract(tx.SignerID, tx.ReceiverID, a.MethodName, a.Args)
			if failure != nil {
				return actionError(i, map[string]any{"FunctionCallError": map[string]any{"ExecutionError": failure}}), logs
			}
			logs = append(logs, fmt.Sprintf("%s called", a.MethodName))
		default:
			return actionError(i, "UnsupportedAction"), logs
		}
	}

	for id, acc := range staged {
		if acc == nil {
			delete(n.accounts, id)
			continue
		}
		n.accounts[id] = acc
	}
	return map[string]any{"SuccessValue": base64.StdEncoding.EncodeToString(ret)}, logs
}

// NewCommitRevealContract returns a contract that accepts init, commit and
// reveal. commit returns true; reveal returns the hex SHA-256 of the revealed
// value and panics when nothing was committed by the caller.
func NewCommitRevealContract() Contract {
	var mu sync.Mutex
	commits := make(map[interfaces.AccountID]string)

	return func(signer, receiver interfaces.AccountID, method string, args []byte) ([]byte, any) {
		mu.Lock()
		defer mu.Unlock()

		switch method {
		case "init":
			var in struct {
				OwnerID string `json:"owner_id"`
			}
			if err := json.Unmarshal(args, &in); err != nil || in.OwnerID == "" {
				return nil, "Smart contract panicked: Failed to deserialize input from JSON."
			}
			if signer != receiver {
				return nil, "Smart contract panicked: Method init is private"
			}
			return nil, nil
		case "commit":
			var in struct {
				CommitHash string `json:"commit_hash"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, "Smart contract panicked: Failed to deserialize input from JSON."
			}
			commits[signer] = in.CommitHash
			return []byte("true"), nil
		case "reveal":
			var in struct {
				CommitValue string `json:"commit_value"`
			}
			if err := json.Unmarshal(args, &in); err != nil {
				return nil, "Smart contract panicked: Failed to deserialize input from JSON."
			}
			if _, ok := commits[signer]; !ok {
				return nil, "Smart contract panicked: no commit found for caller"
			}
			delete(commits, signer)
			sum := sha256.Sum256([]byte(in.CommitValue))
			ret, _ := json.Marshal(fmt.Sprintf("%x", sum))
			return ret, nil
		default:
			return nil, fmt.Sprintf("MethodResolveError: MethodNotFound %s", method)
		}
	}
}
