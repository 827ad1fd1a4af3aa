package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/nova-sdk/novakeeper/internal/common"
)

const maxRPCBody = 1 << 20

// RPC talks to a NEAR JSON-RPC node for reads and to a relayer that holds
// the operator key for writes.
type RPC struct {
	rpcURL     string
	relayerURL string
	operator   string
	httpClient *http.Client
}

// NewRPC builds an RPC ledger. timeout bounds every call.
func NewRPC(rpcURL, relayerURL, operator string, timeout time.Duration) *RPC {
	return &RPC{
		rpcURL:     strings.TrimRight(rpcURL, "/"),
		relayerURL: strings.TrimRight(relayerURL, "/"),
		operator:   operator,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type rpcRequest struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      string         `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// ViewAccount queries view_account at final finality. UNKNOWN_ACCOUNT is
// reported as Exists=false, not as an error.
func (l *RPC) ViewAccount(ctx context.Context, accountID string) (AccountView, error) {
	body, err := l.post(ctx, l.rpcURL, rpcRequest{
		JSONRPC: "2.0",
		ID:      "novakeeper",
		Method:  "query",
		Params: map[string]any{
			"request_type": "view_account",
			"finality":     "final",
			"account_id":   accountID,
		},
	})
	if err != nil {
		return AccountView{}, err
	}

	res := gjson.ParseBytes(body)
	if e := res.Get("error"); e.Exists() {
		if res.Get("error.cause.name").String() == "UNKNOWN_ACCOUNT" {
			return AccountView{}, nil
		}
		return AccountView{}, fmt.Errorf("%w: view_account %s: %s", common.ErrLedgerUnavailable, accountID, e.Get("message").String())
	}
	if msg := res.Get("result.error").String(); msg != "" {
		if strings.Contains(msg, "does not exist") {
			return AccountView{}, nil
		}
		return AccountView{}, fmt.Errorf("%w: view_account %s: %s", common.ErrLedgerUnavailable, accountID, msg)
	}

	amount := res.Get("result.amount")
	if !amount.Exists() {
		return AccountView{}, fmt.Errorf("%w: view_account %s: no amount in response", common.ErrLedgerUnavailable, accountID)
	}
	bal, ok := new(big.Int).SetString(amount.String(), 10)
	if !ok {
		return AccountView{}, fmt.Errorf("%w: view_account %s: bad amount %q", common.ErrLedgerUnavailable, accountID, amount.String())
	}
	return AccountView{Exists: true, Balance: bal}, nil
}

func (l *RPC) CreateAccount(ctx context.Context, accountID, publicKey string) (string, error) {
	body, err := l.post(ctx, l.relayerURL+"/create_account", map[string]string{
		"new_account_id": accountID,
		"new_public_key": publicKey,
	})
	if err != nil {
		return "", err
	}
	return txHashOf(body, "create_account")
}

func (l *RPC) Transfer(ctx context.Context, receiverID string, amount *big.Int) (string, error) {
	body, err := l.post(ctx, l.relayerURL+"/transfer", map[string]string{
		"receiver_id": receiverID,
		"amount":      amount.String(),
	})
	if err != nil {
		return "", err
	}
	return txHashOf(body, "transfer")
}

func (l *RPC) OperatorBalance(ctx context.Context) (*big.Int, error) {
	v, err := l.ViewAccount(ctx, l.operator)
	if err != nil {
		return nil, err
	}
	if !v.Exists {
		return nil, fmt.Errorf("operator account %s: %w", l.operator, common.ErrAccountNotFound)
	}
	return v.Balance, nil
}

func txHashOf(body []byte, op string) (string, error) {
	res := gjson.ParseBytes(body)
	for _, path := range []string{"transaction.hash", "transaction_outcome.id", "tx_hash"} {
		if h := res.Get(path).String(); h != "" {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %s: no transaction hash in response", common.ErrLedgerUnavailable, op)
}

// post sends in as JSON and returns the response body. Relayer rejections
// are mapped onto the error taxonomy; transport errors and 5xx are
// ErrLedgerUnavailable.
func (l *RPC) post(ctx context.Context, url string, in any) ([]byte, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrLedgerUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRPCBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", common.ErrLedgerUnavailable, err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: status %d", common.ErrLedgerUnavailable, resp.StatusCode)
	case resp.StatusCode >= 400:
		return nil, relayerError(resp.StatusCode, body)
	}
	return body, nil
}

func relayerError(status int, body []byte) error {
	msg := strings.ToLower(gjson.GetBytes(body, "error").String())
	switch {
	case status == http.StatusConflict || strings.Contains(msg, "already exists"):
		return common.ErrNameTaken
	case status == http.StatusPaymentRequired || strings.Contains(msg, "insufficient"):
		return common.ErrInsufficientFunds
	case status == http.StatusNotFound || strings.Contains(msg, "does not exist"):
		return common.ErrAccountNotFound
	default:
		return fmt.Errorf("%w: relayer status %d: %s", common.ErrInvalid, status, msg)
	}
}
