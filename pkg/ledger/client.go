package ledger

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veilpoll/veilpoll/pkg/mpc"
	"github.com/veilpoll/veilpoll/pkg/retry"
	"github.com/veilpoll/veilpoll/pkg/utils"
	"go.uber.org/zap"
)

// HTTPClient talks to a ledger RPC node. Reads are retried on transient
// failure; Submit is never retried here because duplicate submissions are not
// deduplicated by the ledger (callers re-check state after a timeout instead).
type HTTPClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
	readCfg  retry.Config
}

// Opts configures an HTTPClient.
type Opts struct {
	Endpoint string
	Timeout  time.Duration
	Logger   *zap.Logger
}

// NewHTTPClient creates a ledger client for the given RPC endpoint.
func NewHTTPClient(o Opts) *HTTPClient {
	if o.Timeout <= 0 {
		o.Timeout = 15 * time.Second
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &HTTPClient{
		endpoint: o.Endpoint,
		client:   &http.Client{Timeout: o.Timeout},
		logger:   o.Logger,
		readCfg: retry.Config{
			MaxRetries:   3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

type submitResponse struct {
	TxRef string   `json:"txRef"`
	Error string   `json:"error,omitempty"`
	Logs  []string `json:"logs,omitempty"`
}

// Submit posts one instruction. A non-2xx response surfaces as a
// SubmissionError carrying the program's diagnostic logs.
func (c *HTTPClient) Submit(ctx context.Context, ix Instruction) (TxRef, error) {
	body, err := json.Marshal(ix)
	if err != nil {
		return "", fmt.Errorf("encode instruction: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submit %s: %w", ix.Kind, err)
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()

	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Error
		if msg == "" {
			msg = resp.Status
		}
		return "", &SubmissionError{Message: msg, Logs: out.Logs}
	}

	c.logger.Debug("Instruction accepted",
		zap.String("kind", string(ix.Kind)),
		zap.Uint32("pollId", ix.PollID),
		zap.String("txRef", out.TxRef))
	return TxRef(out.TxRef), nil
}

// AccountExists reports whether the address holds an account.
func (c *HTTPClient) AccountExists(ctx context.Context, addr mpc.Address) (bool, error) {
	var exists bool
	err := retry.WithBackoff(ctx, c.readCfg, c.logger, "ledger_account_lookup", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/accounts/"+addr.String(), nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = utils.DrainAndClose(resp.Body) }()
		switch resp.StatusCode {
		case http.StatusOK:
			exists = true
		case http.StatusNotFound:
			exists = false
		default:
			return fmt.Errorf("account lookup: %s", resp.Status)
		}
		return nil
	})
	return exists, err
}

// PollAccount fetches and decodes a poll record.
func (c *HTTPClient) PollAccount(ctx context.Context, addr mpc.Address) (*PollAccount, error) {
	var acct *PollAccount
	err := retry.WithBackoff(ctx, c.readCfg, c.logger, "ledger_poll_fetch", func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/accounts/"+addr.String()+"/poll", nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = utils.DrainAndClose(resp.Body) }()
		if resp.StatusCode == http.StatusNotFound {
			acct = nil
			return nil
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("poll fetch: %s", resp.Status)
		}
		var decoded PollAccount
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			return fmt.Errorf("decode poll account: %w", err)
		}
		acct = &decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, ErrAccountNotFound
	}
	return acct, nil
}

type networkKeyResponse struct {
	PublicKey string `json:"publicKey"`
}

// NetworkPublicKey fetches the MPC network's current x25519 public key.
// Implements mpc.NetworkKeyFetcher; the session layer wraps this in its own
// fixed retry, so a single attempt is made here.
func (c *HTTPClient) NetworkPublicKey(ctx context.Context) ([32]byte, error) {
	var key [32]byte
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/v1/mpc/public-key", nil)
	if err != nil {
		return key, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return key, fmt.Errorf("fetch network key: %w", err)
	}
	defer func() { _ = utils.DrainAndClose(resp.Body) }()
	if resp.StatusCode != http.StatusOK {
		return key, fmt.Errorf("fetch network key: %s", resp.Status)
	}
	var out networkKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return key, fmt.Errorf("decode network key: %w", err)
	}
	raw, err := hex.DecodeString(out.PublicKey)
	if err != nil || len(raw) != len(key) {
		return key, fmt.Errorf("malformed network key %q", out.PublicKey)
	}
	copy(key[:], raw)
	return key, nil
}
