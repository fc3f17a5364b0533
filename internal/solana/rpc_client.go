package solana

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"solana-vesting/internal/observability"
)

// Client defaults.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultCommitment = CommitmentConfirmed
	DefaultAttempts   = 4
	DefaultRetryBase  = 500 * time.Millisecond
	DefaultRetryMax   = 8 * time.Second
)

// JSON-RPC error codes the client interprets.
const (
	codeBlockNotAvailable  = -32004
	codeNodeUnhealthy      = -32005
	codeSlotMissing        = -32007
	codeSlotSkipped        = -32009
	codeLongTermStorageGap = -32011
)

// HTTPClient reads token accounts and block times over JSON-RPC 2.0.
type HTTPClient struct {
	endpoint   string
	http       *http.Client
	commitment Commitment
	attempts   int
	retryBase  time.Duration
	retryMax   time.Duration
	nextID     atomic.Uint64
}

var _ RPCClient = (*HTTPClient)(nil)

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) { c.http = client }
}

// WithCommitment sets the commitment used for account and slot queries.
// Token accounts and the chain clock are read at the same commitment.
func WithCommitment(commitment Commitment) ClientOption {
	return func(c *HTTPClient) { c.commitment = commitment }
}

// WithRetry sets how many times a request is attempted and the backoff bounds between attempts.
func WithRetry(attempts int, base, max time.Duration) ClientOption {
	return func(c *HTTPClient) {
		if attempts < 1 {
			attempts = 1
		}
		c.attempts, c.retryBase, c.retryMax = attempts, base, max
	}
}

// NewHTTPClient creates a client for the RPC node at endpoint.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: DefaultTimeout},
		commitment: DefaultCommitment,
		attempts:   DefaultAttempts,
		retryBase:  DefaultRetryBase,
		retryMax:   DefaultRetryMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Commitment returns the commitment the client queries at.
func (c *HTTPClient) Commitment() Commitment {
	return c.commitment
}

type request struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// retryable reports whether another attempt may get a different answer.
func (e *RPCError) retryable() bool {
	return e.Code == codeNodeUnhealthy
}

// attemptError is a failed attempt with an optional server-requested delay.
type attemptError struct {
	err        error
	retry      bool
	retryAfter time.Duration
}

// call sends method with params and decodes the result into out.
func (c *HTTPClient) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	started := time.Now()
	defer func() {
		observability.RecordRPCLatency(method, time.Since(started).Seconds())
	}()

	body, err := json.Marshal(request{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}

	var last *attemptError
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, c.backoff(attempt, last.retryAfter)); err != nil {
				return err
			}
		}

		result, failure := c.post(ctx, body)
		if failure == nil {
			if out == nil {
				return nil
			}
			if err := json.Unmarshal(result, out); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
			return nil
		}
		if !failure.retry {
			return failure.err
		}
		last = failure
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", method, c.attempts, last.err)
}

// post performs one HTTP round trip.
func (c *HTTPClient) post(ctx context.Context, body []byte) (json.RawMessage, *attemptError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &attemptError{err: ctx.Err()}
		}
		return nil, &attemptError{err: fmt.Errorf("http request: %w", err), retry: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &attemptError{err: fmt.Errorf("read response: %w", err), retry: true}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &attemptError{
			err:        errors.New("rate limited (429)"),
			retry:      true,
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &attemptError{err: fmt.Errorf("status %d: %s", resp.StatusCode, raw), retry: true}
	case resp.StatusCode != http.StatusOK:
		return nil, &attemptError{err: fmt.Errorf("status %d: %s", resp.StatusCode, raw)}
	}

	var decoded response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, &attemptError{err: fmt.Errorf("decode response: %w", err), retry: true}
	}
	if decoded.Error != nil {
		return nil, &attemptError{err: decoded.Error, retry: decoded.Error.retryable()}
	}
	return decoded.Result, nil
}

// backoff returns the delay before the given retry attempt (1-based).
func (c *HTTPClient) backoff(attempt int, requested time.Duration) time.Duration {
	if requested > 0 {
		return min(requested, c.retryMax)
	}
	d := c.retryBase << (attempt - 1)
	if d <= 0 || d > c.retryMax {
		return c.retryMax
	}
	return d
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type accountInfoResult struct {
	Value *struct {
		Owner string    `json:"owner"`
		Data  [2]string `json:"data"` // [payload, encoding]
	} `json:"value"`
}

// GetTokenAccount reads the token-account prefix of address with getAccountInfo.
func (c *HTTPClient) GetTokenAccount(ctx context.Context, address string) (*TokenAccount, error) {
	params := []interface{}{
		address,
		map[string]interface{}{
			"commitment": c.commitment,
			"encoding":   "base64",
			"dataSlice":  map[string]int{"offset": 0, "length": TokenAccountPrefixLen},
		},
	}

	var result accountInfoResult
	if err := c.call(ctx, "getAccountInfo", params, &result); err != nil {
		return nil, err
	}
	if result.Value == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if result.Value.Owner != TokenProgramID {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrNotTokenAccount, address, result.Value.Owner)
	}
	if enc := result.Value.Data[1]; enc != "base64" {
		return nil, fmt.Errorf("account %s: unexpected data encoding %q", address, enc)
	}

	data, err := base64.StdEncoding.DecodeString(result.Value.Data[0])
	if err != nil {
		return nil, fmt.Errorf("account %s: decode data: %w", address, err)
	}
	acct, err := ParseTokenAccount(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotTokenAccount, address, err)
	}
	return acct, nil
}

// GetSlot returns the latest slot at the client's commitment.
func (c *HTTPClient) GetSlot(ctx context.Context) (uint64, error) {
	params := []interface{}{map[string]interface{}{"commitment": c.commitment}}

	var slot uint64
	if err := c.call(ctx, "getSlot", params, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

// GetBlockTime returns the timestamp of slot.
func (c *HTTPClient) GetBlockTime(ctx context.Context, slot uint64) (int64, error) {
	var ts *int64
	err := c.call(ctx, "getBlockTime", []interface{}{slot}, &ts)

	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case codeBlockNotAvailable, codeSlotMissing, codeSlotSkipped, codeLongTermStorageGap:
			return 0, fmt.Errorf("%w: slot %d: %s", ErrBlockTimeUnavailable, slot, rpcErr.Message)
		}
	}
	if err != nil {
		return 0, err
	}
	if ts == nil {
		return 0, fmt.Errorf("%w: slot %d", ErrBlockTimeUnavailable, slot)
	}
	return *ts, nil
}
