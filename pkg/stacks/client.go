// Package stacks is the HTTP client for the node's signer endpoints.
package stacks

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/message"
)

const (
	pathAggregateKey  = "/v2/signer/aggregate_key"
	pathBlockProposal = "/v2/block_proposal"

	ResultAccepted = "Accepted"
	ResultRejected = "Rejected"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
)

var (
	ErrNetwork         = errors.New("stacks: network error")
	ErrInvalidResponse = errors.New("stacks: invalid response")
)

type aggregateKeyResponse struct {
	AggregatePublicKey *string `json:"aggregate_public_key"`
}

type blockProposalRequest struct {
	Block string `json:"block"`
}

type blockProposalResponse struct {
	Result string `json:"result"`
	Reason string `json:"reason,omitempty"`
}

// Client talks to a single node over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
}

func NewClient(host string, log zerolog.Logger) *Client {
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return &Client{
		baseURL:    strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     log.With().Str("component", "stacks_client").Logger(),
	}
}

// GetAggregatePublicKey returns the aggregate key registered for the
// current reward cycle, or nil if DKG has not produced one yet.
func (c *Client) GetAggregatePublicKey(ctx context.Context) (*secp256k1.PublicKey, error) {
	var resp aggregateKeyResponse
	if err := c.do(ctx, http.MethodGet, pathAggregateKey, nil, &resp); err != nil {
		return nil, err
	}
	if resp.AggregatePublicKey == nil || *resp.AggregatePublicKey == "" {
		return nil, nil
	}
	key, err := encoding.DecodeS256PubKeyHex(*resp.AggregatePublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: aggregate key: %v", ErrInvalidResponse, err)
	}
	return key, nil
}

// IsValidBlock submits the block for validation.
func (c *Client) IsValidBlock(ctx context.Context, block *message.Block) (bool, error) {
	var resp blockProposalResponse
	req := blockProposalRequest{Block: hex.EncodeToString(block.Serialize())}
	if err := c.do(ctx, http.MethodPost, pathBlockProposal, req, &resp); err != nil {
		return false, err
	}
	switch resp.Result {
	case ResultAccepted:
		return true, nil
	case ResultRejected:
		c.logger.Debug().Str("reason", resp.Reason).Uint64("height", block.Header.Height).Msg("Block rejected by node")
		return false, nil
	default:
		return false, fmt.Errorf("%w: block proposal result %q", ErrInvalidResponse, resp.Result)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%w: read %s: %v", ErrNetwork, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s %s: status %d", ErrNetwork, method, path, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidResponse, path, err)
	}
	return nil
}
