// Package api is the HTTP collaborator for the auction core: fetching
// auctions for a stream, fetching one auction by id, and submitting bids.
// Failures come back classified so callers never match on strings.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/liveauction/auction"
	"github.com/mcdev12/liveauction/bidding"
)

// Client talks to the marketplace REST API. It implements
// reconciler.Fetcher and bidding.Submitter.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient swaps the underlying HTTP client. Tests pass an
// httptest-backed client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient builds a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AuctionsForStream fetches all auctions for one stream.
func (c *Client) AuctionsForStream(ctx context.Context, streamID uuid.UUID) ([]auction.Record, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/streams/%s/auctions", streamID), nil)
	if err != nil {
		return nil, err
	}
	var records []auction.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, auction.NewError(auction.KindTransport, "decode auctions response", err)
	}
	return records, nil
}

// AuctionByID fetches the full record for one auction, including joined
// product and bidder details.
func (c *Client) AuctionByID(ctx context.Context, id uuid.UUID) (*auction.Record, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/auctions/%s", id), nil)
	if err != nil {
		return nil, err
	}
	var record auction.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, auction.NewError(auction.KindTransport, "decode auction response", err)
	}
	return &record, nil
}

// SubmitBid places one bid intent. The idempotency key rides in the body so
// the server can deduplicate a resubmitted intent.
func (c *Client) SubmitBid(ctx context.Context, intent bidding.BidIntent) (*bidding.BidResult, error) {
	payload, err := json.Marshal(intent)
	if err != nil {
		return nil, auction.NewError(auction.KindValidation, "encode bid intent", err)
	}
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/auctions/%s/bids", intent.AuctionID), payload)
	if err != nil {
		return nil, err
	}
	var result bidding.BidResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, auction.NewError(auction.KindTransport, "decode bid result", err)
	}
	return &result, nil
}

type apiError struct {
	Message string `json:"message"`
}

func (c *Client) doRequest(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, auction.NewError(auction.KindTransport, "create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, auction.NewError(auction.KindTransport, fmt.Sprintf("%s %s", method, endpoint), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, auction.NewError(auction.KindTransport, "read response body", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	message := http.StatusText(resp.StatusCode)
	var ae apiError
	if json.Unmarshal(body, &ae) == nil && ae.Message != "" {
		message = ae.Message
	}
	log.Debug().
		Int("status", resp.StatusCode).
		Str("endpoint", endpoint).
		Str("message", message).
		Msg("api request failed")
	return nil, auction.NewError(classifyStatus(resp.StatusCode), message, nil)
}

// classifyStatus maps HTTP status codes onto the error taxonomy: 401 means
// sign in, 404 means the auction is gone (treated as ended), 409/422 mean
// the bid lost to a concurrent one, everything else is transport trouble.
func classifyStatus(status int) auction.ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return auction.KindAuthRequired
	case http.StatusNotFound, http.StatusGone:
		return auction.KindTerminalAuction
	case http.StatusConflict, http.StatusUnprocessableEntity:
		return auction.KindBidRejected
	default:
		return auction.KindTransport
	}
}
