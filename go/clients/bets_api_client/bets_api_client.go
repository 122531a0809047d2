// Package bets_api_client is the pull collaborator used only for initial
// hydration and post-reconnect recovery, never as the primary update channel
// while the socket is up.
package bets_api_client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fanpool/betsync/go/internal/models"
)

type BetsApiClient struct {
	baseURL string
	client  *http.Client
	headers map[string]string
}

func NewBetsApiClient(baseURL, authToken string) *BetsApiClient {
	c := &BetsApiClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		headers: make(map[string]string),
	}
	if authToken != "" {
		c.headers["Authorization"] = "Bearer " + authToken
	}
	return c
}

func (c *BetsApiClient) SetHeader(key, value string) {
	c.headers[key] = value
}

func (c *BetsApiClient) SetTimeout(timeout time.Duration) {
	c.client.Timeout = timeout
}

// BettingSnapshot is the getBettingSnapshot response: the active round, the
// pool totals and the viewer's wallet.
type BettingSnapshot struct {
	Round      *models.BettingRound  `json:"round"`
	Locked     bool                  `json:"locked"`
	PoolTotals models.PoolTotals     `json:"poolTotals"`
	Wallet     models.WalletSnapshot `json:"wallet"`
}

// UserBetSnapshot is the getUserBet response.
type UserBetSnapshot struct {
	Bet             *models.UserBet               `json:"bet"`
	PotentialPayout map[models.CurrencyType]int64 `json:"potentialPayout"`
}

// GetBettingSnapshot fetches the round, options, pool totals and wallet for a
// stream.
func (c *BetsApiClient) GetBettingSnapshot(ctx context.Context, streamID, userID string) (*BettingSnapshot, error) {
	endpoint := fmt.Sprintf("/streams/%s/betting-snapshot?userId=%s", streamID, userID)
	body, err := c.makeRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("get betting snapshot: %w", err)
	}

	var snapshot BettingSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal betting snapshot: %w", err)
	}
	if snapshot.Round != nil && snapshot.Round.PoolTotals == nil {
		snapshot.Round.PoolTotals = snapshot.PoolTotals
	}
	return &snapshot, nil
}

// GetUserBet fetches the viewer's own bet in a round, if any.
func (c *BetsApiClient) GetUserBet(ctx context.Context, roundID string) (*UserBetSnapshot, error) {
	endpoint := fmt.Sprintf("/rounds/%s/user-bet", roundID)
	body, err := c.makeRequest(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, fmt.Errorf("get user bet: %w", err)
	}

	var snapshot UserBetSnapshot
	if err := json.Unmarshal(body, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal user bet: %w", err)
	}
	return &snapshot, nil
}

func (c *BetsApiClient) makeRequest(ctx context.Context, method, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status code: %d, response: %s", resp.StatusCode, string(responseBody))
	}

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return responseBody, nil
}
