// Package client is a thin HTTP client for the ledger API used by ledgerctl.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"guild-economy/internal/economy"
	"guild-economy/internal/settlement"
	"guild-economy/internal/store"
)

type Client struct {
	BaseURL  string
	APIKey   string
	AdminKey string
	Actor    string
	HTTP     *http.Client
}

func New(baseURL, apiKey, adminKey string) *Client {
	return &Client{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		APIKey:   apiKey,
		AdminKey: adminKey,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is a non-2xx response. Code carries the server's error code.
type APIError struct {
	Status      int
	Code        string
	Detail      string
	RemainingMS int64
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api status %d: %s", e.Status, e.Code)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

type Ranked struct {
	Rank    int    `json:"rank"`
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

type Instrument struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	Kind       string  `json:"kind"`
	DesignedEV float64 `json:"designed_ev"`
}

type AuditReport struct {
	OK            bool             `json:"ok"`
	Discrepancies []map[string]any `json:"discrepancies"`
}

func (c *Client) Balance(ctx context.Context, realm, account string) (int64, error) {
	var out struct {
		Balance int64 `json:"balance"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, realmPath(realm, "/accounts/"+url.PathEscape(account)+"/balance"), c.APIKey, nil, &out)
	return out.Balance, err
}

func (c *Client) Rank(ctx context.Context, realm string, limit int) ([]Ranked, error) {
	var out struct {
		Items []Ranked `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, realmPath(realm, "/rank?limit="+strconv.Itoa(limit)), c.APIKey, nil, &out)
	return out.Items, err
}

func (c *Client) Instruments(ctx context.Context) ([]Instrument, error) {
	var out struct {
		Items []Instrument `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, "/api/instruments", c.APIKey, nil, &out)
	return out.Items, err
}

// Ledger lists entries through the admin route so any account or kind can be
// filtered.
func (c *Client) Ledger(ctx context.Context, realm, account, kind string, limit int) ([]store.LedgerEntry, error) {
	q := url.Values{}
	if account != "" {
		q.Set("account", account)
	}
	if kind != "" {
		q.Set("kind", kind)
	}
	q.Set("limit", strconv.Itoa(limit))
	var out struct {
		Items []store.LedgerEntry `json:"items"`
	}
	err := c.jsonRequest(ctx, http.MethodGet, adminRealmPath(realm, "/ledger?"+q.Encode()), c.AdminKey, nil, &out)
	return out.Items, err
}

func (c *Client) Settle(ctx context.Context, realm string, req settlement.Request) (settlement.Result, error) {
	var out settlement.Result
	err := c.jsonRequest(ctx, http.MethodPost, realmPath(realm, "/settle"), c.APIKey, map[string]any{
		"request_id": req.RequestID,
		"account":    req.Account,
		"action":     req.Action,
		"wager":      req.Wager,
		"params":     req.Params,
	}, &out)
	return out, err
}

func (c *Client) Adjust(ctx context.Context, realm, account, op string, amount int64, reason, requestID string) (settlement.Result, error) {
	var out settlement.Result
	err := c.jsonRequest(ctx, http.MethodPost, adminRealmPath(realm, "/adjust"), c.AdminKey, map[string]any{
		"request_id": requestID,
		"account":    account,
		"op":         op,
		"amount":     amount,
		"reason":     reason,
	}, &out)
	return out, err
}

func (c *Client) ResetCooldown(ctx context.Context, realm, account, scope, reason string) (settlement.Result, error) {
	var out settlement.Result
	err := c.jsonRequest(ctx, http.MethodPost, adminRealmPath(realm, "/cooldowns/reset"), c.AdminKey, map[string]any{
		"account": account,
		"scope":   scope,
		"reason":  reason,
	}, &out)
	return out, err
}

func (c *Client) GetConfig(ctx context.Context, realm string) (economy.GuildConfig, error) {
	var out economy.GuildConfig
	err := c.jsonRequest(ctx, http.MethodGet, adminRealmPath(realm, "/config"), c.AdminKey, nil, &out)
	return out, err
}

func (c *Client) PutConfig(ctx context.Context, cfg economy.GuildConfig) (settlement.Result, error) {
	var out settlement.Result
	err := c.jsonRequest(ctx, http.MethodPut, adminRealmPath(cfg.Realm, "/config"), c.AdminKey, cfg, &out)
	return out, err
}

func (c *Client) Audit(ctx context.Context, realm string) (AuditReport, error) {
	var out AuditReport
	err := c.jsonRequest(ctx, http.MethodGet, adminRealmPath(realm, "/audit"), c.AdminKey, nil, &out)
	return out, err
}

func (c *Client) ReloadCatalog(ctx context.Context) error {
	return c.jsonRequest(ctx, http.MethodPost, "/api/admin/catalog/reload", c.AdminKey, nil, nil)
}

func (c *Client) SweepLocks(ctx context.Context) (int, error) {
	var out struct {
		Cleared int `json:"cleared"`
	}
	err := c.jsonRequest(ctx, http.MethodPost, "/api/admin/locks/sweep", c.AdminKey, nil, &out)
	return out.Cleared, err
}

func realmPath(realm, rest string) string {
	return "/api/realms/" + url.PathEscape(realm) + rest
}

func adminRealmPath(realm, rest string) string {
	return "/api/admin/realms/" + url.PathEscape(realm) + rest
}

func (c *Client) jsonRequest(ctx context.Context, method, path, key string, in any, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	if c.Actor != "" {
		req.Header.Set("X-Admin-Actor", c.Actor)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &APIError{Status: resp.StatusCode}
		var payload struct {
			Error       string `json:"error"`
			Detail      string `json:"detail"`
			RemainingMS int64  `json:"remaining_ms"`
		}
		if json.Unmarshal(raw, &payload) == nil && payload.Error != "" {
			apiErr.Code, apiErr.Detail, apiErr.RemainingMS = payload.Error, payload.Detail, payload.RemainingMS
		} else {
			apiErr.Code = strings.TrimSpace(string(raw))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
