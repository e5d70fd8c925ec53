// Package profile talks to the account directory and player profile services.
package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/RateThatLowballer/lowballer-discord-bot/internal/logger"
)

const (
	DefaultTimeout     = 10 * time.Second
	DefaultMinInterval = 100 * time.Millisecond

	maxBodyBytes = 4 << 20
)

// ErrProfileNotFound is returned when the service has no such account.
var ErrProfileNotFound = errors.New("profile: not found")

// Config configures a Client.
type Config struct {
	DirectoryURL string
	PlayerURL    string
	APIKey       string
	// Timeout bounds each outbound call including time spent queued.
	Timeout time.Duration
	// MinInterval is the minimum delay between the end of one call and the
	// start of the next.
	MinInterval time.Duration
	Logger      *logger.Logger
	// HTTPClient overrides the default transport, mostly for tests.
	HTTPClient *http.Client
}

// Account is a directory entry.
type Account struct {
	ID   string
	Name string
}

// PlayerRecord is the subset of the player document the ledger cares about.
type PlayerRecord struct {
	UUID        string
	DisplayName string
	// SkyBlock is nil when the player has never played the game mode.
	SkyBlock *SkyBlockStats
}

// SkyBlockStats lists the player's game-mode profiles in service order.
type SkyBlockStats struct {
	Profiles []SkyBlockProfile
}

// SkyBlockProfile summarises one game-mode profile.
type SkyBlockProfile struct {
	ID          string
	CuteName    string
	LastSave    time.Time
	Purse       float64
	BankBalance float64
}

// Client is a rate-limited client for both services. One instance should be
// shared by the whole process so the spacing applies globally.
type Client struct {
	directory *url.URL
	player    *url.URL
	apiKey    string
	timeout   time.Duration
	http      *http.Client
	gate      *gate
	log       *logger.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config) (*Client, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	directory, err := parseBase(cfg.DirectoryURL)
	if err != nil {
		return nil, fmt.Errorf("parse directory url: %w", err)
	}
	player, err := parseBase(cfg.PlayerURL)
	if err != nil {
		return nil, fmt.Errorf("parse player url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	interval := cfg.MinInterval
	if interval < 0 {
		interval = 0
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				ExpectContinueTimeout: 1 * time.Second,
			},
		}
	}

	return &Client{
		directory: directory,
		player:    player,
		apiKey:    cfg.APIKey,
		timeout:   timeout,
		http:      httpClient,
		gate:      newGate(interval),
		log:       log.With("component", "profile"),
	}, nil
}

func parseBase(raw string) (*url.URL, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty url")
	}
	parsed, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, err
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("url %q must be absolute", raw)
	}
	return parsed, nil
}

// Lookup maps a player name onto its account id.
func (c *Client) Lookup(ctx context.Context, name string) (Account, error) {
	endpoint := c.directory.JoinPath("users", "profiles", "minecraft", name)

	var payload directoryResponse
	status, err := c.get(ctx, endpoint, false, &payload)
	if err != nil {
		return Account{}, err
	}
	if status == http.StatusNoContent || status == http.StatusNotFound || payload.ID == "" {
		return Account{}, ErrProfileNotFound
	}
	return Account{ID: payload.ID, Name: payload.Name}, nil
}

// Player fetches the player document for an account id.
func (c *Client) Player(ctx context.Context, uuid string) (PlayerRecord, error) {
	endpoint := c.player.JoinPath("player")
	q := endpoint.Query()
	q.Set("uuid", uuid)
	endpoint.RawQuery = q.Encode()

	var payload playerResponse
	status, err := c.get(ctx, endpoint, true, &payload)
	if err != nil {
		return PlayerRecord{}, err
	}
	if status == http.StatusNoContent || status == http.StatusNotFound {
		return PlayerRecord{}, ErrProfileNotFound
	}
	if !payload.Success {
		cause := payload.Cause
		if cause == "" {
			cause = "request failed"
		}
		return PlayerRecord{}, &ExternalServiceError{Kind: KindService, Message: cause}
	}
	if payload.Player == nil {
		return PlayerRecord{}, ErrProfileNotFound
	}
	return payload.Player.record(), nil
}

// get performs one gated GET. 404 and 204 are returned as statuses for the
// caller to interpret; other non-2xx responses become *ExternalServiceError.
func (c *Client) get(ctx context.Context, endpoint *url.URL, authed bool, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	release, err := c.gate.acquire(ctx)
	if err != nil {
		return 0, &ExternalServiceError{Kind: KindTransport, Message: "waiting for request slot", Err: err}
	}
	defer release()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if authed && c.apiKey != "" {
		req.Header.Set("API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("profile request failed", "host", endpoint.Host, "path", endpoint.Path, "error", err)
		return 0, &ExternalServiceError{Kind: KindTransport, Message: "failed to reach profile service", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, &ExternalServiceError{Kind: KindTransport, Message: "read response body", Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNoContent, resp.StatusCode == http.StatusNotFound:
		return resp.StatusCode, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.log.Warn("profile service returned unexpected status", "path", endpoint.Path, "status", resp.StatusCode)
		return resp.StatusCode, &ExternalServiceError{
			Kind:    KindStatus,
			Status:  resp.StatusCode,
			Message: causeOf(body, resp.Status),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return resp.StatusCode, &ExternalServiceError{Kind: KindService, Status: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return resp.StatusCode, nil
}

func causeOf(body []byte, fallback string) string {
	var payload struct {
		Cause        string `json:"cause"`
		ErrorMessage string `json:"errorMessage"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Cause != "" {
			return payload.Cause
		}
		if payload.ErrorMessage != "" {
			return payload.ErrorMessage
		}
	}
	return fallback
}

type directoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type playerResponse struct {
	Success bool           `json:"success"`
	Cause   string         `json:"cause"`
	Player  *playerPayload `json:"player"`
}

type playerPayload struct {
	UUID        string `json:"uuid"`
	DisplayName string `json:"displayname"`
	Stats       struct {
		SkyBlock *struct {
			Profiles map[string]profilePayload `json:"profiles"`
		} `json:"SkyBlock"`
	} `json:"stats"`
}

type profilePayload struct {
	ProfileID string  `json:"profile_id"`
	CuteName  string  `json:"cute_name"`
	LastSave  int64   `json:"last_save"`
	CoinPurse float64 `json:"coin_purse"`
	Banking   *struct {
		Balance float64 `json:"balance"`
	} `json:"banking"`
}

func (p *playerPayload) record() PlayerRecord {
	rec := PlayerRecord{UUID: p.UUID, DisplayName: p.DisplayName}
	if p.Stats.SkyBlock == nil {
		return rec
	}
	stats := &SkyBlockStats{Profiles: make([]SkyBlockProfile, 0, len(p.Stats.SkyBlock.Profiles))}
	for key, raw := range p.Stats.SkyBlock.Profiles {
		id := raw.ProfileID
		if id == "" {
			id = key
		}
		profile := SkyBlockProfile{
			ID:       id,
			CuteName: raw.CuteName,
			Purse:    raw.CoinPurse,
		}
		if raw.LastSave > 0 {
			profile.LastSave = time.UnixMilli(raw.LastSave).UTC()
		}
		if raw.Banking != nil {
			profile.BankBalance = raw.Banking.Balance
		}
		stats.Profiles = append(stats.Profiles, profile)
	}
	rec.SkyBlock = stats
	return rec
}
