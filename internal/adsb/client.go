package adsb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/skylark-data/overflight.report/internal/monitoring"
)

// SourcePoll names the HTTP polling source in health reports.
const SourcePoll = "poll"

// maxAircraftJSONBytes bounds the response body read from the receiver.
const maxAircraftJSONBytes = 8 * 1024 * 1024

// Client polls a dump1090-compatible aircraft.json endpoint and publishes
// each decoded response as a snapshot.
type Client struct {
	url          string
	pollInterval time.Duration
	store        *Store
	httpClient   *http.Client

	lastMessages  int64
	lastFetchTime time.Time
}

// ClientConfig configures an ADS-B polling client.
type ClientConfig struct {
	// URL of the aircraft.json endpoint. Required.
	URL string

	// PollInterval between requests. Zero selects one second.
	PollInterval time.Duration

	// Timeout for a single request. Zero selects three seconds, matching
	// the cadence receivers regenerate aircraft.json at.
	Timeout time.Duration

	// Store receives snapshots and health updates. Required.
	Store *Store
}

// NewClient creates an ADS-B polling client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid ADS-B URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("ADS-B URL must be http or https, got %q", config.URL)
	}

	pollInterval := config.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	return &Client{
		url:          config.URL,
		pollInterval: pollInterval,
		store:        config.Store,
		httpClient:   &http.Client{Timeout: timeout},
	}, nil
}

// Run polls until the context is cancelled. The first poll happens
// immediately so the pipeline does not wait a full interval for aircraft.
func (c *Client) Run(ctx context.Context) error {
	monitoring.Logf("ADS-B poller started: %s every %v", c.url, c.pollInterval)

	if err := c.PollOnce(ctx); err != nil {
		monitoring.Logf("ADS-B poll failed: %v", err)
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.PollOnce(ctx); err != nil {
				monitoring.Logf("ADS-B poll failed: %v", err)
			}
		}
	}
}

// PollOnce fetches and publishes a single snapshot.
func (c *Client) PollOnce(ctx context.Context) error {
	now := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		c.store.RecordFailure(SourcePoll, err, now)
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.store.RecordFailure(SourcePoll, err, now)
		return fmt.Errorf("fetch %s: %w", c.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("fetch %s: status %d", c.url, resp.StatusCode)
		c.store.RecordFailure(SourcePoll, err, now)
		return err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAircraftJSONBytes))
	if err != nil {
		c.store.RecordFailure(SourcePoll, err, now)
		return fmt.Errorf("read response: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		c.store.RecordFailure(SourcePoll, err, now)
		return fmt.Errorf("decode aircraft.json: %w", err)
	}
	snap.FetchedUnixNanos = now.UnixNano()
	snap.Source = SourcePoll

	// Message rate from the receiver's cumulative counter across our own
	// poll spacing; first poll has no baseline.
	messageRate := -1.0
	if !c.lastFetchTime.IsZero() && snap.Messages >= c.lastMessages {
		if dt := now.Sub(c.lastFetchTime).Seconds(); dt > 0 {
			messageRate = float64(snap.Messages-c.lastMessages) / dt
		}
	}
	c.lastMessages = snap.Messages
	c.lastFetchTime = now

	c.store.Swap(&snap)
	c.store.RecordSuccess(SourcePoll, len(snap.Aircraft), messageRate, now)
	return nil
}
