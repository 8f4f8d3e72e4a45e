package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"abundance/internal"
	"abundance/internal/config"
)

// Attribute fields requested from the permit layer.
var queryFields = []string{
	"OBJECTID",
	"PERMIT_NUM",
	"LOG_NUM",
	"ADDRESS",
	"NEIGHBORHOOD",
	"UNITS",
	"DATE_RECEIVED",
	"DATE_ISSUED",
	"FINAL_DATE",
	"DATE_CO_ISSUED",
	"CANCEL",
	"CLASS",
	"VALUATION",
	"CONTRACTOR_NAME",
}

type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
}

type queryResponse struct {
	Features              []internal.RawFeature `json:"features"`
	ExceededTransferLimit bool                  `json:"exceededTransferLimit"`
	Error                 json.RawMessage       `json:"error"`
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.FeedTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.FeedRateLimitRPS),
	}
}

// FetchAll pulls every permit feature page by page. Any failure here is a
// feed-level failure: the caller aborts the run before writing output.
func (c *Client) FetchAll(ctx context.Context) ([]internal.RawFeature, error) {
	all := make([]internal.RawFeature, 0)
	offset := 0

	for {
		page, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, err
		}
		if len(page.Features) == 0 {
			break
		}
		all = append(all, page.Features...)
		// A short page normally means the last one, but the service caps
		// page size server-side and flags the cut with exceededTransferLimit.
		if !page.ExceededTransferLimit && len(page.Features) < c.cfg.FeedPageSize {
			break
		}
		offset += len(page.Features)
	}

	return all, nil
}

func (c *Client) fetchPage(ctx context.Context, offset int) (queryResponse, error) {
	u, err := url.Parse(c.cfg.FeedServiceURL)
	if err != nil {
		return queryResponse{}, err
	}

	q := u.Query()
	q.Set("where", fmt.Sprintf("DATE_ISSUED >= DATE '%s'", c.cfg.FeedMinIssued))
	q.Set("outFields", strings.Join(queryFields, ","))
	q.Set("f", "json")
	q.Set("resultOffset", strconv.Itoa(offset))
	q.Set("resultRecordCount", strconv.Itoa(c.cfg.FeedPageSize))
	q.Set("orderByFields", "OBJECTID ASC")
	q.Set("returnGeometry", "true")
	q.Set("outSR", "4326")
	u.RawQuery = q.Encode()

	body, err := c.fetchJSON(ctx, u.String())
	if err != nil {
		return queryResponse{}, err
	}

	var payload queryResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return queryResponse{}, fmt.Errorf("feed page offset=%d: %w", offset, err)
	}
	// The service reports some errors inside a 200 body.
	if len(payload.Error) > 0 && string(payload.Error) != "null" {
		return queryResponse{}, fmt.Errorf("feed error offset=%d: %s", offset, string(payload.Error))
	}
	return payload, nil
}

func (c *Client) fetchJSON(ctx context.Context, fullURL string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= 5; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			if isRetryableStatus(resp.StatusCode) && attempt < 5 {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				time.Sleep(backoff)
				lastErr = fmt.Errorf("feed status %d", resp.StatusCode)
				continue
			}
			return nil, fmt.Errorf("feed request failed: status=%d body=%s", resp.StatusCode, string(body))
		}

		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("feed request failed")
	}
	return nil, lastErr
}

// SourceURL is the service root recorded on each row, not the paged query URL.
func (c *Client) SourceURL() string {
	u := c.cfg.FeedServiceURL
	if i := strings.Index(u, "/FeatureServer"); i >= 0 {
		return u[:i+len("/FeatureServer")]
	}
	return u
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
