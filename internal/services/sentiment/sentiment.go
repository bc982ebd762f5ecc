// Package sentiment reads the crypto fear and greed index.
package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
)

// DefaultURL is the alternative.me fear and greed endpoint.
const DefaultURL = "https://api.alternative.me/fng/?limit=1"

// Client fetches the latest index value.
type Client struct {
	http    *http.Client
	url     string
	retrier *retrier.Retrier
}

// NewClient creates a client for url, DefaultURL when empty.
func NewClient(httpClient *http.Client, url string, r *retrier.Retrier) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	if url == "" {
		url = DefaultURL
	}
	if r == nil {
		r = retrier.New(retrier.WithRetryIf(retrier.IsRetryable))
	}
	return &Client{http: httpClient, url: url, retrier: r}
}

type fngResponse struct {
	Data []struct {
		Value          json.RawMessage `json:"value"`
		Classification string          `json:"value_classification"`
	} `json:"data"`
}

// Index returns the latest index. On any failure it returns the unknown
// index together with the error, so callers can log and carry on.
func (c *Client) Index(ctx context.Context) (domain.SentimentIndex, error) {
	idx, err := retrier.DoWithData(c.retrier, ctx, c.fetch)
	if err != nil {
		return domain.UnknownSentiment(), errors.Wrap(err, "fetch fear and greed index")
	}
	return idx, nil
}

func (c *Client) fetch(ctx context.Context) (domain.SentimentIndex, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return domain.SentimentIndex{}, retrier.Permanent(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.SentimentIndex{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return domain.SentimentIndex{}, retrier.Permanent(err)
		}
		return domain.SentimentIndex{}, err
	}

	var body fngResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.SentimentIndex{}, retrier.Permanent(errors.Wrap(err, "decode response"))
	}
	if len(body.Data) == 0 {
		return domain.SentimentIndex{}, retrier.Permanent(errors.New("empty data"))
	}

	entry := body.Data[0]
	value, ok := parseValue(entry.Value)
	if !ok {
		return domain.SentimentIndex{}, retrier.Permanent(fmt.Errorf("malformed index value %s", entry.Value))
	}
	return domain.SentimentIndex{Value: &value, Classification: entry.Classification}, nil
}

// parseValue accepts the value as a JSON string or number.
func parseValue(raw json.RawMessage) (int, bool) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0, false
		}
		v = int(f)
	}
	if v < 0 || v > 100 {
		return 0, false
	}
	return v, true
}
