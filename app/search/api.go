package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultAPIEndpoint = "https://www.googleapis.com/customsearch/v1"
	apiResultCount     = 10
)

// APIProvider queries the Google Custom Search JSON API.
type APIProvider struct {
	Endpoint string

	key      string
	engineID string
	client   *http.Client
	limiter  *rate.Limiter
}

type apiResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewAPIProvider(key, engineID string) *APIProvider {
	return &APIProvider{
		Endpoint: DefaultAPIEndpoint,
		key:      key,
		engineID: engineID,
		client:   &http.Client{Timeout: 30 * time.Second},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

func (p *APIProvider) Name() string {
	return "api"
}

func (p *APIProvider) Available() bool {
	return p.key != "" && p.engineID != ""
}

func (p *APIProvider) Search(ctx context.Context, query string) ([]Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limiter: %w", err)
	}

	params := url.Values{}
	params.Set("key", p.key)
	params.Set("cx", p.engineID)
	params.Set("q", query)
	params.Set("num", fmt.Sprintf("%d", apiResultCount))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call search API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 5<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search API response: %w", err)
	}

	var parsed apiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search API response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("search API returned status %d: %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("search API returned status %d", resp.StatusCode)
	}

	results := make([]Result, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: item.Snippet,
		})
	}

	return results, nil
}
