// internal/unsplash/client.go
//
// Minimal Unsplash API client covering the two calls the pipeline
// needs: photo search and download tracking. Both are rate limited by
// the caller; this package only does the HTTP work.

package unsplash

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrMissingAccessKey indicates the client was configured without
// credentials.
var ErrMissingAccessKey = errors.New("unsplash: access key is required")

const (
	defaultBaseURL = "https://api.unsplash.com"
	defaultTimeout = 30 * time.Second
)

// Options configures the Unsplash client.
type Options struct {
	AccessKey      string
	BaseURL        string
	HTTPClient     *http.Client
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Unsplash API.
type Client struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
}

// SearchRequest captures the parameters for one search call.
type SearchRequest struct {
	Query       string
	PerPage     int
	Orientation string
	Color       string
}

// Photo is one search result in the provider's ranked order.
type Photo struct {
	ID             string `json:"id"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Likes          int    `json:"likes"`
	Description    string `json:"description"`
	AltDescription string `json:"alt_description"`
	URLs           struct {
		Raw     string `json:"raw"`
		Full    string `json:"full"`
		Regular string `json:"regular"`
	} `json:"urls"`
	Links struct {
		HTML             string `json:"html"`
		DownloadLocation string `json:"download_location"`
	} `json:"links"`
	User struct {
		Name  string `json:"name"`
		Links struct {
			HTML string `json:"html"`
		} `json:"links"`
	} `json:"user"`
}

type searchResponse struct {
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
	Results    []Photo `json:"results"`
}

type errorResponse struct {
	Errors []string `json:"errors"`
}

// NewClient constructs a client with sane defaults.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.AccessKey) == "" {
		return nil, ErrMissingAccessKey
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		accessKey:  strings.TrimSpace(opts.AccessKey),
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// SearchPhotos runs one search call and returns the results in the
// provider's ranked order.
func (c *Client) SearchPhotos(ctx context.Context, req SearchRequest) ([]Photo, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("unsplash: query is required")
	}
	params := url.Values{}
	params.Set("query", req.Query)
	if req.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(req.PerPage))
	}
	if req.Orientation != "" {
		params.Set("orientation", req.Orientation)
	}
	if req.Color != "" {
		params.Set("color", req.Color)
	}

	endpoint := c.baseURL + "/search/photos?" + params.Encode()
	var parsed searchResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}
	return parsed.Results, nil
}

// TrackDownload registers a download with the provider, as its usage
// terms require. The location comes from a search result's
// download_location link.
func (c *Client) TrackDownload(ctx context.Context, downloadLocation string) error {
	if strings.TrimSpace(downloadLocation) == "" {
		return fmt.Errorf("unsplash: download location is required")
	}
	var ignored struct {
		URL string `json:"url"`
	}
	return c.getJSON(ctx, downloadLocation, &ignored)
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("unsplash: build request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+c.accessKey)
	req.Header.Set("Accept-Version", "v1")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unsplash: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("unsplash: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unsplash: %s", apiError(resp.StatusCode, body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unsplash: decode response: %w", err)
	}
	return nil
}

func apiError(status int, body []byte) string {
	var parsed errorResponse
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		return fmt.Sprintf("status %d: %s", status, strings.Join(parsed.Errors, "; "))
	}
	snippet := strings.TrimSpace(string(body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	if snippet == "" {
		return fmt.Sprintf("status %d", status)
	}
	return fmt.Sprintf("status %d: %s", status, snippet)
}
