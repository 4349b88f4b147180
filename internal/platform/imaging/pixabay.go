package imaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"time"

	"weathergen/internal/common"
	"weathergen/internal/platform/config"
)

var defaultQueries = []string{
	"weather",
	"landscape",
	"sky",
	"nature",
	"cityscape",
}

// PixabayClient fetches a random source photo to compose station weather
// data onto.
type PixabayClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
}

func NewPixabayClient(cfg *config.Config) *PixabayClient {
	return &PixabayClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     cfg.PixabayAPIURL,
		apiKey:     cfg.PixabayAPIKey,
	}
}

type pixabayHit struct {
	LargeImageURL string `json:"largeImageURL"`
	WebformatURL  string `json:"webformatURL"`
}

type pixabayResponse struct {
	Hits []pixabayHit `json:"hits"`
}

func (c *PixabayClient) FetchImage(ctx context.Context) ([]byte, error) {
	query := defaultQueries[rand.Intn(len(defaultQueries))]
	requestURL := fmt.Sprintf("%s?key=%s&q=%s&image_type=photo&orientation=horizontal&per_page=100",
		c.apiURL, url.QueryEscape(c.apiKey), url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building pixabay request: %v", common.ErrProcessingFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: querying pixabay: %v", common.ErrProcessingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: pixabay returned status %d", common.ErrProcessingFailed, resp.StatusCode)
	}

	var parsed pixabayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding pixabay response: %v", common.ErrProcessingFailed, err)
	}
	if len(parsed.Hits) == 0 {
		return nil, fmt.Errorf("%w: pixabay returned no images for %q", common.ErrProcessingFailed, query)
	}

	hit := parsed.Hits[rand.Intn(len(parsed.Hits))]
	imageURL := hit.LargeImageURL
	if imageURL == "" {
		imageURL = hit.WebformatURL
	}
	if imageURL == "" {
		return nil, fmt.Errorf("%w: pixabay hit had no usable image URL", common.ErrProcessingFailed)
	}

	return c.download(ctx, imageURL)
}

func (c *PixabayClient) download(ctx context.Context, imageURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building image request: %v", common.ErrProcessingFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: downloading image: %v", common.ErrProcessingFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: image download returned status %d", common.ErrProcessingFailed, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading image body: %v", common.ErrProcessingFailed, err)
	}
	return data, nil
}
