package sources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

// maxParts bounds the part probing of one category.
const maxParts = 4096

// ErrNotFound is returned by Get for 404 responses.
var ErrNotFound = errors.New("sources: not found")

// ErrNoSearchData is returned when a directory or site holds no searchData
// files of the wanted categories.
var ErrNoSearchData = errors.New("sources: no search data")

// Fetcher downloads search files and pages of published documentation,
// throttled to a fixed request rate.
type Fetcher struct {
	client    *http.Client
	bucket    *rate.Limiter
	userAgent string
}

// NewFetcher creates a fetcher allowing requestsPerSecond requests.
func NewFetcher(requestsPerSecond float64, timeout time.Duration, userAgent string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		bucket:    rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		userAgent: userAgent,
	}
}

// Get fetches url and returns the body and its Content-Type.
func (f *Fetcher) Get(ctx context.Context, url string) ([]byte, string, error) {
	if err := f.bucket.Wait(ctx); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("download of %s failed with status: %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

// FetchRemote downloads <baseURL>/search/<category>_<hex>.js for each
// category, counting parts up from 0 until the first 404.
func (f *Fetcher) FetchRemote(ctx context.Context, baseURL string, categories []string) ([]*searchdata.File, map[string][]byte, error) {
	if len(categories) == 0 {
		categories = []string{AllCategory}
	}
	searchURL := strings.TrimSuffix(baseURL, "/") + "/search/"

	var files []*searchdata.File
	raw := make(map[string][]byte)
	for _, category := range categories {
		for part := 0; part < maxParts; part++ {
			name := fmt.Sprintf("%s_%x.js", category, part)
			data, _, err := f.Get(ctx, searchURL+name)
			if errors.Is(err, ErrNotFound) {
				break
			}
			if err != nil {
				return nil, nil, err
			}

			file, err := searchdata.ParseFile(name, data)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, file)
			raw[name] = data
		}
	}

	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w under %s", ErrNoSearchData, searchURL)
	}
	log.Printf("✓ Fetched %d search files from %s", len(files), searchURL)

	SortFiles(files)
	return files, raw, nil
}
