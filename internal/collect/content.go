package collect

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
)

// ContentFetcher downloads article pages and extracts their readable text.
// After an HTTP error from a host it stops asking that host.
type ContentFetcher struct {
	client *http.Client
	logger *slog.Logger

	mu            sync.Mutex
	failedDomains map[string]struct{}
}

// NewContentFetcher creates a content fetcher.
func NewContentFetcher(timeout time.Duration, logger *slog.Logger) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ContentFetcher{
		logger: logger,
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		failedDomains: make(map[string]struct{}),
	}
}

// Fetch returns the extracted text of the page at articleURL, or "" when
// nothing usable could be extracted.
func (f *ContentFetcher) Fetch(ctx context.Context, articleURL string) string {
	u, err := url.Parse(articleURL)
	if err != nil {
		return ""
	}
	domain := strings.ToLower(u.Host)
	if f.domainFailed(domain) {
		return ""
	}

	text, err := f.fetchArticleContent(ctx, u)
	if err != nil {
		f.markFailed(domain)
		f.logger.Warn("HTTP error, skipping remaining pages from host", "url", articleURL, "host", domain, "err", err)
		return ""
	}
	if text == "" {
		f.logger.Debug("no extractable content", "url", articleURL)
	}
	return text
}

func (f *ContentFetcher) fetchArticleContent(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil
	}
	req.Header.Set("User-Agent", "newsdesk/1.0 (news reader)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", nil // connection error, not HTTP error
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), u)
	if err != nil {
		return "", nil
	}

	text := strings.TrimSpace(article.TextContent)
	if len(text) > 100 {
		return text, nil
	}
	return "", nil
}

func (f *ContentFetcher) domainFailed(domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, failed := f.failedDomains[domain]
	return failed
}

func (f *ContentFetcher) markFailed(domain string) {
	if domain == "" {
		return
	}
	f.mu.Lock()
	f.failedDomains[domain] = struct{}{}
	f.mu.Unlock()
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return http.StatusText(e.code)
}
