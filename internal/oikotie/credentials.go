package oikotie

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sync"
	"time"
)

// CredentialProvider supplies the anti-bot headers the card API requires.
// Implementations cache; Invalidate forces re-acquisition after upstream
// rejects a request as unauthenticated.
type CredentialProvider interface {
	Headers(ctx context.Context) (map[string]string, error)
	Invalidate()
}

var (
	tokenPattern  = regexp.MustCompile(`<meta name="api-token" content="(.*?)"`)
	loadedPattern = regexp.MustCompile(`<meta name="loaded" content="(.*?)"`)
	cuidPattern   = regexp.MustCompile(`<meta name="cuid" content="(.*?)"`)
)

// HTMLCredentials scrapes the three marker meta tags from the listing page
// and caches them for a short window.
type HTMLCredentials struct {
	httpClient *http.Client
	pageURL    string
	ttl        time.Duration

	mu        sync.Mutex
	cached    map[string]string
	fetchedAt time.Time
}

// NewHTMLCredentials builds a provider reading tokens from pageURL.
func NewHTMLCredentials(httpClient *http.Client, pageURL string, ttl time.Duration) *HTMLCredentials {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HTMLCredentials{httpClient: httpClient, pageURL: pageURL, ttl: ttl}
}

// Headers returns cached tokens when fresh, otherwise re-scrapes the page.
func (p *HTMLCredentials) Headers(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil && time.Since(p.fetchedAt) < p.ttl {
		return p.cached, nil
	}

	headers, err := p.fetch(ctx)
	if err != nil {
		return nil, err
	}

	p.cached = headers
	p.fetchedAt = time.Now()
	return headers, nil
}

// Invalidate drops the cached tokens.
func (p *HTMLCredentials) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cached = nil
}

func (p *HTMLCredentials) fetch(ctx context.Context) (map[string]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build credential request: %w", err)
	}

	res, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch credential page: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("credential page returned %s", res.Status)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read credential page: %w", err)
	}

	token := firstGroup(tokenPattern, body)
	loaded := firstGroup(loadedPattern, body)
	cuid := firstGroup(cuidPattern, body)
	if token == "" || loaded == "" || cuid == "" {
		return nil, fmt.Errorf("credential page is missing marker meta tags")
	}

	return map[string]string{
		"OTA-token":  token,
		"OTA-loaded": loaded,
		"OTA-cuid":   cuid,
	}, nil
}

func firstGroup(re *regexp.Regexp, body []byte) string {
	m := re.FindSubmatch(body)
	if len(m) < 2 {
		return ""
	}
	return string(m[1])
}
