// =============================================================================
// Mission Sheet Converter - Fetcher
// =============================================================================
//
// Downloads the sheet export with a single HTTP GET.
//
// BEHAVIOR:
//   - Redirects are followed (the export endpoint redirects to a content host).
//     A cookie jar is shared across the redirect chain.
//   - Status 200 is the only success. Anything else is a fatal error.
//   - A 200 carrying an HTML page is also fatal: private sheets answer the
//     export URL with a sign-in page instead of the data.
//   - No retries.
//
// =============================================================================

package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds a whole download, redirects included.
const DefaultTimeout = 60 * time.Second

var (
	// ErrUnexpectedStatus is returned for any non-200 response.
	ErrUnexpectedStatus = errors.New("unexpected HTTP status")

	// ErrHTMLResponse is returned when the server answers with an HTML page.
	ErrHTMLResponse = errors.New("received an HTML page instead of sheet data, check that the sheet is shared publicly")
)

// HTTPClient abstracts HTTP operations for testing.
// This interface is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// DefaultHTTPClient returns a client that follows redirects with a
// public-suffix aware cookie jar.
func DefaultHTTPClient(timeout time.Duration) (*http.Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}, nil
}

// Fetcher downloads sheet exports.
type Fetcher struct {
	client    HTTPClient
	userAgent string
	timeout   time.Duration
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
// Use this in tests to inject a mock.
func WithHTTPClient(client HTTPClient) Option {
	return func(f *Fetcher) {
		f.client = client
	}
}

// WithTimeout sets the timeout of the default client.
// It has no effect when WithHTTPClient is also given.
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		f.timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header sent with the request.
func WithUserAgent(userAgent string) Option {
	return func(f *Fetcher) {
		f.userAgent = userAgent
	}
}

// New creates a Fetcher.
func New(opts ...Option) (*Fetcher, error) {
	f := &Fetcher{
		userAgent: "mission-sheet-converter",
		timeout:   DefaultTimeout,
	}
	for _, opt := range opts {
		opt(f)
	}

	if f.client == nil {
		client, err := DefaultHTTPClient(f.timeout)
		if err != nil {
			return nil, err
		}
		f.client = client
	}
	return f, nil
}

// Response is a successful download.
type Response struct {
	// URL is the final URL after redirects.
	URL string

	// ContentType is the media type of the body, without parameters.
	ContentType string

	// Charset is the charset parameter of the Content-Type header, if any.
	Charset string

	// Body is the raw response body.
	Body []byte
}

// Fetch issues one GET against url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("failed to download sheet: %w: %d %s, check URL and permissions",
			ErrUnexpectedStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	result := &Response{URL: url}
	if resp.Request != nil && resp.Request.URL != nil {
		result.URL = resp.Request.URL.String()
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" {
		mediaType, params, err := mime.ParseMediaType(ct)
		if err == nil {
			result.ContentType = mediaType
			result.Charset = params["charset"]
		}
	}
	if result.ContentType == "text/html" {
		return nil, fmt.Errorf("failed to download sheet: %w", ErrHTMLResponse)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	result.Body = body

	return result, nil
}
