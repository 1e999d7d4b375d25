package cookiestash

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/go-pkgz/requester"
	"github.com/go-pkgz/requester/middleware"
)

// header names used by the cookie pipeline
const (
	SetCookieHeader = "Set-Cookie"
	CookieHeader    = "Cookie"
)

// defaults for client configuration
const (
	DefaultBaseURL        = "https://www.wanandroid.com/"
	DefaultLoginMarker    = "user/login"
	DefaultRegisterMarker = "user/register"
	DefaultConnectTimeout = 30 * time.Second
	DefaultReadTimeout    = 10 * time.Second

	keepAlive = 30 * time.Second
)

// Config defines the client built by Factory.
type Config struct {
	BaseURL        string
	LoginMarker    string        // responses to URLs containing it are captured
	RegisterMarker string        // responses to URLs containing it are captured
	ConnectTimeout time.Duration // dial timeout
	ReadTimeout    time.Duration // time to wait for response headers once the request is written
}

// DefaultConfig returns the configuration of the wanandroid API client.
func DefaultConfig() Config {
	return Config{
		BaseURL:        DefaultBaseURL,
		LoginMarker:    DefaultLoginMarker,
		RegisterMarker: DefaultRegisterMarker,
		ConnectTimeout: DefaultConnectTimeout,
		ReadTimeout:    DefaultReadTimeout,
	}
}

// factoryConfig holds optional settings applied during factory construction.
type factoryConfig struct {
	logger    lgr.L
	headers   [][2]string
	transport http.RoundTripper
}

// Option is a functional option for configuring the factory.
type Option func(*factoryConfig)

// WithLogger sets the logger used by the cookie middlewares.
func WithLogger(l lgr.L) Option {
	return func(cfg *factoryConfig) {
		cfg.logger = l
	}
}

// WithHeader adds a static header to every request, e.g. User-Agent.
func WithHeader(key, value string) Option {
	return func(cfg *factoryConfig) {
		cfg.headers = append(cfg.headers, [2]string{key, value})
	}
}

// WithTransport sets the base transport under the middlewares.
// Note: connect and read timeouts from Config are not applied to a custom transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *factoryConfig) {
		cfg.transport = rt
	}
}

// Factory builds the shared Client lazily, exactly once.
type Factory struct {
	cfg     Config
	baseURL *url.URL
	store   Store
	opts    factoryConfig

	once   sync.Once
	client *Client
}

// NewFactory makes a factory for clients with the given config and cookie store.
// No network resources are allocated until the first Client call.
func NewFactory(cfg Config, store Store, opts ...Option) (*Factory, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if store == nil {
		return nil, errors.New("cookie store is required")
	}

	// keep trailing slash so relative paths are resolved under the base path
	base := cfg.BaseURL
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base URL %q must be absolute", cfg.BaseURL)
	}

	f := &Factory{cfg: cfg, baseURL: u, store: store, opts: factoryConfig{logger: lgr.Default()}}
	for _, opt := range opts {
		opt(&f.opts)
	}
	return f, nil
}

// Client returns the shared client, building it on the first call.
// Safe for concurrent use, concurrent first calls produce a single client and transport.
func (f *Factory) Client() *Client {
	f.once.Do(func() {
		f.client = f.build()
	})
	return f.client
}

func (f *Factory) build() *Client {
	transport := f.opts.transport
	if transport == nil {
		transport = newTransport(f.cfg)
	}

	// each handler wraps the previous one: Inject wraps the transport, Capture wraps Inject,
	// header handlers wrap Capture
	middlewares := []middleware.RoundTripperHandler{
		Inject(f.store, f.opts.logger),
		Capture(f.store, f.opts.logger, f.cfg.LoginMarker, f.cfg.RegisterMarker),
	}
	for _, h := range f.opts.headers {
		middlewares = append(middlewares, middleware.Header(h[0], h[1]))
	}

	rq := requester.New(http.Client{Transport: transport}, middlewares...)
	f.opts.logger.Logf("[DEBUG] cookie client for %s created", f.baseURL)
	return &Client{baseURL: f.baseURL, httpClient: rq.Client()}
}

// newTransport clones the default transport and applies connect and read timeouts.
func newTransport(cfg Config) *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.DialContext = (&net.Dialer{Timeout: cfg.ConnectTimeout, KeepAlive: keepAlive}).DialContext
	t.ResponseHeaderTimeout = cfg.ReadTimeout
	return t
}

// Client sends requests through the cookie middlewares. It wraps a single http.Client
// and is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// BaseURL returns the base URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// HTTPClient returns the underlying http.Client with cookie middlewares installed.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// NewRequest makes a request for a path relative to the base URL.
// Absolute URLs are used as is.
func (c *Client) NewRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse path %q: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.ResolveReference(ref).String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return req, nil
}

// Do sends the request.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}
