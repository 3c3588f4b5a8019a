package foundry

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultAPIVersion is sent when ClientConfig.APIVersion is empty
const DefaultAPIVersion = "2025-05-15-preview"

// ErrClosed is returned by every operation after Close
var ErrClosed = errors.New("foundry client closed")

// ClientConfig configures a Client
type ClientConfig struct {
	Endpoint   string
	APIVersion string

	// HTTPClient overrides the pooled, traced client built by NewClient
	HTTPClient *http.Client
}

// Client is a handle to one AI Foundry project
type Client struct {
	api    openai.Client
	http   *http.Client
	closed atomic.Bool
}

// NewClient builds a project client. opts are appended after the defaults,
// so callers may override retries or add headers.
func NewClient(cfg ClientConfig, cred azcore.TokenCredential, opts ...option.RequestOption) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("project endpoint is required")
	}
	if cred == nil {
		return nil, fmt.Errorf("credential is required")
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport.(*http.Transport).Clone()),
		}
	}

	base := []option.RequestOption{
		option.WithBaseURL(cfg.Endpoint),
		option.WithQuery("api-version", cfg.APIVersion),
		option.WithHTTPClient(httpClient),
		option.WithMiddleware(bearerToken(cred)),
	}

	return &Client{
		api:  openai.NewClient(append(base, opts...)...),
		http: httpClient,
	}, nil
}

// Close releases pooled connections. A second call returns ErrClosed.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) checkOpen() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return nil
}

func isStatus(err error, code int) bool {
	var apiErr *openai.Error
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
