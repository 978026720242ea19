package http

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/fjod/go_storefront/internal/cart"
	"github.com/fjod/go_storefront/internal/catalog/cache"
	catalogrepo "github.com/fjod/go_storefront/internal/catalog/repository"
	catalogsvc "github.com/fjod/go_storefront/internal/catalog/service"
	checkoutrepo "github.com/fjod/go_storefront/internal/checkout/repository"
	checkout "github.com/fjod/go_storefront/internal/checkout/service"
	"github.com/fjod/go_storefront/internal/db"
	"github.com/fjod/go_storefront/internal/metrics"
	"github.com/fjod/go_storefront/internal/payment"
	"github.com/fjod/go_storefront/internal/payment/stub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testCookieName = "sf_session"
	testBaseURL    = "https://shop.example.com"
)

type testEnv struct {
	server   *httptest.Server
	conn     *sql.DB
	registry *cart.Registry
	ledger   *checkoutrepo.Repository
}

type envOption func(*envConfig)

type envConfig struct {
	provider payment.Provider
	baseURL  string
}

func withProvider(p payment.Provider) envOption {
	return func(c *envConfig) { c.provider = p }
}

func withBaseURL(u string) envOption {
	return func(c *envConfig) { c.baseURL = u }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	cfg := envConfig{provider: stub.New(), baseURL: testBaseURL}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn, err := db.OpenAndMigrate(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	catalog := catalogsvc.NewCatalogService(catalogrepo.NewRepository(conn), cache.NopCache{}, m)
	registry := cart.NewRegistry(cart.WithTTL(time.Hour))
	t.Cleanup(registry.Close)

	ledger := checkoutrepo.NewRepository(conn)
	svc := checkout.NewCheckoutService(ledger, cfg.provider, m, checkout.Options{})

	router := NewRouter(
		RouterConfig{
			Logger:         zap.NewNop(),
			Metrics:        m,
			Gatherer:       reg,
			RequestTimeout: 5 * time.Second,
			Cookie:         SessionCookie{Name: testCookieName, MaxAge: time.Hour},
		},
		NewProductHandler(catalog),
		NewCartHandler(catalog, registry),
		NewCheckoutHandler(catalog, registry, svc, cfg.baseURL),
		NewOrdersHandler(svc),
	)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testEnv{server: server, conn: conn, registry: registry, ledger: ledger}
}

// client is one browser: it keeps its session cookie and never follows redirects.
func (e *testEnv) client(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
		Timeout: 5 * time.Second,
	}
}

func (e *testEnv) sessionID(t *testing.T, c *http.Client) string {
	t.Helper()
	u, err := url.Parse(e.server.URL)
	require.NoError(t, err)
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == testCookieName {
			return ck.Value
		}
	}
	t.Fatal("no session cookie")
	return ""
}

func (e *testEnv) do(t *testing.T, c *http.Client, method, path string, body any, headers ...string) *http.Response {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, e.server.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	require.NoError(t, e.conn.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

type failingProvider struct {
	err   error
	calls int
}

func (p *failingProvider) CreateCheckoutSession(context.Context, payment.CheckoutParams) (*payment.Session, error) {
	p.calls++
	return nil, p.err
}

func (p *failingProvider) GetCheckoutSession(context.Context, string) (*payment.SessionDetails, error) {
	return nil, p.err
}
