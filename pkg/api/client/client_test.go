package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpx "github.com/ptfpinho23/HeadlessVendingMachine/internal/http"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/repository/memory"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/auth"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/product"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/purchase"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/service/user"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/session"
	"github.com/ptfpinho23/HeadlessVendingMachine/internal/ws"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/api/client"
	"github.com/ptfpinho23/HeadlessVendingMachine/pkg/config"
)

func newClient(t *testing.T) *client.Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.New()
	sessions := session.NewMemoryStore()
	hub := ws.NewHub(logger)
	cfg := config.APIConfig{JWTSecret: "client-secret", SessionTTL: time.Minute, SessionPrefix: "session:"}

	authSvc := auth.New(store, sessions, logger, cfg)
	router := httpx.NewRouter(logger,
		authSvc,
		user.New(store, authSvc, logger),
		product.New(store, hub, logger),
		purchase.New(store, store, store, hub, logger),
		hub,
		httpx.NewMemoryRateLimiter(),
		httpx.Options{},
	)
	server := httptest.NewServer(router)
	t.Cleanup(func() {
		server.Close()
		router.Close()
		hub.Close()
		sessions.Close()
	})

	cli, err := client.New(server.URL, client.WithHTTPClient(server.Client()))
	require.NoError(t, err)
	return cli
}

func TestClientPurchaseFlow(t *testing.T) {
	ctx := context.Background()
	cli := newClient(t)

	_, err := cli.Signup(ctx, "seller", "secret1", "seller")
	require.NoError(t, err)
	buyer, err := cli.Signup(ctx, "buyer", "secret1", "buyer")
	require.NoError(t, err)
	assert.Equal(t, "buyer", buyer.Role)

	sellerToken, err := cli.Login(ctx, "seller", "secret1")
	require.NoError(t, err)
	gum, err := cli.CreateProduct(ctx, sellerToken, "Gum", 5, 10)
	require.NoError(t, err)
	assert.Equal(t, "Gum", gum.Name)

	products, err := cli.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, products, 1)

	buyerToken, err := cli.Login(ctx, "buyer", "secret1")
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		_, err = cli.Deposit(ctx, buyerToken, 100)
		require.NoError(t, err)
	}

	me, err := cli.Me(ctx, buyerToken, buyer.ID)
	require.NoError(t, err)
	assert.Equal(t, 200, me.Deposit)

	receipt, err := cli.Buy(ctx, buyerToken, gum.ID, 5)
	require.NoError(t, err)
	assert.Equal(t, 25, receipt.SubTotal)
	assert.Equal(t, 175, receipt.TotalChange)
	assert.Equal(t, []int{100, 50, 20, 5}, receipt.Change)

	require.NoError(t, cli.Reset(ctx, buyerToken))
	require.NoError(t, cli.Logout(ctx, buyerToken))
	require.NoError(t, cli.DeleteProduct(ctx, sellerToken, gum.ID))
}

func TestClientSurfacesAPIErrors(t *testing.T) {
	ctx := context.Background()
	cli := newClient(t)

	_, err := cli.Signup(ctx, "buyer", "secret1", "buyer")
	require.NoError(t, err)
	token, err := cli.Login(ctx, "buyer", "secret1")
	require.NoError(t, err)

	_, err = cli.Deposit(ctx, token, 7)
	var apiErr client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)

	_, err = cli.Login(ctx, "buyer", "secret1")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "there is already an active session using your account", apiErr.Message)
}

func TestNewNormalisesBaseURL(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":200,"message":"","data":[]}`))
	}))
	t.Cleanup(server.Close)

	cli, err := client.New(server.URL + "/")
	require.NoError(t, err)
	products, err := cli.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, "/products", gotPath)
}

func TestPlainTextErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	t.Cleanup(server.Close)

	cli, err := client.New(server.URL)
	require.NoError(t, err)
	_, err = cli.ListProducts(context.Background())
	var apiErr client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
	assert.Equal(t, "upstream down", apiErr.Message)
}
