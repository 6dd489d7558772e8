package app

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lnaie/sfAuction/pkg/config"
	"github.com/lnaie/sfAuction/pkg/rpc"
)

func newTestApp(t *testing.T, mutate func(*config.Config)) *App {
	t.Helper()
	cfg, _, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Cluster.Discovery.Mode = "static"
	cfg.Cluster.Discovery.Partitions = []config.StaticPartitionConfig{{
		LowKey:  -9223372036854775808,
		HighKey: 9223372036854775807,
		Endpoints: map[string]string{
			"ReplicaEndpoint": "http://127.0.0.1:1/rpc", // unused by the direct-handler tests
		},
	}}
	if mutate != nil {
		mutate(cfg)
	}
	a, err := New(config.Effective{Config: cfg, Addr: "127.0.0.1:0", DBPath: t.TempDir(), Source: "test"}, "test")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { a.store.Close() })
	return a
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("%s status = %d", path, resp.StatusCode)
		}
	}
}

func TestRPCEndpoint(t *testing.T) {
	a := newTestApp(t, nil)
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	req, err := rpc.NewNamedRequest(rpc.IntID(1), "CreateUser", map[string]any{
		"userEmail": "alice@example.com",
	})
	if err != nil {
		t.Fatal(err)
	}
	enc, err := req.Encode()
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Get(srv.URL + "/rpc?jsonrpc=" + url.QueryEscape(string(enc)))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := rpc.ParseResponse(body)
	if err != nil {
		t.Fatalf("parse %s: %v", body, err)
	}
	if parsed.Err != nil {
		t.Fatalf("call failed: %v", parsed.Err)
	}
	if !strings.Contains(string(parsed.Result), "alice@example.com") {
		t.Fatalf("result = %s", parsed.Result)
	}
}

func TestGatewayEndpointMounted(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Cluster.Gateway = true })
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/gateway?jsonrpc=bad")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("gateway status = %d", resp.StatusCode)
	}

	// without the gateway flag the route does not exist
	a2 := newTestApp(t, nil)
	srv2 := httptest.NewServer(a2.handler())
	defer srv2.Close()
	resp, err = http.Get(srv2.URL + "/gateway?jsonrpc=bad")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.Fatal("gateway mounted without the flag")
	}
}

func TestConfiguredCORSOrigin(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) {
		c.Security.CORS.AllowedOrigins = []string{"https://auction.example.com"}
	})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/rpc?jsonrpc=bad", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "https://auction.example.com")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "https://auction.example.com" {
		t.Fatalf("allow-origin = %q", got)
	}
}

func TestListenPipeRemovesStaleSocket(t *testing.T) {
	sock := filepath.Join(t.TempDir(), "auctiond.sock")

	// a crashed process leaves its socket file behind
	ln, err := listenPipe(sock)
	if err != nil {
		t.Fatal(err)
	}
	ln.Close()
	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatal(err)
	}

	ln, err = listenPipe(sock)
	if err != nil {
		t.Fatalf("stale socket not cleared: %v", err)
	}
	ln.Close()
}

func TestRateLimit(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) {
		c.Security.RateLimit.RPS = 1
		c.Security.RateLimit.Burst = 2
	})
	srv := httptest.NewServer(a.handler())
	defer srv.Close()

	limited := false
	for i := 0; i < 10; i++ {
		resp, err := http.Get(srv.URL + "/rpc?jsonrpc=bad")
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatal("burst never exhausted")
	}
}
