// Package app wires a partition node: keyspace, engine, discovery,
// router, RPC listeners and the sweep scheduler.
package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/lnaie/sfAuction/pkg/banner"
	"github.com/lnaie/sfAuction/pkg/cluster"
	"github.com/lnaie/sfAuction/pkg/config"
	"github.com/lnaie/sfAuction/pkg/engine"
	"github.com/lnaie/sfAuction/pkg/logger"
	"github.com/lnaie/sfAuction/pkg/router"
	"github.com/lnaie/sfAuction/pkg/rpc"
	"github.com/lnaie/sfAuction/pkg/store"
	"github.com/lnaie/sfAuction/pkg/sweep"
)

// App encapsulates the node's components and lifecycle.
type App struct {
	eff     config.Effective
	version string

	store     *store.PebbleStore
	partition *engine.Partition
	ops       *router.ServiceOperations
	nodeReg   *rpc.Registry
	gwReg     *rpc.Registry

	srv *http.Server
}

// New initializes everything that does not require a running context:
// the keyspace, the discovery stack, the engine and its method tables.
// Call Run to start the listeners and block until shutdown.
func New(eff config.Effective, version string) (*App, error) {
	_ = godotenv.Load(".env")
	cfg := eff.Config

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := store.Open(eff.DBPath)
	if err != nil {
		return nil, err
	}

	resolver, err := buildResolver(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	ttl, _ := cfg.Cluster.Discovery.CacheTTLDuration()
	endpoints := cluster.NewEndpointsResolver(resolver, ttl)

	ops := router.New(endpoints, cfg.Cluster.ServiceName, cfg.Cluster.EndpointName, nil)
	partition := engine.New(st, ops)

	nodeReg := rpc.NewRegistry()
	partition.RegisterOps(nodeReg)

	var gwReg *rpc.Registry
	if cfg.Cluster.Gateway {
		gwReg = rpc.NewRegistry()
		ops.RegisterOps(gwReg)
	}

	a := &App{
		eff:       eff,
		version:   version,
		store:     st,
		partition: partition,
		ops:       ops,
		nodeReg:   nodeReg,
		gwReg:     gwReg,
	}
	return a, nil
}

// listenPipe binds the unix pipe socket, removing the stale socket file
// a crashed process may have left behind. The live listener unlinks its
// file again on close.
func listenPipe(sock string) (net.Listener, error) {
	if err := os.Remove(sock); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove stale socket %s: %w", sock, err)
	}
	return net.Listen("unix", sock)
}

func buildResolver(cfg *config.Config) (cluster.Resolver, error) {
	d := cfg.Cluster.Discovery
	switch d.Mode {
	case "http":
		return &cluster.HTTPResolver{ClusterEndpoint: d.Endpoint}, nil
	case "static":
		table := make([]cluster.StaticPartition, 0, len(d.Partitions))
		for _, p := range d.Partitions {
			table = append(table, cluster.StaticPartition{
				LowKey:    p.LowKey,
				HighKey:   p.HighKey,
				Endpoints: p.Endpoints,
			})
		}
		return &cluster.StaticResolver{Table: table}, nil
	default:
		return nil, fmt.Errorf("unknown discovery mode %q", d.Mode)
	}
}

// Run starts the HTTP listener, the optional pipe listener and the
// sweep scheduler, then blocks until ctx is canceled or a fatal server
// error occurs.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.eff, a.version)

	stopSweep, err := sweep.Start(ctx, a.eff.Config.Sweep.Enabled, a.eff.Config.Sweep.Cron, a.partition)
	if err != nil {
		return err
	}
	defer stopSweep()

	errCh := make(chan error, 2)

	a.srv = &http.Server{Addr: a.eff.Addr, Handler: a.handler()}
	go func() {
		logger.Info("http_listener_started", "addr", a.eff.Addr)
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	if sock := a.eff.Config.Server.PipeSocket; sock != "" {
		ln, err := listenPipe(sock)
		if err != nil {
			return fmt.Errorf("pipe listener: %w", err)
		}
		go func() {
			logger.Info("pipe_listener_started", "socket", sock)
			if err := rpc.ServePipe(ctx, ln, a.nodeReg); err != nil {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http_shutdown_failed", "error", err)
		}
		if err := a.store.Close(); err != nil {
			logger.Warn("store_close_failed", "error", err)
		}
		logger.Info("node_stopped")
		return nil
	case err := <-errCh:
		_ = a.store.Close()
		return err
	}
}
