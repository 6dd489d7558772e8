package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/lnaie/sfAuction/pkg/logger"
	"github.com/lnaie/sfAuction/pkg/rpc"
)

// PartitionInfo is one discovery result: an opaque version token plus
// the mapping from endpoint name to reachable address.
type PartitionInfo struct {
	Version   string
	Endpoints map[string]string
}

// Resolver answers discovery queries. The concrete protocol is
// pluggable; HTTPResolver speaks the cluster manager's REST query and
// StaticResolver serves a fixed table from configuration.
type Resolver interface {
	// Resolve returns the current endpoints for one partition of a
	// service (or the service itself when partitionKey is nil).
	// prevVersion, when non-empty, hints that the caller holds a stale
	// resolution with that version token.
	Resolve(ctx context.Context, service string, partitionKey *int64, prevVersion string) (PartitionInfo, error)
	// Partitions enumerates the low keys of every partition of a service.
	Partitions(ctx context.Context, service string) ([]int64, error)
}

// HTTPResolver queries the cluster manager's REST discovery endpoint:
//
//	GET /Services/{name}/$/ResolvePartition?api-version=1.0
//	    [&PartitionKeyType=2&PartitionKeyValue={key}][&PreviousRspVersion={token}]
type HTTPResolver struct {
	// ClusterEndpoint is host[:port] of the discovery service.
	ClusterEndpoint string
	Client          *http.Client
}

func (r *HTTPResolver) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

func (r *HTTPResolver) get(ctx context.Context, uri string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return err
	}
	resp, err := r.client().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("discovery %s: status %d: %s", uri, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// serviceName strips the fabric URI scheme the way callers write it.
func serviceName(service string) string {
	return strings.TrimPrefix(service, "fabric:/")
}

func (r *HTTPResolver) Resolve(ctx context.Context, service string, partitionKey *int64, prevVersion string) (PartitionInfo, error) {
	uri := fmt.Sprintf("http://%s/Services/%s/$/ResolvePartition?api-version=1.0", r.ClusterEndpoint, serviceName(service))
	if partitionKey != nil {
		uri += fmt.Sprintf("&PartitionKeyType=2&PartitionKeyValue=%d", *partitionKey)
	}
	if prevVersion != "" {
		uri += "&PreviousRspVersion=" + url.QueryEscape(prevVersion)
	}

	var body struct {
		Version   string
		Endpoints []struct {
			Address string
		}
	}
	if err := r.get(ctx, uri, &body); err != nil {
		return PartitionInfo{}, err
	}
	if len(body.Endpoints) == 0 {
		return PartitionInfo{}, fmt.Errorf("discovery returned no endpoints for %s", service)
	}
	// The Address field is itself a JSON document naming each listener.
	var addr struct {
		Endpoints map[string]string
	}
	if err := json.Unmarshal([]byte(body.Endpoints[0].Address), &addr); err != nil {
		return PartitionInfo{}, fmt.Errorf("parse endpoint address: %w", err)
	}
	return PartitionInfo{Version: body.Version, Endpoints: addr.Endpoints}, nil
}

func (r *HTTPResolver) Partitions(ctx context.Context, service string) ([]int64, error) {
	uri := fmt.Sprintf("http://%s/Services/%s/$/GetPartitions?api-version=1.0", r.ClusterEndpoint, serviceName(service))
	var body struct {
		Items []struct {
			PartitionInformation struct {
				LowKey string
			}
		}
	}
	if err := r.get(ctx, uri, &body); err != nil {
		return nil, err
	}
	keys := make([]int64, 0, len(body.Items))
	for _, item := range body.Items {
		k, err := strconv.ParseInt(item.PartitionInformation.LowKey, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse partition low key %q: %w", item.PartitionInformation.LowKey, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// StaticResolver serves a fixed partition table from configuration. Each
// entry owns the key range [LowKey, HighKey]; a lookup picks the range
// containing the partition key.
type StaticResolver struct {
	Table []StaticPartition
}

// StaticPartition is one configured partition range and its endpoints.
type StaticPartition struct {
	LowKey    int64
	HighKey   int64
	Endpoints map[string]string
}

func (r *StaticResolver) Resolve(ctx context.Context, service string, partitionKey *int64, prevVersion string) (PartitionInfo, error) {
	if len(r.Table) == 0 {
		return PartitionInfo{}, fmt.Errorf("static resolver has no partitions for %s", service)
	}
	if partitionKey == nil {
		return PartitionInfo{Version: "static", Endpoints: r.Table[0].Endpoints}, nil
	}
	for _, p := range r.Table {
		if *partitionKey >= p.LowKey && *partitionKey <= p.HighKey {
			return PartitionInfo{Version: "static", Endpoints: p.Endpoints}, nil
		}
	}
	return PartitionInfo{}, fmt.Errorf("no partition owns key %d", *partitionKey)
}

func (r *StaticResolver) Partitions(ctx context.Context, service string) ([]int64, error) {
	keys := make([]int64, 0, len(r.Table))
	for _, p := range r.Table {
		keys = append(keys, p.LowKey)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys, nil
}

// EndpointsResolver caches discovery results and retries stale
// endpoints. A connection-class failure of the wrapped call forces one
// cache refresh and retry; any other failure class propagates unchanged.
// The refresh loop has no internal cap and must be bounded by the
// caller's ctx; when discovery itself keeps failing the loop surfaces a
// distinct discovery-unavailable error instead of spinning silently.
type EndpointsResolver struct {
	resolver Resolver
	cache    *Cache[PartitionInfo]
}

// NewEndpointsResolver wraps a Resolver with a sliding-TTL endpoint
// cache (ttl <= 0 selects the 5 minute default).
func NewEndpointsResolver(r Resolver, ttl time.Duration) *EndpointsResolver {
	return &EndpointsResolver{resolver: r, cache: NewCache[PartitionInfo](ttl)}
}

// Partitions enumerates the service's partition keys.
func (er *EndpointsResolver) Partitions(ctx context.Context, service string) ([]int64, error) {
	return er.resolver.Partitions(ctx, service)
}

func cacheKey(service string, partitionKey *int64) string {
	if partitionKey == nil {
		return service + ";"
	}
	return service + ";" + strconv.FormatInt(*partitionKey, 10)
}

// CallWithPartition invokes fn with the partition's current endpoints,
// resolving and caching them first if needed. On a connection-class
// failure the cached entry is treated as stale: re-resolve with the
// previous version token as a hint, replace the entry whole, and retry.
func (er *EndpointsResolver) CallWithPartition(ctx context.Context, service string, partitionKey *int64, fn func(ctx context.Context, endpoints map[string]string) ([]byte, error)) ([]byte, error) {
	key := cacheKey(service, partitionKey)
	for {
		if err := ctx.Err(); err != nil {
			return nil, rpc.Errorf(rpc.CodeDiscoveryUnavailable, "partition resolution canceled: %v", err)
		}
		info, ok := er.cache.Get(key)
		if !ok {
			var err error
			info, err = er.resolver.Resolve(ctx, service, partitionKey, "")
			if err != nil {
				return nil, rpc.Errorf(rpc.CodeDiscoveryUnavailable, "resolve %s: %v", key, err)
			}
			er.cache.Add(key, info)
		}

		out, err := fn(ctx, info.Endpoints)
		if err == nil {
			return out, nil
		}
		if !isConnError(err) {
			return nil, err
		}

		logger.Warn("stale_endpoints_refreshing", "key", key, "error", err)
		fresh, rerr := er.resolver.Resolve(ctx, service, partitionKey, info.Version)
		if rerr != nil {
			return nil, rpc.Errorf(rpc.CodeDiscoveryUnavailable, "re-resolve %s: %v", key, rerr)
		}
		er.cache.Set(key, fresh)
	}
}

// CreateSpecific scopes the resolver to one (service, partition,
// endpoint name) triple for proxy construction.
func (er *EndpointsResolver) CreateSpecific(service string, partitionKey *int64, endpointName string) *ScopedResolver {
	return &ScopedResolver{er: er, Service: service, PartitionKey: partitionKey, EndpointName: endpointName}
}

// ScopedResolver wraps calls against a single named endpoint of a single
// partition.
type ScopedResolver struct {
	er           *EndpointsResolver
	Service      string
	PartitionKey *int64
	EndpointName string
}

// Call invokes fn with the scoped endpoint's current address.
func (s *ScopedResolver) Call(ctx context.Context, fn func(ctx context.Context, address string) ([]byte, error)) ([]byte, error) {
	return s.er.CallWithPartition(ctx, s.Service, s.PartitionKey, func(ctx context.Context, endpoints map[string]string) ([]byte, error) {
		addr, ok := endpoints[s.EndpointName]
		if !ok {
			return nil, fmt.Errorf("endpoint %q not published for %s", s.EndpointName, s.Service)
		}
		return fn(ctx, addr)
	})
}

// isConnError reports failures meaning the peer is unreachable, as
// opposed to application errors which must propagate without retry.
func isConnError(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	var oe *net.OpError
	if errors.As(err, &oe) {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}
