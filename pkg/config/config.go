// Package config loads the node configuration from a yaml file merged
// with environment variables. Explicit command-line flags win over both.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Cluster  ClusterConfig  `yaml:"cluster"`
	Sweep    SweepConfig    `yaml:"sweep"`
	Security SecurityConfig `yaml:"security"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the listener settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	// PipeSocket, when set, additionally serves the framed pipe
	// transport on this unix socket path.
	PipeSocket string `yaml:"pipe_socket"`
}

// Addr renders address:port for net/http.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// StorageConfig holds the keyspace location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ClusterConfig names this node's service and how peers are discovered.
type ClusterConfig struct {
	// ServiceName is the discovery name of the auction service.
	ServiceName string `yaml:"service_name"`
	// EndpointName selects which published listener peers call.
	EndpointName string `yaml:"endpoint_name"`
	// Gateway additionally mounts the routed operation surface, letting
	// this node answer client calls for state it does not own.
	Gateway   bool            `yaml:"gateway"`
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// DiscoveryConfig selects and parameterizes the endpoint resolver.
type DiscoveryConfig struct {
	// Mode is "http" (cluster manager REST query) or "static"
	// (fixed partition table below).
	Mode string `yaml:"mode"`
	// Endpoint is the cluster manager host:port for mode http.
	Endpoint string `yaml:"endpoint"`
	// CacheTTL is the sliding endpoint-cache TTL (duration string).
	CacheTTL   string                  `yaml:"cache_ttl"`
	Partitions []StaticPartitionConfig `yaml:"partitions"`
}

// StaticPartitionConfig is one partition range for mode static.
type StaticPartitionConfig struct {
	LowKey    int64             `yaml:"low_key"`
	HighKey   int64             `yaml:"high_key"`
	Endpoints map[string]string `yaml:"endpoints"`
}

// CacheTTLDuration parses the cache TTL, zero when unset.
func (d DiscoveryConfig) CacheTTLDuration() (time.Duration, error) {
	if d.CacheTTL == "" {
		return 0, nil
	}
	return time.ParseDuration(d.CacheTTL)
}

// SweepConfig configures the expiry sweep scheduler.
type SweepConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// SecurityConfig holds CORS and rate-limit settings.
type SecurityConfig struct {
	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Effective is the merged configuration plus where its decisive values
// came from, for the startup banner.
type Effective struct {
	Config *Config
	Addr   string
	DBPath string
	Source string // "flags", "env" or "config"
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Server.Address = "0.0.0.0"
	cfg.Server.Port = 8080
	cfg.Storage.DBPath = "./data"
	cfg.Cluster.ServiceName = "SFAuction/AuctionSvcInstance"
	cfg.Cluster.EndpointName = "ReplicaEndpoint"
	cfg.Cluster.Discovery.Mode = "static"
	cfg.Sweep.Cron = ""
	return cfg
}

// Load reads the yaml file (when path is non-empty and exists) over the
// defaults, then applies env overrides.
func Load(path string) (*Config, string, error) {
	cfg := defaults()
	source := "defaults"

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, "", fmt.Errorf("read config %s: %w", path, err)
			}
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, "", fmt.Errorf("parse config %s: %w", path, err)
			}
			source = "config"
		}
	}

	if v := os.Getenv("SFAUCTION_ADDR"); v != "" {
		cfg.Server.Address = v
		source = "env"
	}
	if v := os.Getenv("SFAUCTION_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return nil, "", fmt.Errorf("SFAUCTION_PORT: %w", err)
		}
		cfg.Server.Port = p
		source = "env"
	}
	if v := os.Getenv("SFAUCTION_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
		source = "env"
	}
	if v := os.Getenv("SFAUCTION_CLUSTER_ENDPOINT"); v != "" {
		cfg.Cluster.Discovery.Mode = "http"
		cfg.Cluster.Discovery.Endpoint = v
		source = "env"
	}
	if v := os.Getenv("SFAUCTION_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// zero-config single-box mode: with static discovery and no table,
	// this node owns the whole key space and resolves to itself
	if cfg.Cluster.Discovery.Mode == "static" && len(cfg.Cluster.Discovery.Partitions) == 0 {
		cfg.Cluster.Discovery.Partitions = []StaticPartitionConfig{{
			LowKey:  math.MinInt64,
			HighKey: math.MaxInt64,
			Endpoints: map[string]string{
				cfg.Cluster.EndpointName: fmt.Sprintf("http://127.0.0.1:%d/rpc", cfg.Server.Port),
			},
		}}
	}

	return cfg, source, nil
}

// Validate rejects configurations the node cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if c.Cluster.ServiceName == "" {
		return fmt.Errorf("cluster.service_name is required")
	}
	switch c.Cluster.Discovery.Mode {
	case "http":
		if c.Cluster.Discovery.Endpoint == "" {
			return fmt.Errorf("cluster.discovery.endpoint is required for mode http")
		}
	case "static":
		if len(c.Cluster.Discovery.Partitions) == 0 {
			return fmt.Errorf("cluster.discovery.partitions is required for mode static")
		}
	default:
		return fmt.Errorf("unknown discovery mode %q", c.Cluster.Discovery.Mode)
	}
	if _, err := c.Cluster.Discovery.CacheTTLDuration(); err != nil {
		return fmt.Errorf("cluster.discovery.cache_ttl: %w", err)
	}
	return nil
}
