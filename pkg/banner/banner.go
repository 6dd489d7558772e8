package banner

import (
	"fmt"
	"strings"

	"github.com/lnaie/sfAuction/pkg/config"
)

const banner = `
 ███████╗███████╗ █████╗ ██╗   ██╗ ██████╗████████╗██╗ ██████╗ ███╗   ██╗
 ██╔════╝██╔════╝██╔══██╗██║   ██║██╔════╝╚══██╔══╝██║██╔═══██╗████╗  ██║
 ███████╗█████╗  ███████║██║   ██║██║        ██║   ██║██║   ██║██╔██╗ ██║
 ╚════██║██╔══╝  ██╔══██║██║   ██║██║        ██║   ██║██║   ██║██║╚██╗██║
 ███████║██║     ██║  ██║╚██████╔╝╚██████╗   ██║   ██║╚██████╔╝██║ ╚████║
 ╚══════╝╚═╝     ╚═╝  ╚═╝ ╚═════╝  ╚═════╝   ╚═╝   ╚═╝ ╚═════╝ ╚═╝  ╚═══╝
`

// Print writes the startup banner with the effective configuration.
func Print(eff config.Effective, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:    %s\n", eff.Addr)
	fmt.Printf("DB Path:   %s\n", eff.DBPath)
	fmt.Printf("Service:   %s\n", eff.Config.Cluster.ServiceName)
	fmt.Printf("Discovery: %s\n", eff.Config.Cluster.Discovery.Mode)
	if eff.Config.Cluster.Gateway {
		fmt.Println("Gateway:   enabled")
	}
	if version != "" {
		fmt.Printf("Version:   %s\n", version)
	}
	if eff.Source != "" {
		fmt.Printf("Config sources: %s\n", eff.Source)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET /rpc?jsonrpc=<request>  - partition operations (JSON-RPC)")
	if eff.Config.Cluster.Gateway {
		fmt.Println("GET /gateway?jsonrpc=<request> - routed operations (JSON-RPC)")
	}
	fmt.Println("GET /healthz, /readyz, /metrics")
	fmt.Println("\n== Example ====================================================")
	req := `{"jsonrpc":"2.0","id":1,"method":"GetAuctionItems"}`
	fmt.Printf("curl 'http://localhost%s/rpc?jsonrpc=%s'\n\n", portSuffix(eff.Addr), req)
}

func portSuffix(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[i:]
	}
	return addr
}
