// Package config is a flat environment-variable struct loader, no
// framework, grounded on the teacher's core/pkg/config/config.go.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds every router-wide setting sourced from the environment
// (spec §6 "Environment variables").
type Config struct {
	RouterID            string
	RouterKeyID          string
	RouterEndpoint       string
	RouterPort           string
	RouterPrivateKeyPEM  string
	RouterRequirePayment bool
	RouterStateFile      string
	RouterReplayWindowMs int64
	RouterFeeBps         int
	RouterOffloadThreshold float64
	RouterMaxOffloads    int
	RouterAuctionTimeoutMs int64
	RouterRelayBootstrap []string
	RouterRelayAggregators []string
	RouterRelayTrust      map[string]float64
	RouterPeerEndpoints   map[string]string
	LNAdapterURL          string
	AdminToken            string
	RegionPolicy          *RegionPolicy
}

// Load reads Config from the environment, applying the spec's defaults
// for anything unset. It never exits the process; a caller at cmd/router
// decides whether a missing required value is a fatal (exit 64) config
// error.
func Load() (*Config, error) {
	c := &Config{
		RouterID:               os.Getenv("ROUTER_ID"),
		RouterKeyID:             os.Getenv("ROUTER_KEY_ID"),
		RouterEndpoint:          os.Getenv("ROUTER_ENDPOINT"),
		RouterPort:              getenvDefault("ROUTER_PORT", "8080"),
		RouterPrivateKeyPEM:     os.Getenv("ROUTER_PRIVATE_KEY_PEM"),
		RouterRequirePayment:    os.Getenv("ROUTER_REQUIRE_PAYMENT") == "true",
		RouterStateFile:         getenvDefault("ROUTER_STATE_FILE", "data/router-state.json"),
		RouterRelayBootstrap:    splitCSV(os.Getenv("ROUTER_RELAY_BOOTSTRAP")),
		RouterRelayAggregators:  splitCSV(os.Getenv("ROUTER_RELAY_AGGREGATORS")),
		LNAdapterURL:            os.Getenv("LN_ADAPTER_URL"),
		AdminToken:              os.Getenv("ROUTER_ADMIN_TOKEN"),
	}

	var err error
	if c.RouterReplayWindowMs, err = getenvInt64Default("ROUTER_REPLAY_WINDOW_MS", 5*60_000); err != nil {
		return nil, err
	}
	if c.RouterFeeBps, err = getenvIntDefault("ROUTER_FEE_BPS", 0); err != nil {
		return nil, err
	}
	if c.RouterOffloadThreshold, err = getenvFloatDefault("ROUTER_OFFLOAD_THRESHOLD", 0.85); err != nil {
		return nil, err
	}
	if c.RouterMaxOffloads, err = getenvIntDefault("ROUTER_MAX_OFFLOADS", 16); err != nil {
		return nil, err
	}
	if c.RouterAuctionTimeoutMs, err = getenvInt64Default("ROUTER_AUCTION_TIMEOUT_MS", 500); err != nil {
		return nil, err
	}
	c.RouterRelayTrust, err = parseTrustMap(os.Getenv("ROUTER_RELAY_TRUST"))
	if err != nil {
		return nil, err
	}
	c.RouterPeerEndpoints, err = parseStringMap(os.Getenv("ROUTER_PEER_ENDPOINTS"))
	if err != nil {
		return nil, err
	}
	c.RegionPolicy, err = LoadRegionPolicy(os.Getenv("ROUTER_REGION_POLICY_FILE"))
	if err != nil {
		return nil, err
	}

	return c, nil
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func getenvInt64Default(key string, def int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, v, err)
	}
	return n, nil
}

func getenvFloatDefault(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid float %q: %w", key, v, err)
	}
	return f, nil
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			if i > start {
				out = append(out, v[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// parseTrustMap parses "routerId=0.9,routerId2=0.5" into a map.
func parseTrustMap(v string) (map[string]float64, error) {
	out := make(map[string]float64)
	for _, pair := range splitCSV(v) {
		eq := -1
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				eq = i
				break
			}
		}
		if eq < 0 {
			return nil, fmt.Errorf("ROUTER_RELAY_TRUST: invalid entry %q", pair)
		}
		id, raw := pair[:eq], pair[eq+1:]
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("ROUTER_RELAY_TRUST: invalid trust score for %q: %w", id, err)
		}
		out[id] = f
	}
	return out, nil
}

// parseStringMap parses "routerId=https://host:port,routerId2=https://host2"
// into a map, used for ROUTER_PEER_ENDPOINTS (the base URL this router
// dispatches an offloaded job's envelope to once a peer wins an auction).
func parseStringMap(v string) (map[string]string, error) {
	out := make(map[string]string)
	for _, pair := range splitCSV(v) {
		eq := -1
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				eq = i
				break
			}
		}
		if eq < 0 {
			return nil, fmt.Errorf("ROUTER_PEER_ENDPOINTS: invalid entry %q", pair)
		}
		out[pair[:eq]] = pair[eq+1:]
	}
	return out, nil
}
