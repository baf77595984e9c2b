// Command router runs one federated inference-marketplace router: the
// HTTP surface in internal/httpapi plus the background loops (federation
// announce/auction, debounced persistence) that keep it alive between
// requests. Grounded on the teacher's cmd/helm/main.go dispatcher and
// lite_mode.go bootstrap.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/imattau/fed-AI-sub001/internal/config"
	"github.com/imattau/fed-AI-sub001/internal/envelope"
	"github.com/imattau/fed-AI-sub001/internal/federation"
	"github.com/imattau/fed-AI-sub001/internal/httpapi"
	"github.com/imattau/fed-AI-sub001/internal/metrics"
	"github.com/imattau/fed-AI-sub001/internal/offload"
	"github.com/imattau/fed-AI-sub001/internal/payment"
	"github.com/imattau/fed-AI-sub001/internal/persistence"
	"github.com/imattau/fed-AI-sub001/internal/registry"
	"github.com/imattau/fed-AI-sub001/internal/replay"
	"github.com/imattau/fed-AI-sub001/internal/scheduler"
	"github.com/imattau/fed-AI-sub001/internal/wire"
	"github.com/imattau/fed-AI-sub001/internal/workerpool"
	"github.com/imattau/fed-AI-sub001/pkg/lnadapter"
	"github.com/imattau/fed-AI-sub001/pkg/runner"
)

// Exit codes (SPEC_FULL §6): 0 clean shutdown, 64 config error, 70 fatal
// internal error, 74 I/O error persisting state.
const (
	exitOK         = 0
	exitConfig     = 64
	exitInternal   = 70
	exitIOFailure  = 74
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the CLI entrypoint, split out from main for testability (teacher
// convention, cmd/helm/main.go).
func Run(args []string, stdout, stderr io.Writer) int {
	sub := "serve"
	if len(args) > 1 {
		sub = args[1]
	}
	switch sub {
	case "serve", "server":
		return runServe(stdout, stderr)
	case "health":
		return runHealthCmd(stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return exitOK
	default:
		if strings.HasPrefix(sub, "-") {
			return runServe(stdout, stderr)
		}
		fmt.Fprintf(stderr, "unknown command: %s\n", sub)
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "router - federated model-inference marketplace node")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "usage: router [command]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  serve    run the router (default)")
	fmt.Fprintln(w, "  health   check a running router's /health endpoint")
	fmt.Fprintln(w, "  help     show this help")
}

func runHealthCmd(stdout, stderr io.Writer) int {
	port := os.Getenv("ROUTER_PORT")
	if port == "" {
		port = "8080"
	}
	resp, err := http.Get("http://localhost:" + port + "/health")
	if err != nil {
		fmt.Fprintf(stderr, "health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(stderr, "health check failed: status %d\n", resp.StatusCode)
		return 1
	}
	fmt.Fprintln(stdout, "OK")
	return exitOK
}

func runServe(stdout, stderr io.Writer) int {
	log := slog.Default()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitConfig
	}
	if cfg.RouterID == "" {
		fmt.Fprintln(stderr, "config: ROUTER_ID is required")
		return exitConfig
	}

	signer, err := loadOrGenerateSigner(cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "signer: %v\n", err)
		return exitConfig
	}
	if cfg.RouterKeyID == "" {
		cfg.RouterKeyID = signer.KeyID()
	}
	log.Info("router identity", "routerId", cfg.RouterID, "keyId", signer.KeyID())

	verifier := envelope.NewVerifier()
	replayStore := replay.NewMemoryStore(time.Duration(cfg.RouterReplayWindowMs) * time.Millisecond)
	reg := registry.New(registry.DefaultConfig())
	weights := scheduler.DefaultWeights()
	payCfg := payment.DefaultConfig()
	payCfg.FeeBps = cfg.RouterFeeBps
	payEngine := payment.New(payCfg)
	metricsReg := metrics.NewRegistry()
	tracer := metrics.NewProvider("router")
	defer func() {
		if err := tracer.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "err", err)
		}
	}()
	pool := workerpool.New(workerpool.DefaultSize())

	var lnAdapter lnadapter.Adapter
	if cfg.LNAdapterURL != "" {
		lnAdapter = lnadapter.NewHTTPAdapter(cfg.LNAdapterURL)
	}

	inferRunner := runner.Runner(runner.NewHTTPRunner(runnerBaseURL()))

	var fed *federation.Engine
	relayPool := buildRelayPool(cfg, log)
	if relayPool != nil {
		fedCfg := federation.DefaultConfig()
		fedCfg.AuctionTimeoutMs = cfg.RouterAuctionTimeoutMs
		fed = federation.New(cfg.RouterID, signer, verifier, relayPool, fedCfg, log)
		nowMs := time.Now().UnixMilli()
		for peerID, trust := range cfg.RouterRelayTrust {
			fed.Dir.Observe(peerID, nowMs, func(p *wire.PeerRouter) { p.TrustScore = trust })
		}
	}

	// srv is built with Offload nil first: offload.New needs srv.Estimator,
	// and srv.Offload is set onto the same pointer once the controller
	// exists, avoiding a circular constructor dependency.
	srv := httpapi.NewServer(cfg, httpapi.Server{
		Signer:   signer,
		Verifier: verifier,
		Replay:   replayStore,
		Registry: reg,
		Weights:  weights,
		Payment:  payEngine,
		Fed:      fed,
		Runner:   inferRunner,
		LN:       lnAdapter,
		Metrics:  metricsReg,
		Tracer:   tracer,
		Pool:     pool,
		Mode:     persistenceMode(cfg),
		Log:      log,
	})

	if fed != nil {
		offloadCfg := offload.DefaultConfig()
		offloadCfg.OffloadThreshold = cfg.RouterOffloadThreshold
		offloadCfg.MaxOffloads = cfg.RouterMaxOffloads
		offloadCfg.AuctionTimeoutMs = cfg.RouterAuctionTimeoutMs
		// offload.New registers its own RFB/bid handlers on fed.
		srv.Offload = offload.New(fed, offloadCfg, srv.Estimator(), log)
	}

	store, postgres, err := setupPersistence(ctx, cfg, reg, payEngine, fed, log)
	if err != nil {
		fmt.Fprintf(stderr, "persistence: %v\n", err)
		return exitIOFailure
	}
	if postgres != nil {
		defer postgres.Close()
	}
	srv.Store = store

	if fed != nil {
		go fed.Start(ctx, func() wire.CapabilityProfile {
			return wire.CapabilityProfile{ModelIDs: modelIDs(reg)}
		}, func() []wire.PriceSheetEntry {
			return nil
		}, func() wire.LoadSummary {
			return wire.LoadSummary{LoadFactor: srv.LoadFactor(time.Now().UnixMilli())}
		})
	}
	if store != nil {
		go store.Run(ctx, 5_000)
	}

	httpSrv := &http.Server{Addr: ":" + cfg.RouterPort, Handler: srv.Routes()}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("router listening", "addr", httpSrv.Addr, "mode", srv.Mode)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(stderr, "server: %v\n", err)
			return exitInternal
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn("graceful shutdown failed", "err", err)
		}
		if store != nil {
			store.RequestSave()
		}
		if postgres != nil {
			snap := persistence.Sources{Registry: reg, Payment: payEngine, Peers: directoryOf(fed)}.Collect()
			if err := postgres.Save(context.Background(), snap); err != nil {
				log.Warn("final postgres save failed", "err", err)
			}
		}
	}
	return exitOK
}

// modelIDs collects the distinct model IDs this router's nodes advertise,
// for the router's own CAPS_ANNOUNCE (spec §4.7).
func modelIDs(reg *registry.Registry) []string {
	seen := make(map[string]bool)
	var out []string
	for _, n := range reg.List() {
		for _, c := range n.Capabilities {
			if !seen[c.ModelID] {
				seen[c.ModelID] = true
				out = append(out, c.ModelID)
			}
		}
	}
	return out
}

func directoryOf(fed *federation.Engine) *federation.Directory {
	if fed == nil {
		return federation.NewDirectory()
	}
	return fed.Dir
}

// persistenceMode reports "postgres" when ROUTER_STATE_FILE names a DSN,
// else "lite" (file-backed), matching the teacher's lite-vs-postgres
// status surface.
func persistenceMode(cfg *config.Config) string {
	if strings.HasPrefix(cfg.RouterStateFile, "postgres://") {
		return "postgres"
	}
	return "lite"
}

// setupPersistence wires either the file-backed Store or an
// OpenPostgresStore, selected by whether ROUTER_STATE_FILE looks like a
// Postgres DSN (SPEC_FULL §4.9). Either way it loads and restores any
// existing snapshot before returning.
func setupPersistence(ctx context.Context, cfg *config.Config, reg *registry.Registry, pay *payment.Engine, fed *federation.Engine, log *slog.Logger) (*persistence.Store, *persistence.PostgresStore, error) {
	dir := directoryOf(fed)
	sources := persistence.Sources{Registry: reg, Payment: pay, Peers: dir}

	if persistenceMode(cfg) == "postgres" {
		pg, err := persistence.OpenPostgresStore(ctx, cfg.RouterStateFile, cfg.RouterID)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		if snap, ok, err := pg.Load(ctx); err != nil {
			return nil, pg, fmt.Errorf("load postgres snapshot: %w", err)
		} else if ok {
			sources.Restore(snap)
			log.Info("persistence: restored from postgres", "routerId", cfg.RouterID)
		}
		return nil, pg, nil
	}

	if dir := filepath.Dir(cfg.RouterStateFile); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	store := persistence.NewStore(cfg.RouterStateFile, sources.Collect, log)
	if snap, ok := store.Load(); ok {
		sources.Restore(snap)
		log.Info("persistence: restored from file", "path", cfg.RouterStateFile)
	}
	return store, nil, nil
}

// buildRelayPool wires ROUTER_RELAY_BOOTSTRAP/ROUTER_RELAY_AGGREGATORS
// into a federation.Pool; nil when neither is set (standalone router,
// spec §6 "routers may run without federation").
func buildRelayPool(cfg *config.Config, log *slog.Logger) *federation.Pool {
	urls := append(append([]string{}, cfg.RouterRelayBootstrap...), cfg.RouterRelayAggregators...)
	if len(urls) == 0 {
		return nil
	}
	relays := make([]*federation.Relay, 0, len(urls))
	for _, u := range urls {
		relays = append(relays, federation.NewRelay(u, 30_000, log))
	}
	return federation.NewPool(relays)
}

func runnerBaseURL() string {
	if v := os.Getenv("ROUTER_RUNNER_URL"); v != "" {
		return v
	}
	return "http://localhost:9090"
}

// loadOrGenerateSigner resolves the router's signing key, in order: the
// hex-encoded seed in ROUTER_PRIVATE_KEY_PEM, a persistent key file at
// ROUTER_KEY_FILE (default data/router.key), or — outside
// ROUTER_PRODUCTION=1 — a freshly generated one persisted to that same
// file (spec §6, grounded on the teacher's lite_mode.go
// loadOrGenerateSigner).
func loadOrGenerateSigner(cfg *config.Config, log *slog.Logger) (*envelope.Ed25519Signer, error) {
	if cfg.RouterPrivateKeyPEM != "" {
		seed, err := hex.DecodeString(strings.TrimSpace(cfg.RouterPrivateKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("invalid ROUTER_PRIVATE_KEY_PEM: %w", err)
		}
		return envelope.NewEd25519SignerFromSeed(seed)
	}

	keyPath := os.Getenv("ROUTER_KEY_FILE")
	if keyPath == "" {
		keyPath = "data/router.key"
	}
	if data, err := os.ReadFile(keyPath); err == nil {
		seed, err := hex.DecodeString(strings.TrimSpace(string(data)))
		if err != nil {
			return nil, fmt.Errorf("invalid key file %s: %w", keyPath, err)
		}
		signer, err := envelope.NewEd25519SignerFromSeed(seed)
		if err != nil {
			return nil, err
		}
		log.Info("loaded persistent router key", "path", keyPath)
		return signer, nil
	}

	if os.Getenv("ROUTER_PRODUCTION") == "1" {
		return nil, fmt.Errorf("production mode requires %s to exist", keyPath)
	}

	seed := make([]byte, 32)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate key seed: %w", err)
	}
	signer, err := envelope.NewEd25519SignerFromSeed(seed)
	if err != nil {
		return nil, err
	}
	if dir := filepath.Dir(keyPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create key dir: %w", err)
		}
	}
	if err := os.WriteFile(keyPath, []byte(hex.EncodeToString(seed)), 0o600); err != nil {
		return nil, fmt.Errorf("write key file: %w", err)
	}
	log.Warn("generated new router key; this is unsafe for production", "path", keyPath)
	return signer, nil
}
