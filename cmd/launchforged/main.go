package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"launchforge/config"
	"launchforge/native/synth"
	"launchforge/native/transformer"
	"launchforge/observability/logging"
	"launchforge/observability/metrics"
	"launchforge/rpc"
	"launchforge/state"
)

func main() {
	configFile := flag.String("config", "./launchforge.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("LAUNCHFORGE_ENV"))
	logger := logging.Setup("launchforged", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	store, err := state.Open(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open state store: %v", err))
	}
	defer store.Close()

	addrs, err := resolveAddresses(cfg)
	if err != nil {
		logger.Error("Failed to parse configured addresses", slog.Any("error", err))
		os.Exit(1)
	}

	if err := seedState(store, addrs); err != nil {
		logger.Error("Failed to seed engine state", slog.Any("error", err))
		os.Exit(1)
	}

	emitter := &metricsEmitter{logger: logger, metrics: metrics.Launch()}

	// The AMM lives on the host node; without a bridge endpoint the engines
	// serve contributions and queries but refuse settlement and rebalancing.
	var bridge *bridgeClient
	if strings.TrimSpace(cfg.HostBridgeURL) != "" {
		bridge, err = newBridgeClient(cfg.HostBridgeURL)
		if err != nil {
			logger.Error("Failed to build host bridge client", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Host AMM bridge configured", slog.String("url", cfg.HostBridgeURL))
	} else {
		logger.Warn("No host bridge configured; settlement and rebalancing are disabled")
	}

	n := newNode(store, addrs, cfg.LaunchTime, bridge, emitter)
	server := rpc.NewServer(n, n)
	logger.Info("launchforged starting",
		slog.String("network", cfg.NetworkName),
		slog.String("env", env),
		slog.String("rpc", cfg.RPCAddress),
	)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

type addresses struct {
	keeper         [20]byte
	master         [20]byte
	transformer    [20]byte
	claimToken     [20]byte
	syntheticToken [20]byte
	wrappedBase    [20]byte
	liquidityPair  [20]byte
	transferHelper [20]byte
}

func resolveAddresses(cfg *config.Config) (*addresses, error) {
	addrs := &addresses{}
	for _, entry := range []struct {
		name  string
		value string
		dst   *[20]byte
	}{
		{"Keeper", cfg.Keeper, &addrs.keeper},
		{"Master", cfg.Master, &addrs.master},
		{"Transformer", cfg.Transformer, &addrs.transformer},
		{"ClaimToken", cfg.ClaimToken, &addrs.claimToken},
		{"SyntheticToken", cfg.SyntheticToken, &addrs.syntheticToken},
		{"WrappedBase", cfg.WrappedBase, &addrs.wrappedBase},
		{"LiquidityPair", cfg.LiquidityPair, &addrs.liquidityPair},
		{"TransferHelper", cfg.TransferHelper, &addrs.transferHelper},
	} {
		if strings.TrimSpace(entry.value) == "" {
			continue
		}
		parsed, err := config.ParseAddress(entry.value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.name, err)
		}
		*entry.dst = parsed
	}
	return addrs, nil
}

// seedState writes the configured contract wiring into the store on first
// start. Existing state always wins; a populated store is never overwritten.
func seedState(store *state.Store, addrs *addresses) error {
	transformerState := store.Transformer()
	settings, err := transformerState.SettingsGet()
	if err != nil {
		return err
	}
	if settings == nil {
		if err := transformerState.SettingsPut(&transformer.Settings{
			ClaimToken:  addrs.claimToken,
			Pair:        addrs.liquidityPair,
			Synthetic:   addrs.syntheticToken,
			WrappedBase: addrs.wrappedBase,
			Keeper:      addrs.keeper,
		}); err != nil {
			return err
		}
	}

	synthState := store.Synth()
	synthSettings, err := synthState.SettingsGet()
	if err != nil {
		return err
	}
	if synthSettings == nil {
		if err := synthState.SettingsPut(&synth.Settings{
			Pair:         addrs.liquidityPair,
			WrappedToken: addrs.wrappedBase,
			Transformer:  addrs.transformer,
		}); err != nil {
			return err
		}
	}

	lifecycle, err := synthState.LifecycleGet()
	if err != nil {
		return err
	}
	if lifecycle == nil {
		if err := synthState.LifecyclePut(&synth.Lifecycle{Master: addrs.master}); err != nil {
			return err
		}
	}
	return nil
}
