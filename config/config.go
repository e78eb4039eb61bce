package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	RPCAddress  string `toml:"RPCAddress"`
	DataDir     string `toml:"DataDir"`
	NetworkName string `toml:"NetworkName"`
	Environment string `toml:"Environment"`

	// LaunchTime is the unix timestamp investment day 1 is measured from.
	LaunchTime int64 `toml:"LaunchTime"`

	// HostBridgeURL points at the host node's AMM bridge endpoint. Settlement
	// and rebalancing stay disabled until it is configured.
	HostBridgeURL string `toml:"HostBridgeURL"`

	Keeper         string `toml:"Keeper"`
	Master         string `toml:"Master"`
	Transformer    string `toml:"Transformer"`
	ClaimToken     string `toml:"ClaimToken"`
	SyntheticToken string `toml:"SyntheticToken"`
	WrappedBase    string `toml:"WrappedBase"`
	LiquidityPair  string `toml:"LiquidityPair"`
	TransferHelper string `toml:"TransferHelper"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "launchforge-local"
	}
}

func validate(cfg *Config) error {
	for field, value := range map[string]string{
		"Keeper":         cfg.Keeper,
		"Master":         cfg.Master,
		"Transformer":    cfg.Transformer,
		"ClaimToken":     cfg.ClaimToken,
		"SyntheticToken": cfg.SyntheticToken,
		"WrappedBase":    cfg.WrappedBase,
		"LiquidityPair":  cfg.LiquidityPair,
		"TransferHelper": cfg.TransferHelper,
	} {
		if value == "" {
			continue
		}
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", field, err)
		}
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseAddress decodes a 20-byte hex address, with or without an 0x prefix.
func ParseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", s, err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("invalid address %q: want 20 bytes, got %d", s, len(raw))
	}
	copy(addr[:], raw)
	return addr, nil
}
