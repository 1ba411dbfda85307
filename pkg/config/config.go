// Copyright 2025 Lattice Relay
//
// Config: the relayer's two-chain-pair configuration (spec.md §6). Grounded
// on the teacher's pkg/config/config.go, which keeps a flat env-var-driven
// Load()/Validate() with getEnv*/parse* helpers; this package keeps that
// same Load()-returns-(*Config, error) shape and helper set, but the
// document itself is a YAML file (chain_a/chain_b/core, per spec.md §6)
// parsed with gopkg.in/yaml.v3 rather than the teacher's flat env vars,
// since a relay pair's configuration is naturally nested and the teacher's
// own go.mod already carries yaml.v3. Secrets (account keys, cache URLs)
// still come from the environment, following the teacher's "required
// variables have no defaults" convention for anything sensitive.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ChainKind names which chain.Kind a configured chain uses.
type ChainKind string

const (
	ChainParachain ChainKind = "parachain"
	ChainCosmos    ChainKind = "cosmos"
	ChainEthereum  ChainKind = "ethereum"
)

// ChannelConfig names one whitelisted (port, channel) pair (spec.md §6).
type ChannelConfig struct {
	PortID    string `yaml:"port_id"`
	ChannelID string `yaml:"channel_id"`
}

// ChainConfig is one side of the relayed pair (spec.md §6's chain_a/chain_b
// block).
type ChainConfig struct {
	Kind ChainKind `yaml:"kind"`
	Name string    `yaml:"name"`

	// Endpoint is the WS endpoint for ParachainLike, the RPC endpoint for
	// CosmosLike/EvmLike.
	Endpoint string `yaml:"endpoint"`

	// AccountID is the signer/account identifier this chain submits as.
	// AccountKeyEnv names an environment variable carrying the credential
	// instead, following the teacher's practice of keeping secrets
	// (ETH_PRIVATE_KEY, JWT_SECRET) out of checked-in config.
	AccountID     string `yaml:"account_id"`
	AccountKeyEnv string `yaml:"account_key_env"`

	CommitmentPrefix  string        `yaml:"commitment_prefix"`
	ExpectedBlockTime time.Duration `yaml:"expected_block_time"`
	BlockMaxWeight    uint64        `yaml:"block_max_weight"`
	ClientType        string        `yaml:"client_type"`

	// ClientID/ConnectionID may be pre-populated to skip the bootstrap
	// handshake (spec.md §4.2: "before the main loop starts").
	ClientID     string          `yaml:"client_id"`
	ConnectionID string          `yaml:"connection_id"`
	Channels     []ChannelConfig `yaml:"channels"`

	// WasmCodeID/WasmClientType configure the Wrapped meta-client decorator
	// (spec.md §4.1); both empty means this chain is used directly.
	WasmCodeID     string `yaml:"wasm_code_id"`
	WasmClientType string `yaml:"wasm_client_type"`

	// ParachainLike-only.
	FinalitySampleRate uint64 `yaml:"finality_sample_rate"`

	// EvmLike-only.
	EthChainID        int64  `yaml:"eth_chain_id"`
	ConfirmationDepth uint64 `yaml:"confirmation_depth"`
	HandlerAddress    string `yaml:"handler_address"`
	SignerKeyEnv      string `yaml:"signer_key_env"`
	GasLimit          uint64 `yaml:"gas_limit"`

	// SignerKeyHex is resolved from SignerKeyEnv by applyEnvOverrides; never
	// set it directly in the YAML document.
	SignerKeyHex string `yaml:"-"`
}

// CoreConfig carries the relayer-wide policy knobs (spec.md §6's common
// options).
type CoreConfig struct {
	SkipOptionalClientUpdates bool   `yaml:"skip_optional_client_updates"`
	MaxPacketsToProcess       uint32 `yaml:"max_packets_to_process"`
	PrometheusEndpoint        string `yaml:"prometheus_endpoint"`
	StateCacheURL             string `yaml:"state_cache_url"`

	SubmitMaxAttempts  uint          `yaml:"submit_max_attempts"`
	SubmitInitialDelay time.Duration `yaml:"submit_initial_delay"`
	SubmitMaxDelay     time.Duration `yaml:"submit_max_delay"`
}

// Config is the full relayer configuration document (spec.md §6).
type Config struct {
	ChainA ChainConfig `yaml:"chain_a"`
	ChainB ChainConfig `yaml:"chain_b"`
	Core   CoreConfig  `yaml:"core"`
}

// Load reads and parses a YAML config file at path, applies defaults, and
// layers environment-variable overrides for secrets on top. Call Validate()
// on the result before starting the engine.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ChainA.FinalitySampleRate == 0 {
		cfg.ChainA.FinalitySampleRate = 6
	}
	if cfg.ChainB.FinalitySampleRate == 0 {
		cfg.ChainB.FinalitySampleRate = 6
	}
	if cfg.ChainA.ConfirmationDepth == 0 {
		cfg.ChainA.ConfirmationDepth = 12
	}
	if cfg.ChainB.ConfirmationDepth == 0 {
		cfg.ChainB.ConfirmationDepth = 12
	}
	if cfg.Core.MaxPacketsToProcess == 0 {
		cfg.Core.MaxPacketsToProcess = uint32(getEnvInt("RELAY_MAX_PACKETS", 100))
	}
	if cfg.Core.SubmitMaxAttempts == 0 {
		cfg.Core.SubmitMaxAttempts = 5
	}
	if cfg.Core.SubmitInitialDelay == 0 {
		cfg.Core.SubmitInitialDelay = getEnvDuration("RELAY_SUBMIT_INITIAL_DELAY", 500*time.Millisecond)
	}
	if cfg.Core.SubmitMaxDelay == 0 {
		cfg.Core.SubmitMaxDelay = getEnvDuration("RELAY_SUBMIT_MAX_DELAY", 30*time.Second)
	}
}

// applyEnvOverrides lets the operator supply secrets and deployment-specific
// endpoints outside the checked-in YAML file, following the teacher's
// getEnv-with-fallback convention.
func applyEnvOverrides(cfg *Config) {
	if cfg.ChainA.AccountKeyEnv != "" {
		cfg.ChainA.AccountID = getEnv(cfg.ChainA.AccountKeyEnv, cfg.ChainA.AccountID)
	}
	if cfg.ChainB.AccountKeyEnv != "" {
		cfg.ChainB.AccountID = getEnv(cfg.ChainB.AccountKeyEnv, cfg.ChainB.AccountID)
	}
	if cfg.ChainA.SignerKeyEnv != "" {
		cfg.ChainA.SignerKeyHex = os.Getenv(cfg.ChainA.SignerKeyEnv)
	}
	if cfg.ChainB.SignerKeyEnv != "" {
		cfg.ChainB.SignerKeyHex = os.Getenv(cfg.ChainB.SignerKeyEnv)
	}
	cfg.Core.StateCacheURL = getEnv("RELAY_STATE_CACHE_URL", cfg.Core.StateCacheURL)
	cfg.Core.PrometheusEndpoint = getEnv("RELAY_PROMETHEUS_ENDPOINT", cfg.Core.PrometheusEndpoint)
}

// Validate checks that both chain sides carry the minimum fields the relay
// engine needs to start, aggregating every problem into one error, the way
// the teacher's Validate() reports every missing env var at once instead of
// failing on the first.
func (c *Config) Validate() error {
	var errs []string
	errs = append(errs, validateChain("chain_a", c.ChainA)...)
	errs = append(errs, validateChain("chain_b", c.ChainB)...)
	if c.ChainA.Name != "" && c.ChainA.Name == c.ChainB.Name {
		errs = append(errs, "chain_a.name and chain_b.name must differ")
	}
	if c.ChainA.Endpoint != "" && c.ChainA.Endpoint == c.ChainB.Endpoint {
		errs = append(errs, "chain_a and chain_b must not share an endpoint")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func validateChain(label string, c ChainConfig) []string {
	var errs []string
	switch c.Kind {
	case ChainParachain, ChainCosmos, ChainEthereum:
	default:
		errs = append(errs, fmt.Sprintf("%s.kind must be one of parachain|cosmos|ethereum, got %q", label, c.Kind))
	}
	if c.Name == "" {
		errs = append(errs, label+".name is required")
	}
	if c.Endpoint == "" {
		errs = append(errs, label+".endpoint is required")
	}
	if c.AccountID == "" {
		errs = append(errs, label+".account_id is required (set directly, or via account_key_env)")
	}
	if (c.WasmCodeID == "") != (c.WasmClientType == "") {
		errs = append(errs, label+".wasm_code_id and wasm_client_type must be set together")
	}
	return errs
}

// Helper functions for environment variable parsing, kept in the teacher's
// style (pkg/config/config.go's getEnv/getEnvInt/getEnvBool/getEnvDuration).

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
