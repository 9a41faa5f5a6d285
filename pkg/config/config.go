package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"gopkg.in/yaml.v3"
)

// DefaultDedupCacheSize is the default number of notifications remembered by
// the watcher to skip duplicates.
const DefaultDedupCacheSize = 1024

// Version is the version of the lottery tool, set at build time.
var Version string

// Config is the top-level lottery tool configuration.
type Config struct {
	Lottery Lottery `yaml:"Lottery"`
	Watcher Watcher `yaml:"Watcher"`
}

// Lottery contains the settings needed to interact with the deployed contract.
type Lottery struct {
	RPCEndpoint string `yaml:"RPCEndpoint"`
	// Contract is the contract hash in LE form (with or without 0x prefix) or
	// the contract address.
	Contract string `yaml:"Contract"`
	Wallet   Wallet `yaml:"Wallet"`
	LogLevel string `yaml:"LogLevel"`
	LogPath  string `yaml:"LogPath"`
}

// Wallet is a wallet location with an optional password for its accounts.
type Wallet struct {
	Path     string `yaml:"Path"`
	Password string `yaml:"Password"`
}

// Watcher is the event watcher configuration.
type Watcher struct {
	HistoryPath    string       `yaml:"HistoryPath"`
	DedupCacheSize int          `yaml:"DedupCacheSize"`
	Prometheus     BasicService `yaml:"Prometheus"`
}

// Load reads the configuration file at the given path, unknown fields are not
// allowed.
func Load(configPath string) (Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config '%s' doesn't exist", configPath)
	}
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return Config{}, fmt.Errorf("unable to read config: %w", err)
	}
	return Decode(configData)
}

// Decode parses the configuration from its YAML representation filling in
// defaults for missing values and validates it.
func Decode(data []byte) (Config, error) {
	cfg := Config{
		Watcher: Watcher{
			DedupCacheSize: DefaultDedupCacheSize,
		},
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	err := decoder.Decode(&cfg)
	if err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to unmarshal config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.Lottery.Contract != "" {
		if _, err := c.Lottery.ContractHash(); err != nil {
			return fmt.Errorf("Lottery.Contract: %w", err)
		}
	}
	if c.Watcher.DedupCacheSize < 0 {
		return fmt.Errorf("Watcher.DedupCacheSize: negative value %d", c.Watcher.DedupCacheSize)
	}
	return nil
}

// ContractHash returns the configured contract hash.
func (l Lottery) ContractHash() (util.Uint160, error) {
	if l.Contract == "" {
		return util.Uint160{}, errors.New("contract is not specified")
	}
	return ParseHash(l.Contract)
}

// ParseHash parses a Uint160 from either an LE string (with or without 0x
// prefix) or an address.
func ParseHash(s string) (util.Uint160, error) {
	const uint160size = 2 * util.Uint160Size
	switch len(s) {
	case uint160size, uint160size + 2:
		return util.Uint160DecodeStringLE(strings.TrimPrefix(s, "0x"))
	default:
		return address.StringToUint160(s)
	}
}
