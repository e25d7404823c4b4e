package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the daemon's on-disk configuration, loaded from a TOML file. The
// owner's signing key itself is never stored here; it lives in the
// go-ethereum-style encrypted keystore file at ValidatorKeystorePath,
// decrypted at startup with an operator-supplied passphrase.
type Config struct {
	ListenAddress         string   `toml:"ListenAddress"`
	RPCAddress            string   `toml:"RPCAddress"`
	DataDir               string   `toml:"DataDir"`
	ValidatorKeystorePath string   `toml:"ValidatorKeystorePath"`
	BootstrapPeers        []string `toml:"BootstrapPeers"`
	Global                Global   `toml:"Global"`
}

// Load loads the configuration from the given path, creating a default file
// if none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(cfg.Global); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createDefault creates and saves a default configuration file. It does not
// provision a keystore; cmd/electiond creates the owner keystore on first
// run once it has an operator-supplied passphrase.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:         ":6001",
		RPCAddress:            ":8080",
		DataDir:               "./election-data",
		ValidatorKeystorePath: "./owner.keystore.json",
		BootstrapPeers:        []string{},
		Global: Global{
			Governance: Governance{
				QuorumBPS:        5000,
				PassThresholdBPS: 5000,
				VotingPeriodSecs: MinVotingPeriodSeconds,
			},
			Mempool: Mempool{MaxBytes: 4 << 20},
		},
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
