package common

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"path/filepath"

	"metag-stakepool-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"
)

type NetworkFileEntry struct {
	Url          string `yaml:"url"`
	Gas          uint64 `yaml:"gas"`
	GasPriceGwei string `yaml:"gas_price_gwei"`
	ChainId      int64  `yaml:"chain_id"`
	AccountsEnv  string `yaml:"accounts_env"`
	Simulated    bool   `yaml:"simulated"`
}

type NetworksFile struct {
	Networks map[string]NetworkFileEntry `yaml:"networks"`
}

// LoadNetworks overlays the profiles of networksFile onto builtins. A missing
// file is not an error. Entries may reference environment variables in their
// url ("${AVALANCHE_URL}") and name the variable holding their signing key.
func LoadNetworks(networksFile string, builtins map[string]models.NetworkProfile) (map[string]models.NetworkProfile, error) {
	profiles := make(map[string]models.NetworkProfile, len(builtins))
	for name, profile := range builtins {
		profiles[name] = profile
	}

	var networksPath string
	if filepath.IsAbs(networksFile) {
		networksPath = networksFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		networksPath = filepath.Join(wd, networksFile)
	}

	data, err := os.ReadFile(networksPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return profiles, nil
		}
		return nil, fmt.Errorf("unable to read %s: %w", networksFile, err)
	}

	var config NetworksFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", networksFile, err)
	}

	for name, entry := range config.Networks {
		profile, err := mergeNetwork(name, profiles[name], entry)
		if err != nil {
			return nil, fmt.Errorf("network %s in %s: %w", name, networksFile, err)
		}
		profiles[name] = profile
	}

	zap.L().Debug("Loaded network profiles", zap.String("file", networksPath), zap.Int("count", len(config.Networks)))
	return profiles, nil
}

func mergeNetwork(name string, base models.NetworkProfile, entry NetworkFileEntry) (models.NetworkProfile, error) {
	profile := base
	profile.Name = name

	if entry.Url != "" {
		profile.Url = os.ExpandEnv(entry.Url)
	}
	if entry.Gas != 0 {
		profile.Gas = entry.Gas
	}
	if entry.GasPriceGwei != "" {
		gwei, err := decimal.NewFromString(entry.GasPriceGwei)
		if err != nil {
			return models.NetworkProfile{}, fmt.Errorf("invalid gas_price_gwei %q: %w", entry.GasPriceGwei, err)
		}
		wei := gwei.Shift(9)
		if !wei.IsInteger() || wei.IsNegative() {
			return models.NetworkProfile{}, fmt.Errorf("gas_price_gwei %q is not a whole number of wei", entry.GasPriceGwei)
		}
		profile.GasPrice = wei.BigInt()
	}
	if entry.ChainId != 0 {
		profile.ChainId = entry.ChainId
	}
	if entry.AccountsEnv != "" {
		profile.Accounts = nil
		if key := os.Getenv(entry.AccountsEnv); key != "" {
			profile.Accounts = []string{key}
		}
	}
	if entry.Simulated {
		profile.Simulated = true
	}

	if profile.GasPrice == nil {
		profile.GasPrice = big.NewInt(0)
	}
	if profile.ChainId == 0 {
		return models.NetworkProfile{}, fmt.Errorf("missing chain_id")
	}
	if !profile.Simulated && profile.Url == "" {
		return models.NetworkProfile{}, fmt.Errorf("missing url")
	}
	return profile, nil
}
