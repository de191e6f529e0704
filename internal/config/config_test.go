package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("NETWORK", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("REPORT_GAS", "")
	t.Setenv("TMETAG_ADDRESS", "")
	t.Setenv("METAG_ADDRESS", "")
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Network.Name != "hardhat" || !cfg.Network.Profile.Simulated {
		t.Errorf("Expected simulated hardhat network, got %+v", cfg.Network.Profile)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Expected in-memory ledger for the simulated network, got %s", cfg.Database.Path)
	}
	if cfg.GasReport.Enabled {
		t.Error("Expected gas report to be disabled")
	}
	if cfg.Monitor.PollingInterval != 30*time.Second {
		t.Errorf("Expected 30s polling interval, got %v", cfg.Monitor.PollingInterval)
	}
	if len(cfg.Network.Profile.Accounts) != 3 {
		t.Errorf("Expected 3 development accounts, got %d", len(cfg.Network.Profile.Accounts))
	}
}

func TestLoad_Mainnet(t *testing.T) {
	t.Setenv("NETWORK", "mainnet")
	t.Setenv("AVALANCHE_URL", "https://api.avax.network/ext/bc/C/rpc")
	t.Setenv("PRIVATE_KEY", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	profile := cfg.Network.Profile
	if profile.Url != "https://api.avax.network/ext/bc/C/rpc" {
		t.Errorf("Unexpected url %s", profile.Url)
	}
	if profile.Gas != 2_100_000 {
		t.Errorf("Expected gas 2100000, got %d", profile.Gas)
	}
	if profile.GasPrice.String() != "225000000000" {
		t.Errorf("Expected gas price 225 gwei, got %s", profile.GasPrice.String())
	}
	if profile.ChainId != 43114 {
		t.Errorf("Expected chain id 43114, got %d", profile.ChainId)
	}
	if len(profile.Accounts) != 1 {
		t.Errorf("Expected one account, got %d", len(profile.Accounts))
	}
	if cfg.Database.Path != "stakepool.db" {
		t.Errorf("Expected file-backed ledger, got %s", cfg.Database.Path)
	}
}

func TestLoad_MainnetWithoutKey(t *testing.T) {
	t.Setenv("NETWORK", "mainnet")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("AVALANCHE_URL", "")
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Network.Profile.HasAccounts() {
		t.Error("Expected no accounts without PRIVATE_KEY")
	}
}

func TestLoad_TokenAddressFallback(t *testing.T) {
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NETWORK", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("TMETAG_ADDRESS", "")
	t.Setenv("METAG_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Contract.StakeToken != "0x5FbDB2315678afecb367f032d93F642f64180aa3" {
		t.Errorf("Expected METAG_ADDRESS fallback, got %q", cfg.Contract.StakeToken)
	}

	t.Setenv("TMETAG_ADDRESS", "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512")
	cfg, _ = Load()
	if cfg.Contract.StakeToken != "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512" || cfg.Contract.RewardToken != cfg.Contract.StakeToken {
		t.Errorf("Expected TMETAG_ADDRESS for both tokens, got %q / %q", cfg.Contract.StakeToken, cfg.Contract.RewardToken)
	}
}

func TestLoad_ReportGasAnyValue(t *testing.T) {
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NETWORK", "")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("REPORT_GAS", "yes please")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.GasReport.Enabled || cfg.GasReport.Currency != "USD" {
		t.Errorf("Expected enabled USD gas report, got %+v", cfg.GasReport)
	}
}

func TestLoad_SimulatedRejectsFileLedger(t *testing.T) {
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NETWORK", "hardhat")
	t.Setenv("DATABASE_PATH", filepath.Join(t.TempDir(), "stakepool.db"))

	if _, err := Load(); !errors.Is(err, ErrPersistentSimulatedLedger) {
		t.Errorf("Expected ErrPersistentSimulatedLedger, got %v", err)
	}

	t.Setenv("DATABASE_PATH", ":memory:")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != ":memory:" {
		t.Errorf("Expected in-memory ledger, got %s", cfg.Database.Path)
	}
}

func TestLoad_RPCNetworkKeepsFileLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NETWORK", "mainnet")
	t.Setenv("DATABASE_PATH", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.Path != path {
		t.Errorf("Expected ledger at %s, got %s", path, cfg.Database.Path)
	}
}

func TestLoad_UnknownNetwork(t *testing.T) {
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("NETWORK", "ropsten")

	if _, err := Load(); err == nil {
		t.Error("Expected error for unknown network")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("NETWORKS_FILE", filepath.Join(t.TempDir(), "missing.yaml"))
	t.Setenv("RECEIPT_TIMEOUT", "soon")

	if _, err := Load(); err == nil {
		t.Error("Expected error for malformed duration")
	}
}

func TestLoad_NetworksFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "networks.yaml")
	content := `networks:
  fuji:
    url: https://api.avax-test.network/ext/bc/C/rpc
    gas: 3000000
    gas_price_gwei: "25"
    chain_id: 43113
    accounts_env: FUJI_KEY
`
	if err := os.WriteFile(file, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write networks file: %v", err)
	}
	t.Setenv("NETWORKS_FILE", file)
	t.Setenv("NETWORK", "fuji")
	t.Setenv("FUJI_KEY", "0x59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	profile := cfg.Network.Profile
	if profile.ChainId != 43113 || profile.Gas != 3_000_000 {
		t.Errorf("Unexpected fuji profile %+v", profile)
	}
	if profile.GasPrice.String() != "25000000000" {
		t.Errorf("Expected 25 gwei, got %s", profile.GasPrice.String())
	}
	if len(profile.Accounts) != 1 {
		t.Errorf("Expected key from FUJI_KEY, got %d accounts", len(profile.Accounts))
	}
}
