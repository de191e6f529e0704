package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Network   NetworkConfig
	Contract  ContractConfig
	Monitor   MonitorConfig
	GasReport GasReportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// NetworkConfig selects the network profile used by the tools
type NetworkConfig struct {
	Name           string
	NetworksFile   string
	ReceiptTimeout time.Duration
	ReceiptPoll    time.Duration
	Profile        NetworkProfile
}

// ContractConfig holds the constructor arguments for the stake pool
type ContractConfig struct {
	StakeToken  string
	RewardToken string
}

// MonitorConfig holds custody monitor settings
type MonitorConfig struct {
	PollingInterval time.Duration
}

// GasReportConfig holds gas reporter settings
type GasReportConfig struct {
	Enabled  bool
	Currency string
}
