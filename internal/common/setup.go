package common

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"metag-stakepool-go/internal/api"
	"metag-stakepool-go/internal/database"
	"metag-stakepool-go/internal/deploy"
	"metag-stakepool-go/internal/gasreport"
	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/signer"
	"metag-stakepool-go/internal/token"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

type Services struct {
	DbService   *database.Service
	Gateway     token.Gateway
	Simulated   *token.Simulated // nil unless the network is simulated
	Accounts    []*signer.Account
	GasReporter *gasreport.Reporter
	Stakepool   *api.StakepoolService
	Deployer    *deploy.Deployer
	Network     models.NetworkProfile

	closeGateway func()
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	profile := cfg.Network.Profile

	accounts, err := signer.LoadAccounts(profile.Accounts)
	if err != nil {
		return nil, fmt.Errorf("unable to load %s accounts: %w", profile.Name, err)
	}

	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	services := &Services{
		DbService: dbService,
		Accounts:  accounts,
		Network:   profile,
	}

	if profile.Simulated {
		zap.L().Info("Starting simulated network",
			zap.String("network", profile.Name),
			zap.Int64("chain_id", profile.ChainId),
			zap.Int("accounts", len(accounts)))

		addresses := make([]gethcommon.Address, len(accounts))
		for i, account := range accounts {
			addresses[i] = account.Address
		}
		services.Simulated = token.NewSimulated(profile.ChainId, addresses...)
		services.Gateway = services.Simulated
	} else {
		if len(accounts) == 0 {
			dbService.Close()
			return nil, fmt.Errorf("network %s has no signing account: %w", profile.Name, signer.ErrMissingKey)
		}

		zap.L().Info("Connecting to network",
			zap.String("network", profile.Name),
			zap.Int64("chain_id", profile.ChainId))

		rpcGateway, err := token.NewRPCGateway(ctx, profile, accounts[0].Key, cfg.Network)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		services.Gateway = rpcGateway
		services.closeGateway = rpcGateway.Close
	}

	services.GasReporter = gasreport.NewReporter(cfg.GasReport.Enabled, cfg.GasReport.Currency, profile.GasPrice)
	services.Stakepool = api.NewStakepoolService(dbService, services.Gateway, services.GasReporter)
	services.Deployer = deploy.NewDeployer(dbService, services.Gateway, profile, os.Stdout)

	return services, nil
}

// InitializeDatabaseOnly initializes just the database service without a network
// Useful for read-only operations like querying balances
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

// PrimaryAccount is the account that deploys and, by default, signs calls
func (cs *Services) PrimaryAccount() (*signer.Account, error) {
	if len(cs.Accounts) == 0 {
		return nil, signer.ErrMissingKey
	}
	return cs.Accounts[0], nil
}

// DeployPool deploys a pool from the primary account, creating development
// tokens first when the network is simulated.
func (cs *Services) DeployPool(ctx context.Context, contract models.ContractConfig) (*models.Pool, error) {
	account, err := cs.PrimaryAccount()
	if err != nil {
		return nil, err
	}

	stakeToken, rewardToken := contract.StakeToken, contract.RewardToken
	if cs.Simulated != nil {
		stakeToken, rewardToken = deploy.PrepareSimulated(cs.Simulated, account.Address, stakeToken, rewardToken)
	}

	return cs.Deployer.Deploy(ctx, account, stakeToken, rewardToken)
}

func (cs *Services) Close() {
	if cs.GasReporter.Enabled() {
		cs.GasReporter.Print(os.Stdout)
	}
	if cs.closeGateway != nil {
		cs.closeGateway()
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
