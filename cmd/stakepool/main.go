package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/big"
	"os"

	"metag-stakepool-go/internal/common"
	"metag-stakepool-go/internal/config"
	"metag-stakepool-go/internal/models"
	"metag-stakepool-go/internal/signer"
	"metag-stakepool-go/internal/token"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

type request struct {
	op      string
	pool    string
	amount  string
	account int
	to      string
	limit   int
	offset  int
}

const usageNote = `
On RPC networks the pool's custody is the signer's own account: participants
approve the signer address, and the signer itself cannot stake into the pool.
Transfers whose outcome is unknown stay pending; run -op settle to resolve
them once mined.
`

func parseFlags() (*request, error) {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage of %s:\n", os.Args[0])
		flag.PrintDefaults()
		fmt.Fprint(flag.CommandLine.Output(), usageNote)
	}

	opFlag := flag.String("op", "", "Operation: owner, deposit, withdraw, balance, history, settle, transfer-ownership (required)")
	poolFlag := flag.String("pool", "", "Pool address (optional on the simulated network, a fresh pool is deployed)")
	amountFlag := flag.String("amount", "", "Amount in whole tokens for deposit and withdraw, e.g. 3 or 0.5")
	accountFlag := flag.Int("account", 0, "Index of the network account acting as caller")
	toFlag := flag.String("to", "", "New owner for transfer-ownership")
	limitFlag := flag.Int("limit", 20, "History page size (max 100)")
	offsetFlag := flag.Int("offset", 0, "History offset")
	flag.Parse()

	req := &request{
		op:      *opFlag,
		pool:    *poolFlag,
		amount:  *amountFlag,
		account: *accountFlag,
		to:      *toFlag,
		limit:   *limitFlag,
		offset:  *offsetFlag,
	}

	switch req.op {
	case "owner", "balance", "history", "settle":
	case "deposit", "withdraw":
		if req.amount == "" {
			return nil, fmt.Errorf("--amount is required for %s", req.op)
		}
	case "transfer-ownership":
		if !gethcommon.IsHexAddress(req.to) {
			return nil, fmt.Errorf("--to must be a hex address for transfer-ownership")
		}
	default:
		return nil, fmt.Errorf("unknown or missing --op %q", req.op)
	}

	if req.pool != "" && !gethcommon.IsHexAddress(req.pool) {
		return nil, fmt.Errorf("--pool must be a hex address")
	}

	return req, nil
}

func resolvePool(ctx context.Context, services *common.Services, cfg *models.Config, req *request) (*models.Pool, error) {
	if req.pool != "" {
		return services.Stakepool.Pool(ctx, gethcommon.HexToAddress(req.pool))
	}
	if services.Simulated == nil {
		return nil, errors.New("--pool is required outside the simulated network")
	}

	zap.L().Info("No pool given, deploying one on the simulated network")
	return services.DeployPool(ctx, cfg.Contract)
}

// prepareSimulatedDeposit funds and approves the caller so a deposit can go
// through on a fresh simulated chain.
func prepareSimulatedDeposit(services *common.Services, pool *models.Pool, caller gethcommon.Address, amount *big.Int) error {
	deployer, err := services.PrimaryAccount()
	if err != nil {
		return err
	}

	stakeToken := gethcommon.HexToAddress(pool.StakeToken)
	if caller != deployer.Address {
		if _, err := services.Simulated.Transfer(stakeToken, deployer.Address, caller, amount); err != nil {
			return fmt.Errorf("unable to fund caller: %w", err)
		}
	}

	receipt, err := services.Simulated.Approve(stakeToken, caller, gethcommon.HexToAddress(pool.Custody), amount)
	if err != nil {
		return fmt.Errorf("unable to approve custody: %w", err)
	}
	services.GasReporter.Record(receipt.Method, receipt.GasUsed)
	return nil
}

func printResult(result *models.OperationResult, decimals uint8) {
	if !result.Success {
		fmt.Printf("✗ rejected: %s\n", result.Error)
		return
	}
	fmt.Printf("✓ %s tokens, new stake %s (tx %s)\n",
		common.FormatStake(result.Amount, decimals),
		common.FormatStake(result.NewBalance, decimals),
		result.TxHash)
}

func run(ctx context.Context, services *common.Services, cfg *models.Config, req *request) error {
	if req.account < 0 || req.account >= len(services.Accounts) {
		return fmt.Errorf("account index %d out of range (%d accounts): %w", req.account, len(services.Accounts), signer.ErrMissingKey)
	}
	caller := services.Accounts[req.account].Address

	pool, err := resolvePool(ctx, services, cfg, req)
	if err != nil {
		return err
	}
	poolAddress := gethcommon.HexToAddress(pool.Address)

	decimals, err := services.Gateway.Decimals(ctx, gethcommon.HexToAddress(pool.StakeToken))
	if err != nil {
		return fmt.Errorf("unable to read stake token decimals: %w", err)
	}

	switch req.op {
	case "owner":
		owner, err := services.Stakepool.Owner(ctx, poolAddress)
		if err != nil {
			return err
		}
		fmt.Println(owner.Hex())

	case "balance":
		balance, err := services.Stakepool.BalanceOf(ctx, poolAddress, caller)
		if err != nil {
			return err
		}
		fmt.Printf("%s staked %s\n", caller.Hex(), common.FormatStake(balance, decimals))

	case "history":
		records, err := services.Stakepool.History(ctx, poolAddress, caller, req.limit, req.offset)
		if err != nil {
			return err
		}
		for i, record := range records {
			fmt.Printf("%s%-20s %20s %-9s %s %s\n",
				common.BoxPrefix(i == len(records)-1),
				record.Type,
				common.FormatStake(record.Amount, decimals),
				record.Status,
				record.ProcessedAt.Format("2006-01-02 15:04:05"),
				common.ShortAddress(record.TxHash))
		}

	case "settle":
		result, err := services.Stakepool.SettlePending(ctx, poolAddress)
		if err != nil {
			return err
		}
		fmt.Printf("✓ %d confirmed, %d reverted, %d still pending\n", result.Confirmed, result.Reverted, result.Unresolved)

	case "deposit", "withdraw":
		amount, err := token.ParseUnits(req.amount, decimals)
		if err != nil {
			return err
		}

		var result *models.OperationResult
		if req.op == "deposit" {
			if services.Simulated != nil && amount.Sign() > 0 {
				if err := prepareSimulatedDeposit(services, pool, caller, amount); err != nil {
					return err
				}
			}
			result, err = services.Stakepool.DepositTokens(ctx, poolAddress, caller, amount)
		} else {
			result, err = services.Stakepool.Withdraw(ctx, poolAddress, caller, amount)
		}
		if err != nil {
			return err
		}
		printResult(result, decimals)
		if !result.Success {
			return result.Cause
		}

	case "transfer-ownership":
		result, err := services.Stakepool.TransferOwnership(ctx, poolAddress, caller, gethcommon.HexToAddress(req.to))
		if err != nil {
			return err
		}
		if !result.Success {
			fmt.Printf("✗ rejected: %s\n", result.Error)
			return result.Cause
		}
		fmt.Printf("✓ ownership of %s transferred to %s\n", pool.Address, result.Participant)
	}

	return nil
}

func main() {
	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	req, err := parseFlags()
	if err != nil {
		zap.L().Fatal("Invalid arguments", zap.Error(err))
	}

	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}

	if err := run(ctx, services, cfg, req); err != nil {
		services.Close()
		zap.L().Fatal("Operation failed", zap.String("op", req.op), zap.Error(err))
	}
	services.Close()
}
