/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metag-stakepool-go/internal/common"
	"metag-stakepool-go/internal/config"
	"metag-stakepool-go/internal/monitor"

	"go.uber.org/zap"
)

func main() {
	deployFlag := flag.Bool("deploy", false, "Deploy a fresh pool first (useful on the simulated network)")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting MetagStakepool custody monitor", zap.String("network", cfg.Network.Name))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if *deployFlag {
		if _, err := services.DeployPool(ctx, cfg.Contract); err != nil {
			zap.L().Fatal("Failed to deploy pool", zap.Error(err))
		}
	}

	m := monitor.NewCustodyMonitor(monitor.CustodyMonitorConfig{
		DbService:       services.DbService,
		Gateway:         services.Gateway,
		Network:         cfg.Network.Name,
		PollingInterval: cfg.Monitor.PollingInterval,
		Settler:         services.Stakepool,
	})

	if err := m.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start custody monitor", zap.Error(err))
	}

	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping monitor...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		m.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Monitor stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}
}
