package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/1Crazymoney/governance-v2/pkg/api"
	"github.com/1Crazymoney/governance-v2/pkg/registry"
	"github.com/1Crazymoney/governance-v2/pkg/snapshot"
	"github.com/1Crazymoney/governance-v2/pkg/strategy"
	"github.com/1Crazymoney/governance-v2/pkg/token"
)

func main() {
	var (
		port             int
		startHeight      uint64
		votingDuration   uint64
		voteDifferential uint64
		minimumQuorum    uint64
		precision        uint64
	)

	cmd := &cobra.Command{
		Use:   "governanced",
		Short: "Governance power aggregation and proposal validation daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("initializing logger: %w", err)
			}
			defer log.Sync()

			rules, err := strategy.NewValidationRules(votingDuration, voteDifferential, minimumQuorum, precision)
			if err != nil {
				return fmt.Errorf("invalid validation rules: %w", err)
			}

			primaryStore := snapshot.NewStore()
			stakedStore := snapshot.NewStore()
			strat := strategy.NewStrategy(
				token.NewPrimarySource(primaryStore),
				token.NewStakedSource(stakedStore),
			)

			clock := registry.NewHeightClock(strategy.BlockRef(startHeight))
			reg := registry.New(clock, strat, registry.NewMemoryStore(), rules, log)
			validator := strategy.NewProposalValidator(strat, reg, rules)

			stores := map[string]*snapshot.Store{
				"primary": primaryStore,
				"staked":  stakedStore,
			}
			server := api.NewServer(reg, validator, strat, clock, stores, port, log)

			errCh := make(chan error, 1)
			go func() {
				errCh <- server.Start()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("shutting down", zap.Stringer("signal", sig))
			}

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Stop(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 8545, "API listen port")
	cmd.Flags().Uint64Var(&startHeight, "start-height", 0, "initial chain height")
	cmd.Flags().Uint64Var(&votingDuration, "voting-duration", 7200, "voting window length in blocks")
	cmd.Flags().Uint64Var(&voteDifferential, "vote-differential", 50, "required for-minus-against margin, in basis points of precision")
	cmd.Flags().Uint64Var(&minimumQuorum, "minimum-quorum", 2000, "minimum quorum, in basis points of precision")
	cmd.Flags().Uint64Var(&precision, "precision", 10000, "scaling denominator representing 100%")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
