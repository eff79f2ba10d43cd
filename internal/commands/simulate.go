package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/config"
	"github.com/banksim-dev/banksim/internal/id"
	"github.com/banksim-dev/banksim/internal/ledger"
	"github.com/banksim-dev/banksim/internal/runlog"
	"github.com/banksim-dev/banksim/internal/storage/memory"
	"github.com/banksim-dev/banksim/internal/worker"
)

var errAuditFailed = errors.New("ledger audit failed")

func newSimulateCommand() *cobra.Command {
	var (
		workers    int
		iterations int
		seed       uint64
		thinkTime  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run concurrent customers against the accounts and audit the ledger",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			p, err := loadProject(cmd, func(cfg *config.Config) {
				if flags.Changed("workers") {
					cfg.Simulation.Workers = workers
				}
				if flags.Changed("iterations") {
					cfg.Simulation.Iterations = iterations
				}
				if flags.Changed("seed") {
					cfg.Simulation.Seed = seed
				}
				if flags.Changed("max-think-time") {
					cfg.Simulation.MaxThinkTime = thinkTime
				}
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulate(ctx, cmd.OutOrStdout(), p)
		},
	}

	cmd.Flags().IntVar(&workers, "workers", 0, "number of customers (overrides simulation.workers)")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "operations per customer (overrides simulation.iterations)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for a reproducible run (overrides simulation.seed)")
	cmd.Flags().DurationVar(&thinkTime, "max-think-time", 0, "upper bound of the pause between operations (overrides simulation.max_think_time)")

	return cmd
}

func runSimulate(ctx context.Context, out io.Writer, p *project) error {
	sim := p.cfg.Simulation
	ids := p.accounts.Active()
	if len(ids) == 0 {
		return errors.New("no active accounts to simulate")
	}

	b, err := p.openBackend(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := b.Close(); err != nil {
			p.logger.Error().Err(err).Msg("closing storage")
		}
	}()

	// capture holds exactly this run's entries for the audit.
	capture := memory.NewLog()
	svc := p.newService(b, capture)
	if err := p.seed(ctx, svc, b); err != nil {
		return err
	}

	opening, err := balances(ctx, svc, ids)
	if err != nil {
		return err
	}

	seed := sim.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	maxAmount, err := p.cfg.MaxAmountValue()
	if err != nil {
		return err
	}

	runID := id.NewRunID()
	logger := p.logger.With().Str("run_id", runID).Logger()
	logger.Info().
		Int("workers", sim.Workers).
		Int("accounts", len(ids)).
		Int("iterations", sim.Iterations).
		Uint64("seed", seed).
		Msg("simulation started")

	customers := worker.Assign(ids, sim.Workers, worker.Params{
		Iterations:   sim.Iterations,
		MaxAmount:    maxAmount,
		MaxThinkTime: sim.MaxThinkTime,
		Seed:         seed,
		Logger:       logger.With().Str("pkg", "worker").Logger(),
	})
	start := time.Now()
	reports := worker.Run(ctx, svc, customers)
	elapsed := time.Since(start)

	// Finish the bookkeeping even after an interrupt.
	after := context.WithoutCancel(ctx)
	final, err := balances(after, svc, ids)
	if err != nil {
		return err
	}
	entries := capture.Entries()
	problems := ledger.Audit(opening, final, entries)
	totals := worker.Totals(reports)

	printRun(out, runReport{
		runID:    runID,
		seed:     seed,
		sim:      sim,
		ids:      ids,
		reports:  reports,
		totals:   totals,
		opening:  opening,
		final:    final,
		entries:  len(entries),
		problems: problems,
		elapsed:  elapsed,
	})

	entry := runlog.Entry{
		Timestamp:   time.Now().UTC(),
		RunID:       runID,
		Workers:     sim.Workers,
		Iterations:  sim.Iterations,
		Attempts:    totals.Attempts,
		Applied:     totals.Deposits + totals.Withdrawals,
		Rejected:    totals.Rejected,
		Failed:      totals.Failures,
		AuditErrors: len(problems),
	}
	if err := runlog.Append(p.root, entry); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}

	logger.Info().
		Int("attempts", totals.Attempts).
		Int("failed", totals.Failures).
		Int("audit_errors", len(problems)).
		Dur("elapsed", elapsed).
		Msg("simulation finished")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %d problems", errAuditFailed, len(problems))
	}
	return nil
}

func balances(ctx context.Context, svc *bank.Service, ids []int) (map[int]decimal.Decimal, error) {
	out := make(map[int]decimal.Decimal, len(ids))
	for _, acctID := range ids {
		bal, err := svc.Balance(ctx, acctID)
		if err != nil {
			return nil, fmt.Errorf("reading balance: %w", err)
		}
		out[acctID] = bal
	}
	return out, nil
}

type runReport struct {
	runID    string
	seed     uint64
	sim      config.SimulationConfig
	ids      []int
	reports  []worker.Report
	totals   worker.Report
	opening  map[int]decimal.Decimal
	final    map[int]decimal.Decimal
	entries  int
	problems []ledger.AuditError
	elapsed  time.Duration
}

func printRun(out io.Writer, r runReport) {
	fmt.Fprintf(out, "Run %s: %d workers x %d iterations on %d accounts (seed %d, %s)\n\n",
		r.runID, r.sim.Workers, r.sim.Iterations, len(r.ids), r.seed, r.elapsed.Round(time.Millisecond))

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WORKER\tACCOUNT\tATTEMPTS\tDEPOSITS\tWITHDRAWALS\tREJECTED\tFAILED\tLAST BALANCE")
	for _, rep := range r.reports {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			rep.CustomerID, rep.AccountID, rep.Attempts, rep.Deposits, rep.Withdrawals,
			rep.Rejected, rep.Failures, rep.LastBalance.StringFixed(2))
	}
	tw.Flush()
	fmt.Fprintln(out)

	tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ACCOUNT\tOPENING\tFINAL")
	for _, acctID := range r.ids {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", acctID, r.opening[acctID].StringFixed(2), r.final[acctID].StringFixed(2))
	}
	tw.Flush()
	fmt.Fprintln(out)

	fmt.Fprintf(out, "Totals: %d attempts, %d applied, %d rejected, %d failed (deposited %s, withdrawn %s)\n",
		r.totals.Attempts, r.totals.Deposits+r.totals.Withdrawals, r.totals.Rejected, r.totals.Failures,
		r.totals.Deposited.StringFixed(2), r.totals.Withdrawn.StringFixed(2))
	if r.totals.Canceled {
		fmt.Fprintln(out, "Interrupted: some workers stopped early.")
	}
	printAudit(out, r.entries, r.problems)
}

func printAudit(out io.Writer, entries int, problems []ledger.AuditError) {
	if len(problems) == 0 {
		fmt.Fprintf(out, "Audit: ok (%d entries)\n", entries)
		return
	}
	fmt.Fprintf(out, "Audit: %d problems\n", len(problems))
	for _, prob := range problems {
		fmt.Fprintf(out, "  %s\n", prob.Error())
	}
}
