package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/banksim-dev/banksim/internal/accounts"
	"github.com/banksim-dev/banksim/internal/bank"
	"github.com/banksim-dev/banksim/internal/config"
	"github.com/banksim-dev/banksim/internal/ledger"
	"github.com/banksim-dev/banksim/internal/logging"
	"github.com/banksim-dev/banksim/internal/model"
	"github.com/banksim-dev/banksim/internal/storage/memory"
	"github.com/banksim-dev/banksim/internal/storage/sqlite"
	"github.com/banksim-dev/banksim/internal/stream"
)

// project is a loaded banksim directory.
type project struct {
	root     string
	cfg      *config.Config
	accounts *accounts.Service
	logger   zerolog.Logger
}

func projectRoot(cmd *cobra.Command) (string, error) {
	dir, err := cmd.Flags().GetString("dir")
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	return abs, nil
}

// loadProject reads banksim.yaml (plus env overrides) and the account seed.
// configure runs before validation so command flags can override the file.
func loadProject(cmd *cobra.Command, configure func(*config.Config)) (*project, error) {
	root, err := projectRoot(cmd)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(filepath.Join(root, config.FileName))
	if err != nil {
		return nil, fmt.Errorf("loading project (run `banksim init` first?): %w", err)
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	if configure != nil {
		configure(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(cmd.ErrOrStderr(), cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, fmt.Errorf("configuring logging: %w", err)
	}

	accts, err := accounts.Load(root)
	if err != nil {
		return nil, err
	}

	return &project{root: root, cfg: cfg, accounts: accts, logger: logger}, nil
}

// path resolves a configured path against the project root.
func (p *project) path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(p.root, rel)
}

// backend is the storage selected by the config.
type backend struct {
	driver  string
	store   bank.AccountStore
	lister  bank.AccountLister
	history bank.HistoryReader
	entries func(ctx context.Context) ([]model.Transaction, error) // whole ledger, nil if none is kept
	sinks   []bank.TransactionLog
	csvPath string
	closers []io.Closer
}

func (p *project) openBackend(ctx context.Context) (*backend, error) {
	b := &backend{driver: p.cfg.Storage.Driver}

	switch p.cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, p.path(p.cfg.Storage.Path))
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		b.store, b.lister, b.history = db, db, db
		b.entries = db.Entries
		b.sinks = append(b.sinks, db)
		b.closers = append(b.closers, db)
	default:
		mem := memory.NewStore()
		b.store, b.lister = mem, mem
	}

	if p.cfg.Ledger.CSVPath != "" {
		csvLog, err := ledger.OpenCSV(p.path(p.cfg.Ledger.CSVPath))
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("opening ledger: %w", err)
		}
		b.csvPath = csvLog.Path()
		b.sinks = append(b.sinks, csvLog)
		b.closers = append(b.closers, csvLog)
		if b.history == nil {
			b.history = csvLog
		}
		if b.entries == nil {
			path := csvLog.Path()
			b.entries = func(context.Context) ([]model.Transaction, error) { return ledger.ReadFile(path) }
		}
	}

	if p.cfg.KafkaEnabled() {
		k := stream.NewKafkaLog(stream.NewWriter(p.cfg.Ledger.Kafka.Brokers, p.cfg.Ledger.Kafka.Topic))
		b.sinks = append(b.sinks, k)
		b.closers = append(b.closers, k)
		p.logger.Info().Strs("brokers", p.cfg.Ledger.Kafka.Brokers).Str("topic", p.cfg.Ledger.Kafka.Topic).Msg("publishing ledger to kafka")
	}

	return b, nil
}

// Close releases sinks in reverse order of opening.
func (b *backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		errs = append(errs, b.closers[i].Close())
	}
	return errors.Join(errs...)
}

// newService builds the account service over the backend. extra sinks are
// appended to first, ahead of the configured ones.
func (p *project) newService(b *backend, extra ...bank.TransactionLog) *bank.Service {
	sinks := append(append([]bank.TransactionLog{}, extra...), b.sinks...)
	return bank.NewService(b.store, ledger.NewTee(sinks...), bank.WithLogger(p.logger))
}

// seed opens every account from accounts.csv that the store does not hold
// yet. The in-memory store starts empty on every invocation, so it resumes
// from the last balances recorded in the CSV ledger.
func (p *project) seed(ctx context.Context, svc *bank.Service, b *backend) error {
	var last map[int]decimal.Decimal
	if b.driver == config.DriverMemory && b.csvPath != "" {
		entries, err := ledger.ReadFile(b.csvPath)
		if err != nil {
			return fmt.Errorf("reading ledger: %w", err)
		}
		last = ledger.LastBalances(entries)
	}

	resumed := 0
	for _, acct := range p.accounts.All() {
		if bal, ok := last[acct.ID]; ok {
			acct.Balance = bal
			resumed++
		}
		_, err := svc.Open(ctx, acct)
		if errors.Is(err, bank.ErrAccountExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding accounts: %w", err)
		}
	}
	if resumed > 0 {
		p.logger.Debug().Int("accounts", resumed).Str("ledger", b.csvPath).Msg("resumed balances from ledger")
	}
	return nil
}
