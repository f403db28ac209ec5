package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// SymbolSource is the authoritative symbol list, normally the symbols table.
type SymbolSource interface {
	ListSymbols(ctx context.Context) ([]string, error)
}

// SymbolSink is the in-memory registry the tick loop reads.
type SymbolSink interface {
	GetAll() []string
	Add(symbol string) bool
	Retain(symbols []string) []string
}

type Backfiller interface {
	Backfill(ctx context.Context, symbol string) (int, error)
}

// SymbolSyncJob copies the symbol table into the tick registry. A new symbol
// joins the registry only after its backfill succeeds; a failed backfill is
// retried on the next run.
type SymbolSyncJob struct {
	Source   SymbolSource
	Registry SymbolSink
	Market   Backfiller
	Logger   *zap.Logger
}

func (j *SymbolSyncJob) Name() string {
	return "symbol_sync"
}

func (j *SymbolSyncJob) Run(ctx context.Context) error {
	symbols, err := j.Source.ListSymbols(ctx)
	if err != nil {
		return fmt.Errorf("load symbols: %w", err)
	}

	if removed := j.Registry.Retain(symbols); len(removed) > 0 {
		j.Logger.Info("dropped symbols", zap.Strings("removed", removed))
	}

	known := make(map[string]bool)
	for _, symbol := range j.Registry.GetAll() {
		known[symbol] = true
	}

	var (
		added []string
		errs  []error
	)
	for _, symbol := range symbols {
		symbol = strings.ToUpper(symbol)
		if symbol == "" || known[symbol] {
			continue
		}
		known[symbol] = true

		if err := ctx.Err(); err != nil {
			j.Logger.Warn("symbol sync interrupted", zap.Error(err))
			return err
		}
		if _, err := j.Market.Backfill(ctx, symbol); err != nil {
			j.Logger.Warn("backfill failed, will retry", zap.String("symbol", symbol), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		j.Registry.Add(symbol)
		added = append(added, symbol)
	}

	if len(added) > 0 {
		j.Logger.Info("loaded symbols", zap.Int("count", len(symbols)), zap.Strings("added", added))
	}
	return errors.Join(errs...)
}
