package cmd

import (
	"github.com/felixgeelhaar/planmerge/internal/backup"
	"github.com/felixgeelhaar/planmerge/internal/budget"
	"github.com/felixgeelhaar/planmerge/internal/config"
	"github.com/felixgeelhaar/planmerge/internal/phase"
	"github.com/felixgeelhaar/planmerge/internal/resolve"
	"github.com/felixgeelhaar/planmerge/internal/store"
	"github.com/felixgeelhaar/planmerge/internal/tracker"
)

// Shared wiring between commands. Each helper opens one piece of state from
// the loaded configuration.

func openTable(cfg *config.Config) (*phase.Table, error) {
	if cfg.PhaseTablePath != "" {
		return phase.LoadTable(cfg.PhaseTablePath)
	}
	return phase.DefaultTable(), nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Load(cfg.Paths.StorePath)
}

func openTracker(cfg *config.Config) (*tracker.Tracker, error) {
	table, err := openTable(cfg)
	if err != nil {
		return nil, err
	}
	return tracker.New(cfg.Paths.StatusPath, table)
}

func openGuard(cfg *config.Config) (*budget.Guard, error) {
	return budget.NewGuard(cfg.Paths.LedgerPath, cfg.Budget)
}

func openBackups(cfg *config.Config) *backup.Manager {
	return backup.NewManager(cfg.Backup.Dir)
}

func openResolver(cfg *config.Config) (*resolve.Resolver, error) {
	opts := resolve.Options{RelatednessThreshold: cfg.RelatednessThreshold}
	if len(cfg.Exclusivity) > 0 {
		excl, err := resolve.NewExclusivity(cfg.Exclusivity)
		if err != nil {
			return nil, err
		}
		opts.Exclusivity = excl
	}
	return resolve.New(opts)
}
