// Package main provides the skirmish engine binary: an MCP tool server
// exposing turn-based tactical combat over stdio or HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gridforge/skirmish/internal/config"
	"github.com/gridforge/skirmish/internal/engineserver"
	"github.com/gridforge/skirmish/internal/game/action"
	"github.com/gridforge/skirmish/internal/game/character"
	"github.com/gridforge/skirmish/internal/game/condition"
	"github.com/gridforge/skirmish/internal/game/dice"
	"github.com/gridforge/skirmish/internal/game/encounter"
	"github.com/gridforge/skirmish/internal/game/geometry"
	"github.com/gridforge/skirmish/internal/game/roster"
	"github.com/gridforge/skirmish/internal/observability"
	"github.com/gridforge/skirmish/internal/scripting"
	"github.com/gridforge/skirmish/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	rosterDir := flag.String("roster", "content/characters", "path to character YAML files directory; empty = no roster")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	roller := dice.NewLoggedRoller(dice.NewCryptoSource(), logger)

	defs := condition.NewRegistry()
	if cfg.Rules.ConditionsDir != "" {
		if err := defs.LoadDirectory(cfg.Rules.ConditionsDir); err != nil {
			logger.Fatal("loading condition definitions", zap.Error(err))
		}
		logger.Info("condition definitions loaded",
			zap.String("dir", cfg.Rules.ConditionsDir),
			zap.Int("count", len(defs.All())),
		)
	}

	var hooks condition.HookRunner
	if cfg.Rules.ConditionScriptsDir != "" {
		hooks = scripting.NewHookRunner(cfg.Rules.ConditionScriptsDir, scripting.DefaultInstructionLimit, logger)
		logger.Info("condition hooks enabled", zap.String("dir", cfg.Rules.ConditionScriptsDir))
	}

	resolver, pool := buildResolver(ctx, cfg, *rosterDir, logger)
	if pool != nil {
		defer pool.Close()
	}

	distMode, err := geometry.ParseDistanceMode(cfg.Rules.DiagonalRule)
	if err != nil {
		logger.Fatal("parsing diagonal rule", zap.Error(err))
	}
	rules := encounter.Rules{
		DeathPolicy:   encounter.DeathPolicy(cfg.Rules.DeathPolicy),
		CellSizeFeet:  cfg.Rules.CellSizeFeet,
		DistanceMode:  distMode,
		MaxExhaustion: cfg.Rules.MaxExhaustion,
	}

	registry := encounter.NewRegistry(resolver, roller, defs, hooks, rules, logger)
	pipeline := action.NewPipeline(registry, logger)
	server := engineserver.New(registry, pipeline, cfg.Server, logger)

	logger.Info("skirmish engine ready",
		zap.String("transport", cfg.Server.Transport),
		zap.Duration("startup", time.Since(start)),
	)

	if err := server.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildResolver picks the character source: PostgreSQL when the database is
// enabled, otherwise the YAML roster directory, otherwise nothing.
func buildResolver(ctx context.Context, cfg config.Config, rosterDir string, logger *zap.Logger) (character.Resolver, *postgres.Pool) {
	if cfg.Database.Enabled {
		dbStart := time.Now()
		pool, err := postgres.NewPool(ctx, cfg.Database)
		if err != nil {
			logger.Fatal("connecting to database", zap.Error(err))
		}
		logger.Info("database connected",
			zap.String("host", cfg.Database.Host),
			zap.Duration("elapsed", time.Since(dbStart)),
		)
		return postgres.NewCharacterStore(pool.DB()), pool
	}

	if rosterDir != "" {
		resolver, err := roster.NewResolver(rosterDir)
		if err != nil {
			logger.Fatal("loading character roster", zap.Error(err))
		}
		logger.Info("character roster loaded",
			zap.String("dir", rosterDir),
			zap.Int("count", len(resolver.List())),
		)
		return resolver, nil
	}

	logger.Info("no character source configured; participants must be fully specified inline")
	return nil, nil
}
