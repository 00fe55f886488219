// Copyright 2026 The jaffarPlus Authors
// This file is part of jaffarPlus.
//
// jaffarPlus is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// jaffarPlus is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with jaffarPlus. If not, see <http://www.gnu.org/licenses/>.

// Command jaffar runs one search: load a TOML configuration, build the
// registered Simulator/Game pair, compile its rules, and drive the
// engine until it wins, exhausts the frontier, or hits a configured
// bound, writing the best solution found to disk (§6.4/§6.6).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/Randomno/jaffarPlus/common"
	"github.com/Randomno/jaffarPlus/config"
	"github.com/Randomno/jaffarPlus/engine"
	"github.com/Randomno/jaffarPlus/errs"
	"github.com/Randomno/jaffarPlus/hashdb"
	"github.com/Randomno/jaffarPlus/obs"
	"github.com/Randomno/jaffarPlus/registry"
	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/runner"
	"github.com/Randomno/jaffarPlus/sim"
)

func main() {
	app := &cli.App{
		Name:      "jaffar",
		Usage:     "search for an input sequence driving a simulator from its initial state to a win state",
		ArgsUsage: "<config.toml>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "solution", Aliases: []string{"o"}, Value: "solution.txt", Usage: "path to write the winning input sequence"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "jaffar:", err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	switch {
	case errors.Is(err, errs.ErrConfig):
		return 1
	case errors.Is(err, errs.ErrSimulator):
		return 2
	case errors.Is(err, errs.ErrStateDBAlloc):
		return 3
	default:
		return 1
	}
}

func run(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("jaffar: %w: exactly one config file argument required", errs.ErrConfig)
	}

	buf, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("jaffar: read config: %w: %v", errs.ErrConfig, err)
	}
	cfg, err := config.Load(buf)
	if err != nil {
		return err
	}

	log, err := obs.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("jaffar: %w: %v", errs.ErrConfig, err)
	}
	defer log.Sync()
	log = obs.Module(log, "cmd")

	metrics := obs.NewMetrics()

	// buildGame is shared by the seed runner below and by every worker
	// Runner the engine builds, so a registered Game's factory only
	// needs to be looked up once per call, consistently.
	buildGame := func() (*sim.Game, error) {
		game, err := registry.NewGame(cfg.Game, cfg.GameConfig)
		if err != nil {
			return nil, fmt.Errorf("jaffar: %w: %v", errs.ErrSimulator, err)
		}
		return game, nil
	}
	buildRunner := func() (*runner.Runner, error) {
		simulator, err := registry.NewSimulator(cfg.Simulator, cfg.SimulatorConfig)
		if err != nil {
			return nil, fmt.Errorf("jaffar: %w: %v", errs.ErrSimulator, err)
		}
		game, err := buildGame()
		if err != nil {
			return nil, err
		}
		rs, err := rules.CompileForGame(cfg.Rules, game)
		if err != nil {
			return nil, fmt.Errorf("jaffar: %w: %v", errs.ErrConfig, err)
		}
		return runner.New(simulator, game, rs)
	}

	seedRunner, err := buildRunner()
	if err != nil {
		return err
	}
	initial, err := seedRunner.Serialize()
	if err != nil {
		return fmt.Errorf("jaffar: %w: %v", errs.ErrSimulator, err)
	}
	seedGame, err := buildGame()
	if err != nil {
		return err
	}
	initialStatus, err := rules.InitialStatusForGame(seedRunner.Rules(), seedGame)
	if err != nil {
		return fmt.Errorf("jaffar: %w: %v", errs.ErrConfig, err)
	}

	onFull := hashdb.OnFullReject
	if cfg.HashDatabase.OnFull == "evict" {
		onFull = hashdb.OnFullEvictGeneration
	}

	engCfg := engine.Config{
		MemoryCapBytes: int(cfg.StateDatabase.MaxSize),
		HistoryCap:     defaultHistoryCap(cfg),
		HashMaxEntries: cfg.HashDatabase.MaxEntries,
		HashOnFull:     onFull,
		Workers:        cfg.Workers,
		StopOnWin:      cfg.StopOnWin,
		MaxSteps:       cfg.MaxSteps,
	}
	if cfg.MaxWallTime != nil {
		d := time.Duration(*cfg.MaxWallTime * float64(time.Second))
		engCfg.MaxWallTime = &d
	}
	if cfg.Checkpoint.Path != "" {
		engCfg.CheckpointPath = cfg.Checkpoint.Path
		engCfg.CheckpointInterval = time.Duration(cfg.Checkpoint.Interval * float64(time.Second))
	}

	eng, err := engine.New(engCfg, buildRunner, metrics, log)
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Seed(initial, initialStatus); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	result, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("jaffar: %w", err)
	}

	log.Info("search finished",
		zap.String("reason", result.Reason.String()),
		zap.Stringer("steps", common.HexUint64(result.Steps)),
		zap.Duration("elapsed", time.Since(start)),
		zap.Bool("found_winner", result.Winner != nil))

	if result.Winner == nil {
		return nil
	}

	names := make([]string, 0, len(result.Winner.History))
	for _, id := range result.Winner.History {
		names = append(names, seedRunner.Inputs().Name(sim.InputID(id)))
	}
	solutionPath := c.String("solution")
	if err := os.WriteFile(solutionPath, []byte(strings.Join(names, " ")+"\n"), 0o644); err != nil {
		return fmt.Errorf("jaffar: write solution file: %w", err)
	}
	log.Info("solution written", zap.String("path", solutionPath), zap.Float64("reward", result.Winner.Reward))
	return nil
}

func defaultHistoryCap(cfg *config.Config) int {
	if cfg.MaxSteps != nil && *cfg.MaxSteps > 0 && *cfg.MaxSteps < 1<<20 {
		return int(*cfg.MaxSteps)
	}
	return 4096
}

