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

// Command jaffar-play replays a previously-written solution file through
// a Runner, printing the depth/reward/win-fail status captured at every
// step. --reproduce additionally verifies the last step reached a win
// state, exiting non-zero if it didn't. --no-render is accepted for
// compatibility with scripts that always pass it; rendering is a TUI
// concern this command never performs, so the flag is a no-op here.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Randomno/jaffarPlus/config"
	"github.com/Randomno/jaffarPlus/errs"
	"github.com/Randomno/jaffarPlus/playback"
	"github.com/Randomno/jaffarPlus/registry"
	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/runner"
	"github.com/Randomno/jaffarPlus/sim"
)

func main() {
	app := &cli.App{
		Name:      "jaffar-play",
		Usage:     "replay a solution file through a registered Simulator/Game and print the resulting trace",
		ArgsUsage: "<config.toml> <solution.txt>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "reproduce", Usage: "fail (exit 2) unless the last replayed step reached a win state"},
			&cli.BoolFlag{Name: "no-render", Usage: "accepted for compatibility; this command never renders"},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "jaffar-play:", err)
		if errors.Is(err, errReproductionFailed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var errReproductionFailed = errors.New("jaffar-play: solution did not reach a win state")

func run(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return fmt.Errorf("jaffar-play: %w: expected <config.toml> <solution.txt>", errs.ErrConfig)
	}

	cfgBuf, err := os.ReadFile(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("jaffar-play: read config: %w: %v", errs.ErrConfig, err)
	}
	cfg, err := config.Load(cfgBuf)
	if err != nil {
		return err
	}

	solutionBuf, err := os.ReadFile(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("jaffar-play: read solution: %w", err)
	}

	simulator, err := registry.NewSimulator(cfg.Simulator, cfg.SimulatorConfig)
	if err != nil {
		return fmt.Errorf("jaffar-play: %w: %v", errs.ErrSimulator, err)
	}
	game, err := registry.NewGame(cfg.Game, cfg.GameConfig)
	if err != nil {
		return fmt.Errorf("jaffar-play: %w: %v", errs.ErrSimulator, err)
	}
	rs, err := rules.CompileForGame(cfg.Rules, game)
	if err != nil {
		return fmt.Errorf("jaffar-play: %w: %v", errs.ErrConfig, err)
	}
	r, err := runner.New(simulator, game, rs)
	if err != nil {
		return fmt.Errorf("jaffar-play: %w: %v", errs.ErrSimulator, err)
	}

	inputs, err := resolveInputs(r, string(solutionBuf))
	if err != nil {
		return err
	}

	p := playback.NewPlayback(r)
	if err := p.Replay(inputs); err != nil {
		return fmt.Errorf("jaffar-play: %w: %v", errs.ErrSimulator, err)
	}

	for _, snap := range p.Trace() {
		fmt.Printf("depth=%d input=%s reward=%g win=%t fail=%t\n",
			snap.Depth, r.Inputs().Name(snap.Input), snap.Result.Reward, snap.Result.Win, snap.Result.Fail)
	}

	if c.Bool("reproduce") {
		trace := p.Trace()
		if len(trace) == 0 || !trace[len(trace)-1].Result.Win {
			return errReproductionFailed
		}
	}
	return nil
}

func resolveInputs(r *runner.Runner, solution string) ([]sim.InputID, error) {
	fields := strings.Fields(solution)
	ids := make([]sim.InputID, 0, len(fields))
	for _, f := range fields {
		id, ok := r.Inputs().Lookup(f)
		if !ok {
			return nil, fmt.Errorf("jaffar-play: %w: unknown input symbol %q in solution file", errs.ErrConfig, f)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
