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

// Package engine is the top-level driver: it orchestrates the worker
// pool over StateDB's current frontier, dedups and scores children
// through HashDB and the Runner, tracks the best winning path, swaps
// frontiers between steps, and checkpoints periodically (§4.6).
package engine

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Randomno/jaffarPlus/checkpoint"
	"github.com/Randomno/jaffarPlus/common"
	"github.com/Randomno/jaffarPlus/errs"
	"github.com/Randomno/jaffarPlus/hashdb"
	"github.com/Randomno/jaffarPlus/obs"
	"github.com/Randomno/jaffarPlus/rules"
	"github.com/Randomno/jaffarPlus/runner"
	"github.com/Randomno/jaffarPlus/sim"
	"github.com/Randomno/jaffarPlus/statedb"
)

// Reason names why Run stopped (§4.6).
type Reason int

const (
	ReasonStopOnWin Reason = iota
	ReasonMaxSteps
	ReasonMaxWallTime
	ReasonFrontierExhausted
	ReasonCancelled
)

func (r Reason) String() string {
	switch r {
	case ReasonStopOnWin:
		return "stop-on-win"
	case ReasonMaxSteps:
		return "max-steps"
	case ReasonMaxWallTime:
		return "max-wall-time"
	case ReasonFrontierExhausted:
		return "frontier-exhausted"
	case ReasonCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Winner is the best win-marked state found so far: the step at which it
// was reached, its reward, and the packed input-id path from the initial
// state (§4.6 path reconstruction, representation (b)).
type Winner struct {
	Step    uint32
	Reward  float64
	History []byte
}

// Result is Run's outcome.
type Result struct {
	Reason  Reason
	Steps   uint64
	Winner  *Winner
}

// Config sizes and bounds one engine run.
type Config struct {
	MemoryCapBytes int
	HistoryCap     int
	HashMaxEntries int
	HashOnFull     hashdb.OnFullPolicy
	Workers        int
	StopOnWin      bool
	MaxSteps       *uint64
	MaxWallTime    *time.Duration

	CheckpointPath     string
	CheckpointInterval time.Duration
}

// RunnerFactory builds one fresh, independent Runner — a fresh
// Simulator + Game instance with its own compiled rules.Set — for
// one worker goroutine (§5: workers never share simulator state).
type RunnerFactory func() (*runner.Runner, error)

// Engine is the search driver. Not safe for concurrent Run calls on the
// same instance.
type Engine struct {
	cfg     Config
	db      *statedb.StateDB
	hdb     *hashdb.HashDB
	workers []*runner.Runner
	metrics *obs.Metrics
	log     *zap.Logger

	bestMu sync.Mutex
	best   *Winner

	lastCheckpoint time.Time
}

// New allocates StateDB/HashDB sized from the first Runner's state size
// and rule count, then builds one Runner per worker.
func New(cfg Config, newRunner RunnerFactory, metrics *obs.Metrics, log *zap.Logger) (*Engine, error) {
	workers := cfg.Workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	probe, err := newRunner()
	if err != nil {
		return nil, fmt.Errorf("engine: build probe runner: %w", err)
	}

	db, err := statedb.New(statedb.Config{
		StateSize:      probe.StateSize(),
		HistoryCap:     cfg.HistoryCap,
		RuleCount:      probe.Rules().Len(),
		MemoryCapBytes: cfg.MemoryCapBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("engine: %w: %v", errs.ErrStateDBAlloc, err)
	}

	hdb, err := hashdb.New(cfg.HashMaxEntries, cfg.HashOnFull)
	if err != nil {
		return nil, fmt.Errorf("engine: build hash database: %w", err)
	}

	workerRunners := make([]*runner.Runner, workers)
	workerRunners[0] = probe
	for i := 1; i < workers; i++ {
		r, err := newRunner()
		if err != nil {
			return nil, fmt.Errorf("engine: build worker runner %d: %w", i, err)
		}
		workerRunners[i] = r
	}

	if metrics == nil {
		metrics = obs.NewMetrics()
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Engine{
		cfg:            cfg,
		db:             db,
		hdb:            hdb,
		workers:        workerRunners,
		metrics:        metrics,
		log:            obs.Module(log, "engine"),
		lastCheckpoint: time.Now(),
	}, nil
}

// Close releases the StateDB arena.
func (e *Engine) Close() error { return e.db.Close() }

// Seed installs the initial state as the sole occupant of the current
// frontier (§3 lifecycle: "a state occupies a slot... until dropped or
// recycled").
func (e *Engine) Seed(initial []byte, status rules.RulesStatus) error {
	ref, ok := e.db.GetFree()
	if !ok {
		return fmt.Errorf("engine: %w: no free slot for initial state", errs.ErrStateDBAlloc)
	}
	copy(e.db.Blob(ref), initial)
	if err := e.db.PutHistory(ref, nil); err != nil {
		return err
	}
	e.db.PutHeader(ref, statedb.Header{Depth: 0, Reward: 0, LastInput: 0, RuleStatus: status})
	e.db.PushNext(ref, 0)
	return e.db.SwapFrontiers()
}

// Run drives the search to completion, cancellation, or a configured
// bound (§4.6).
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.cfg.MaxWallTime != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, time.Now().Add(*e.cfg.MaxWallTime))
		defer cancel()
	}

	var steps uint64
	for {
		if e.db.CountCurrent() == 0 {
			if e.db.CountNext() == 0 {
				return e.finish(ReasonFrontierExhausted, steps), nil
			}
			if err := e.db.SwapFrontiers(); err != nil {
				return nil, fmt.Errorf("engine: %w", err)
			}
			steps++
			e.checkpointIfDue(steps)

			if e.cfg.MaxSteps != nil && steps >= *e.cfg.MaxSteps {
				return e.finish(ReasonMaxSteps, steps), nil
			}
			continue
		}

		if err := ctx.Err(); err != nil {
			if e.cfg.MaxWallTime != nil && ctx.Err() == context.DeadlineExceeded {
				return e.finish(ReasonMaxWallTime, steps), nil
			}
			return e.finish(ReasonCancelled, steps), nil
		}

		if e.cfg.StopOnWin && e.hasWinner() {
			return e.finish(ReasonStopOnWin, steps), nil
		}

		if err := e.expandOneStep(ctx); err != nil {
			return nil, err
		}
	}
}

func (e *Engine) finish(reason Reason, steps uint64) *Result {
	e.bestMu.Lock()
	defer e.bestMu.Unlock()
	return &Result{Reason: reason, Steps: steps, Winner: e.best}
}

func (e *Engine) hasWinner() bool {
	e.bestMu.Lock()
	defer e.bestMu.Unlock()
	return e.best != nil
}

// expandOneStep drains the current frontier through the worker pool:
// each worker pops one base at a time straight from StateDB.PopCurrent
// and expands it fully before popping the next; a fatal Simulator error
// cancels every worker.
func (e *Engine) expandOneStep(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range e.workers {
		r := r
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				baseRef, ok := e.db.PopCurrent()
				if !ok {
					return nil
				}
				if err := e.expandBase(r, baseRef); err != nil {
					return fmt.Errorf("%w: %v", errs.ErrSimulator, err)
				}
			}
		})
	}
	return g.Wait()
}

// expandBase takes one popped base state, enumerates its legal inputs, and for
// each one clones, advances, evaluates, fingerprints, dedups and
// (if novel and not failed) pushes the child into the next frontier
// (§2's per-step data flow).
func (e *Engine) expandBase(r *runner.Runner, baseRef statedb.Ref) error {
	h := e.db.GetHeader(baseRef)
	base := append([]byte(nil), e.db.Blob(baseRef)...)
	parentHistory := append([]byte(nil), e.db.History(baseRef, h.Depth)...)
	e.db.ReturnFree(baseRef)

	for _, input := range r.LegalInputs(base) {
		if err := e.expandChild(r, h, base, parentHistory, input); err != nil {
			return err
		}
	}
	e.metrics.StepsTaken.Inc()
	return nil
}

func (e *Engine) expandChild(r *runner.Runner, parent statedb.Header, base, parentHistory []byte, input sim.InputID) error {
	child, err := r.Advance(base, input)
	if err != nil {
		return err
	}

	status, result, _ := r.Evaluate(child, parent.RuleStatus)
	e.metrics.StepsTaken.Inc()
	if result.Fail {
		e.metrics.DropsFailRule.Inc()
		return nil
	}

	fp := r.Fingerprint(child)
	switch e.hdb.TryInsert(fp) {
	case hashdb.AlreadyPresent:
		e.metrics.DropsDedup.Inc()
		return nil
	case hashdb.Full:
		e.metrics.DropsBudget.Inc()
		return nil
	}

	childHistory := append(append([]byte(nil), parentHistory...), byte(input))

	if result.Win {
		e.considerWinner(parent.Depth+1, result.Reward, childHistory)
		return nil
	}

	childRef, ok := e.db.GetFree()
	if !ok {
		e.metrics.DropsBudget.Inc()
		return nil
	}
	copy(e.db.Blob(childRef), child)
	if err := e.db.PutHistory(childRef, childHistory); err != nil {
		return err
	}
	e.db.PutHeader(childRef, statedb.Header{
		Depth:      parent.Depth + 1,
		Reward:     result.Reward,
		LastInput:  uint8(input),
		RuleStatus: status,
	})
	e.db.PushNext(childRef, result.Reward)
	return nil
}

// considerWinner replaces the tracked best iff the candidate's step is
// lower, or the step ties and its reward is higher (§4.6): a shorter
// winning path beats a longer one regardless of reward, matching the
// engine's incentive to report the fastest solution among equally-scored
// candidates.
func (e *Engine) considerWinner(step uint32, reward float64, history []byte) {
	e.bestMu.Lock()
	defer e.bestMu.Unlock()
	if e.best == nil || step < e.best.Step || (step == e.best.Step && reward > e.best.Reward) {
		e.best = &Winner{Step: step, Reward: reward, History: append([]byte(nil), history...)}
		e.metrics.BestReward.Set(reward)
	}
}

func (e *Engine) checkpointIfDue(step uint64) {
	if e.cfg.CheckpointPath == "" {
		return
	}
	if time.Since(e.lastCheckpoint) < e.cfg.CheckpointInterval {
		return
	}
	e.lastCheckpoint = time.Now()

	e.bestMu.Lock()
	cp := checkpoint.Checkpoint{Step: step}
	if e.best != nil {
		cp.BestReward = e.best.Reward
		cp.BestHistory = e.best.History
	}
	e.bestMu.Unlock()

	if err := checkpoint.Write(e.cfg.CheckpointPath, cp); err != nil {
		e.log.Warn("checkpoint write failed", zap.Stringer("step", common.HexUint64(step)), zap.Error(err))
	}
}
