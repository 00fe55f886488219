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

// Package rules implements the rule DSL: parsing into an immutable,
// compiled ruleset, per-state cascading evaluation, and (in scoring.go)
// the magnet-based reward formula. A Rule is a conjunction of typed
// condition comparisons plus an ordered action list; satisfying one rule
// can transitively satisfy others via satisfiesIndexes (§4.3).
package rules

import (
	"fmt"
	"math"

	roaring "github.com/RoaringBitmap/roaring/v2"
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Randomno/jaffarPlus/common"
	"github.com/Randomno/jaffarPlus/errs"
	"github.com/Randomno/jaffarPlus/sim"
)

// Op is a typed scalar comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
)

func (op Op) eval(lhs, rhs float64) bool {
	switch op {
	case OpEq:
		return lhs == rhs
	case OpNe:
		return lhs != rhs
	case OpLt:
		return lhs < rhs
	case OpLe:
		return lhs <= rhs
	case OpGt:
		return lhs > rhs
	case OpGe:
		return lhs >= rhs
	default:
		panic("rules: unknown Op")
	}
}

// ParseOp maps the DSL's string operators to Op.
func ParseOp(s string) (Op, error) {
	switch s {
	case "==":
		return OpEq, nil
	case "!=":
		return OpNe, nil
	case "<":
		return OpLt, nil
	case "<=":
		return OpLe, nil
	case ">":
		return OpGt, nil
	case ">=":
		return OpGe, nil
	default:
		return 0, fmt.Errorf("rules: unknown comparison operator %q", s)
	}
}

// ActionKind distinguishes the action variants an action document may
// declare; exactly one of an ActionDoc's fields group applies for a given
// Kind.
type ActionKind int

const (
	ActionSetMagnet ActionKind = iota
	ActionAddReward
	ActionMarkWin
	ActionMarkFail
	ActionSatisfy
)

// ConditionDoc is the wire shape of one condition, as decoded from the
// configuration document's Rules array.
type ConditionDoc struct {
	Property  string  `toml:"Property"`
	Op        string  `toml:"Op"`
	Immediate float64 `toml:"Immediate"`
}

// ActionDoc is the wire shape of one action.
type ActionDoc struct {
	Type string `toml:"Type"` // "SetMagnet" | "Reward" | "Win" | "Fail" | "Satisfy"

	Magnet    string  `toml:"Magnet"`
	Intensity float64 `toml:"Intensity"`
	Min       float64 `toml:"Min"`
	Max       float64 `toml:"Max"`
	Center    float64 `toml:"Center"`
	WeaponID  float64 `toml:"Weapon Id"`

	Reward float64 `toml:"Reward"`

	SatisfiesLabel string `toml:"Satisfies"`
}

// RuleDoc is the wire shape of one rule, as decoded from TOML.
type RuleDoc struct {
	Label      string         `toml:"Label"`
	Conditions []ConditionDoc `toml:"Conditions"`
	Actions    []ActionDoc    `toml:"Actions"`
}

// Condition is a compiled, type-checked comparison against a resolved
// property.
type Condition struct {
	Prop      sim.PropertyRef
	Op        Op
	Immediate float64
}

func (c Condition) holds(state []byte) bool {
	return c.Op.eval(sim.ReadTyped(state, c.Prop), c.Immediate)
}

// Action is a compiled action. Exactly the fields relevant to Kind are
// populated.
type Action struct {
	Kind ActionKind

	MagnetName string
	Magnet     MagnetValue

	Reward float64

	SatisfyID int
}

// CompiledRule is immutable after Compile. Rule ids are dense indices
// into Set.rules, assigned in declaration order.
type CompiledRule struct {
	ID               int
	Label            string
	Conditions       []Condition
	Actions          []Action
	SatisfiesIndexes []int
	IsWin            bool
	IsFail           bool
}

// Set is the immutable, compiled ruleset produced by Compile. It is
// read-only after construction and safe for concurrent use by any number
// of worker goroutines.
type Set struct {
	rules    []CompiledRule
	labelIdx map[string]int
	magnets  MagnetLayout
}

// Len returns the number of compiled rules.
func (s *Set) Len() int { return len(s.rules) }

// Rule returns the compiled rule at id.
func (s *Set) Rule(id int) *CompiledRule { return &s.rules[id] }

// LabelIndex resolves a rule label to its compiled id, used to turn a
// Game's InitialRuleStatusBits label list into concrete bit indices.
func (s *Set) LabelIndex(label string) (int, bool) {
	id, ok := s.labelIdx[label]
	return id, ok
}

// Magnets returns the declared magnet layout.
func (s *Set) Magnets() MagnetLayout { return s.magnets }

// checkImmediateBounds rejects a condition immediate that cannot be
// represented by ref's declared PropertyType, per sim.PropertyType's
// "validated against this at compile time" contract: an immediate like
// 300 against a TypeUint8 property can never compare true or false in a
// way the author intended, since ReadTyped will never produce it.
func checkImmediateBounds(ref sim.PropertyRef, immediate float64) error {
	switch ref.Type {
	case sim.TypeUint8:
		if immediate < 0 || immediate > common.MaxUint8 {
			return fmt.Errorf("immediate %v out of range for uint8 property %q [0, %d]", immediate, ref.Name, common.MaxUint8)
		}
	case sim.TypeInt8:
		if immediate < common.MinInt8 || immediate > common.MaxInt8 {
			return fmt.Errorf("immediate %v out of range for int8 property %q [%d, %d]", immediate, ref.Name, common.MinInt8, common.MaxInt8)
		}
	case sim.TypeUint16:
		if immediate < 0 || immediate > common.MaxUint16 {
			return fmt.Errorf("immediate %v out of range for uint16 property %q [0, %d]", immediate, ref.Name, common.MaxUint16)
		}
	case sim.TypeInt16:
		if immediate < common.MinInt16 || immediate > common.MaxInt16 {
			return fmt.Errorf("immediate %v out of range for int16 property %q [%d, %d]", immediate, ref.Name, common.MinInt16, common.MaxInt16)
		}
	case sim.TypeFloat32:
		if immediate > math.MaxFloat32 || immediate < -math.MaxFloat32 {
			return fmt.Errorf("immediate %v out of range for float32 property %q", immediate, ref.Name)
		}
	}
	return nil
}

// Compile parses rule documents into an immutable Set. props resolves
// condition/magnet-probe property names to their typed descriptor;
// an unknown property name is a fatal configuration error (§4.3, §7).
// magnets is the per-game declared magnet layout (§3 "Magnet set").
func Compile(docs []RuleDoc, props map[string]sim.PropertyRef, magnets MagnetLayout) (*Set, error) {
	s := &Set{
		labelIdx: make(map[string]int, len(docs)),
		magnets:  magnets,
	}

	for i, d := range docs {
		if _, dup := s.labelIdx[d.Label]; dup {
			return nil, fmt.Errorf("rules: duplicate rule label %q", d.Label)
		}
		s.labelIdx[d.Label] = i
	}

	s.rules = make([]CompiledRule, len(docs))
	for i, d := range docs {
		cr := CompiledRule{ID: i, Label: d.Label}

		for _, cd := range d.Conditions {
			ref, ok := props[cd.Property]
			if !ok {
				return nil, fmt.Errorf("rules: rule %q: %w %q", d.Label, errs.ErrUnknownProperty, cd.Property)
			}
			op, err := ParseOp(cd.Op)
			if err != nil {
				return nil, fmt.Errorf("rules: rule %q: %w", d.Label, err)
			}
			if err := checkImmediateBounds(ref, cd.Immediate); err != nil {
				return nil, fmt.Errorf("rules: rule %q: condition on %q: %w: %v", d.Label, cd.Property, errs.ErrConfig, err)
			}
			cr.Conditions = append(cr.Conditions, Condition{Prop: ref, Op: op, Immediate: cd.Immediate})
		}

		for _, ad := range d.Actions {
			act, err := compileAction(d.Label, ad, magnets, s.labelIdx)
			if err != nil {
				return nil, err
			}
			cr.Actions = append(cr.Actions, act)
			switch act.Kind {
			case ActionMarkWin:
				cr.IsWin = true
			case ActionMarkFail:
				cr.IsFail = true
			case ActionSatisfy:
				cr.SatisfiesIndexes = append(cr.SatisfiesIndexes, act.SatisfyID)
			}
		}

		s.rules[i] = cr
	}

	if err := detectCycles(s.rules); err != nil {
		return nil, err
	}

	return s, nil
}

func compileAction(ruleLabel string, ad ActionDoc, magnets MagnetLayout, labelIdx map[string]int) (Action, error) {
	switch ad.Type {
	case "SetMagnet":
		probe, ok := magnets.ProbeFor(ad.Magnet)
		if !ok {
			return Action{}, fmt.Errorf("rules: rule %q: %w %q", ruleLabel, errs.ErrUnknownProperty, ad.Magnet)
		}
		return Action{
			Kind:       ActionSetMagnet,
			MagnetName: ad.Magnet,
			Magnet: MagnetValue{
				Intensity: ad.Intensity,
				Min:       ad.Min,
				Max:       ad.Max,
				Center:    ad.Center,
				WeaponID:  ad.WeaponID,
				Reward:    ad.Reward,
				Probe:     probe,
				Kind:      magnets.KindFor(ad.Magnet),
			},
		}, nil
	case "Reward":
		return Action{Kind: ActionAddReward, Reward: ad.Reward}, nil
	case "Win":
		return Action{Kind: ActionMarkWin}, nil
	case "Fail":
		return Action{Kind: ActionMarkFail}, nil
	case "Satisfy":
		target, ok := labelIdx[ad.SatisfiesLabel]
		if !ok {
			return Action{}, fmt.Errorf("rules: rule %q: Satisfy references unknown rule %q", ruleLabel, ad.SatisfiesLabel)
		}
		return Action{Kind: ActionSatisfy, SatisfyID: target}, nil
	default:
		return Action{}, fmt.Errorf("rules: rule %q: unknown action type %q", ruleLabel, ad.Type)
	}
}

// CompileForGame is Compile's usual entry point: it reads game's
// declared properties and magnet layout itself, converts the magnet
// kind strings (sim.MagnetDeclDoc.Kind) to the typed enum, and compiles
// docs against the result.
func CompileForGame(docs []RuleDoc, game *sim.Game) (*Set, error) {
	props := game.Properties()

	var magnetDecls []MagnetDecl
	for _, d := range game.MagnetLayout() {
		kind, err := ParseMagnetKind(d.Kind)
		if err != nil {
			return nil, fmt.Errorf("rules: magnet %q: %w", d.Name, err)
		}
		magnetDecls = append(magnetDecls, MagnetDecl{Name: d.Name, Kind: kind, Probe: d.Probe})
	}

	layout, err := NewMagnetLayout(magnetDecls, props)
	if err != nil {
		return nil, err
	}

	return Compile(docs, props, layout)
}

// InitialStatusForGame resolves a Game's InitialRuleStatusBits label
// list against the compiled Set, returning a RulesStatus with those
// bits pre-set (§6.2 "initial_rule_status_bits").
func InitialStatusForGame(s *Set, game *sim.Game) (RulesStatus, error) {
	status := NewRulesStatus(s.Len())
	for _, label := range game.InitialRuleStatusBits() {
		id, ok := s.LabelIndex(label)
		if !ok {
			return RulesStatus{}, fmt.Errorf("rules: initial rule status references unknown label %q", label)
		}
		status.Set(id)
	}
	return status, nil
}

// detectCycles walks the satisfiesIndexes graph of every rule, ensuring
// the cascade in satisfy() below is guaranteed to terminate. A cycle is a
// fatal configuration error: cascading must be terminal, and the
// per-state "already set" re-entry guard only stops an infinite loop at
// runtime after wasted recursion, not at parse time.
func detectCycles(rs []CompiledRule) error {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make([]int, len(rs))
	visiting := mapset.NewThreadUnsafeSet[int]()

	var visit func(id int) error
	visit = func(id int) error {
		if color[id] == black {
			return nil
		}
		if color[id] == gray || visiting.Contains(id) {
			return fmt.Errorf("rules: cycle detected in satisfiesIndexes involving rule %q", rs[id].Label)
		}
		color[id] = gray
		visiting.Add(id)
		for _, sub := range rs[id].SatisfiesIndexes {
			if err := visit(sub); err != nil {
				return err
			}
		}
		visiting.Remove(id)
		color[id] = black
		return nil
	}

	for i := range rs {
		if err := visit(i); err != nil {
			return err
		}
	}
	return nil
}

// RulesStatus is the fixed-width, per-state bitset indexed by rule id
// (§3 "Step record"). It is a dense []uint64 word array sized once for
// the lifetime of a Set, so it serializes to a fixed number of bytes fit
// for a StateDB slot header.
type RulesStatus struct {
	words []uint64
}

// NewRulesStatus allocates a zeroed status for ruleCount rules.
func NewRulesStatus(ruleCount int) RulesStatus {
	return RulesStatus{words: make([]uint64, (ruleCount+63)/64)}
}

// Test reports whether bit r is set.
func (rs RulesStatus) Test(r int) bool {
	return rs.words[r/64]&(1<<uint(r%64)) != 0
}

// Set marks bit r.
func (rs RulesStatus) Set(r int) {
	rs.words[r/64] |= 1 << uint(r%64)
}

// Clone returns an independent copy.
func (rs RulesStatus) Clone() RulesStatus {
	w := make([]uint64, len(rs.words))
	copy(w, rs.words)
	return RulesStatus{words: w}
}

// Bytes returns the fixed-size byte encoding used in a StateDB slot.
func (rs RulesStatus) Bytes() []byte {
	buf := make([]byte, len(rs.words)*8)
	for i, w := range rs.words {
		for b := 0; b < 8; b++ {
			buf[i*8+b] = byte(w >> (8 * b))
		}
	}
	return buf
}

// RulesStatusFromBytes decodes a previously-encoded status for ruleCount
// rules.
func RulesStatusFromBytes(buf []byte, ruleCount int) RulesStatus {
	rs := NewRulesStatus(ruleCount)
	for i := range rs.words {
		var w uint64
		for b := 0; b < 8; b++ {
			w |= uint64(buf[i*8+b]) << (8 * b)
		}
		rs.words[i] = w
	}
	return rs
}

// EvalResult is the outcome of Evaluate: the scalar reward and the
// win/fail classification.
type EvalResult struct {
	Reward float64
	Win    bool
	Fail   bool
}

// Evaluate runs §4.3's per-step sweep over every rule not yet satisfied
// in status, working on a copy of status (the caller's value is left
// unchanged), and returns the updated copy, the scored result and the
// active magnet tuple. The sweep order is the rule declaration
// order, which is also the tie-break order for magnets (§4.3 "last one
// in rule order wins"): a later rule's SetMagnet action always overwrites
// an earlier one's for the same magnet name within one call.
func (s *Set) Evaluate(state []byte, status RulesStatus) (RulesStatus, EvalResult, MagnetState) {
	status = status.Clone()
	active := newMagnetState(s.magnets)

	var result EvalResult
	for i := range s.rules {
		if status.Test(i) {
			continue
		}
		if conditionsHold(s.rules[i].Conditions, state) {
			satisfy(s.rules, status, i)
		}
	}

	// Actions run exactly once per state, in rule order, for every rule
	// that ended the sweep satisfied — including those satisfied only
	// transitively via a cascade, so a sub-rule's own reward/magnet
	// actions still apply even though its conditions were never tested.
	for i := range s.rules {
		if !status.Test(i) {
			continue
		}
		for _, act := range s.rules[i].Actions {
			switch act.Kind {
			case ActionSetMagnet:
				active.set(act.MagnetName, act.Magnet)
			case ActionAddReward:
				result.Reward += act.Reward
			case ActionMarkWin:
				result.Win = true
			case ActionMarkFail:
				result.Fail = true
			}
		}
	}

	result.Reward += Score(state, active)
	return status, result, active
}

func conditionsHold(conds []Condition, state []byte) bool {
	for _, c := range conds {
		if !c.holds(state) {
			return false
		}
	}
	return true
}

// satisfy marks bit id and recursively satisfies every rule transitively
// reachable via satisfiesIndexes, guarding against re-entry exactly as
// the original's satisfyRule does: a sub-rule already satisfied this
// state is never revisited.
func satisfy(rs []CompiledRule, status RulesStatus, id int) {
	if status.Test(id) {
		return
	}
	status.Set(id)
	for _, sub := range rs[id].SatisfiesIndexes {
		if !status.Test(sub) {
			satisfy(rs, status, sub)
		}
	}
}

// closure returns every rule id reachable from id via satisfiesIndexes,
// used only by tests asserting the cascade property (§8 property 5).
func closure(rs []CompiledRule, id int) *roaring.Bitmap {
	bm := roaring.New()
	var walk func(int)
	walk = func(cur int) {
		if bm.Contains(uint32(cur)) {
			return
		}
		bm.Add(uint32(cur))
		for _, sub := range rs[cur].SatisfiesIndexes {
			walk(sub)
		}
	}
	walk(id)
	bm.Remove(uint32(id))
	return bm
}
