package smali

import (
	"sort"
	"strings"
)

// BasicBlock is a run of method lines with a single entry point.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Lines (inclusive)
	End     int    // index into FuncCFG.Lines (exclusive)
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // ends with return or throw
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = branch taken, "F" = fallthrough
}

// FuncCFG is the control flow graph of one method.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Lines  []int // instruction line numbers within the class
}

// BuildCFG constructs the control flow graph of method m:
//  1. Find block leaders: the first instruction, labels, lines after branches and returns.
//  2. Partition instructions into blocks by leaders.
//  3. Compute successor edges from each block's last instruction.
//
// Directives, comments and blank lines are not instructions. Switch payloads
// and exception edges are not modeled.
func (p *Program) BuildCFG(m MethodID) FuncCFG {
	meth := &p.Methods[m]
	c := &p.Classes[meth.Class]
	cfg := FuncCFG{Name: p.Descriptor(m)}

	labelIdx := make(map[string]int)
	payload := false
	for line := meth.Start + 1; line < meth.End && line <= len(c.Insns); line++ {
		in := c.Insns[line-1]
		switch in.Op {
		case ".packed-switch", ".sparse-switch", ".array-data":
			payload = true
		case ".end":
			payload = false
		}
		if payload || in.Op == "" || in.Op[0] == '.' {
			continue
		}
		if in.Op == "label" {
			labelIdx[in.Label] = len(cfg.Lines)
		}
		cfg.Lines = append(cfg.Lines, line)
	}
	if len(cfg.Lines) == 0 {
		return cfg
	}
	insnAt := func(i int) Insn { return c.Insns[cfg.Lines[i]-1] }

	// Pass 1: leaders.
	leaders := map[int]bool{0: true}
	for i := range cfg.Lines {
		in := insnAt(i)
		switch {
		case in.Op == "label":
			leaders[i] = true
		case isBranch(in) || in.Kind == KindReturn:
			if i+1 < len(cfg.Lines) {
				leaders[i+1] = true
			}
		}
	}
	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	// Pass 2: partition.
	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(cfg.Lines)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{ID: i, Start: start, End: end, IsEntry: start == 0}
		leaderToBlock[start] = i
	}

	// Pass 3: successors.
	for i := range blocks {
		blk := &blocks[i]
		last := insnAt(blk.End - 1)
		next, hasNext := leaderToBlock[blk.End]
		target := -1
		if idx, ok := labelIdx[last.Label]; ok && isBranch(last) {
			target = leaderToBlock[idx]
		}
		switch {
		case last.Kind == KindReturn:
			blk.IsTerm = true
		case strings.HasPrefix(last.Op, "goto"):
			if target >= 0 {
				blk.Succs = append(blk.Succs, Succ{BlockID: target})
			} else {
				blk.IsTerm = true
			}
		case isBranch(last):
			if target >= 0 {
				blk.Succs = append(blk.Succs, Succ{BlockID: target, Cond: "T"})
			}
			if hasNext {
				blk.Succs = append(blk.Succs, Succ{BlockID: next, Cond: "F"})
			}
		case hasNext:
			blk.Succs = append(blk.Succs, Succ{BlockID: next})
		}
	}
	cfg.Blocks = blocks
	return cfg
}

func isBranch(in Insn) bool {
	return in.Kind == KindControlFlow && in.Op != "label" && in.Op[0] != '.'
}
