package callgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/zboralski/lattice"

	"jsbridge/internal/smali"
)

// BuildCFG constructs a lattice.CFGGraph from program methods.
// Each method is converted via smali's block builder then mapped to
// lattice types.
func BuildCFG(p *smali.Program, methods []smali.MethodID) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, m := range methods {
		lcfg, _ := BuildFuncCFG(p, m)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds a single-method lattice.FuncCFG. Invokes become call
// sites and const-string literals are injected as quoted pseudo-calls.
// Returns the FuncCFG and the number of basic blocks (for filtering trivial
// methods).
func BuildFuncCFG(p *smali.Program, m smali.MethodID) (*lattice.FuncCFG, int) {
	scfg := p.BuildCFG(m)
	class := p.Method(m).Class
	lcfg := convertFuncCFG(p, class, &scfg)
	injectStringRefs(p, class, lcfg, &scfg)
	return lcfg, len(scfg.Blocks)
}

// BuildSummaryFuncCFG builds a single-block FuncCFG listing the interesting
// calls and string literals of a method, each once. Used for the overview
// of methods that touch a sink.
func BuildSummaryFuncCFG(p *smali.Program, m smali.MethodID) (*lattice.FuncCFG, int) {
	scfg := p.BuildCFG(m)
	lcfg := convertSummaryFuncCFG(p, p.Method(m).Class, &scfg)
	return lcfg, len(scfg.Blocks)
}

// injectStringRefs adds string reference CallSite entries into the
// appropriate blocks.
func injectStringRefs(p *smali.Program, class smali.ClassID, lcfg *lattice.FuncCFG, scfg *smali.FuncCFG) {
	for bi, sb := range scfg.Blocks {
		added := false
		for idx := sb.Start; idx < sb.End && idx < len(scfg.Lines); idx++ {
			in := p.Insn(smali.Pos{Class: class, Line: scfg.Lines[idx]})
			if in.Kind != smali.KindConstString || !in.HasLit {
				continue
			}
			lcfg.Blocks[bi].Calls = append(lcfg.Blocks[bi].Calls, lattice.CallSite{
				Offset: idx,
				Callee: quoteLit(in.Lit),
			})
			added = true
		}
		if added {
			sort.Slice(lcfg.Blocks[bi].Calls, func(i, j int) bool {
				return lcfg.Blocks[bi].Calls[i].Offset < lcfg.Blocks[bi].Calls[j].Offset
			})
		}
	}
}

func quoteLit(s string) string {
	if len(s) > 50 {
		s = s[:47] + "..."
	}
	return fmt.Sprintf("%q", s)
}

// Owners whose calls are plumbing rather than behavior.
var noiseOwners = []string{
	"Ljava/lang/Object;",
	"Ljava/lang/StringBuilder;",
	"Ljava/lang/StringBuffer;",
	"Ljava/lang/Integer;",
	"Ljava/lang/Boolean;",
	"Landroid/util/Log;",
}

// isInterestingCallee returns true if the invoke names behavior worth
// showing rather than string building, boxing, or logging.
func isInterestingCallee(in smali.Insn) bool {
	if in.Kind != smali.KindInvoke || in.Owner == "" {
		return false
	}
	for _, o := range noiseOwners {
		if in.Owner == o {
			return false
		}
	}
	return !strings.HasPrefix(in.Member, "access$")
}

// convertSummaryFuncCFG builds a single-block lattice.FuncCFG containing all
// interesting calls and string literals of the method.
func convertSummaryFuncCFG(p *smali.Program, class smali.ClassID, scfg *smali.FuncCFG) *lattice.FuncCFG {
	seen := make(map[string]bool)
	var calls []lattice.CallSite
	seq := 0
	for _, sb := range scfg.Blocks {
		for idx := sb.Start; idx < sb.End && idx < len(scfg.Lines); idx++ {
			in := p.Insn(smali.Pos{Class: class, Line: scfg.Lines[idx]})
			label := ""
			switch {
			case isInterestingCallee(in):
				label = in.Ref()
			case in.Kind == smali.KindConstString && in.HasLit:
				label = quoteLit(in.Lit)
			}
			if label == "" || seen[label] {
				continue
			}
			seen[label] = true
			calls = append(calls, lattice.CallSite{Offset: seq, Callee: label})
			seq++
		}
	}

	lcfg := &lattice.FuncCFG{Name: scfg.Name}
	if len(calls) > 0 {
		lcfg.Blocks = append(lcfg.Blocks, &lattice.BasicBlock{
			ID:    0,
			Start: 0,
			End:   1,
			Term:  true,
			Calls: calls,
		})
	}
	return lcfg
}

// convertFuncCFG maps a smali.FuncCFG to a lattice.FuncCFG.
// Invokes are mapped into blocks by their index in the method's line list.
func convertFuncCFG(p *smali.Program, class smali.ClassID, scfg *smali.FuncCFG) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: scfg.Name}
	for _, sb := range scfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    sb.ID,
			Start: sb.Start,
			End:   sb.End,
			Term:  sb.IsTerm,
		}

		for _, ss := range sb.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ss.BlockID,
				Cond:    ss.Cond,
			})
		}

		for idx := sb.Start; idx < sb.End && idx < len(scfg.Lines); idx++ {
			in := p.Insn(smali.Pos{Class: class, Line: scfg.Lines[idx]})
			if in.Kind != smali.KindInvoke {
				continue
			}
			lb.Calls = append(lb.Calls, lattice.CallSite{
				Offset: idx,
				Callee: in.Ref(),
			})
		}

		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
