package compiler

import (
	"github.com/llir/llvm/ir"
)

// verifyFunction checks the two structural invariants this front end commits
// to (§8, invariants 4 and 5) that the llir/llvm builder itself does not
// enforce: every basic block has exactly one terminator, and every stack
// allocation lives in its function's entry block. Anything beyond that -
// type legality of individual instructions, dominance, and so on - is left
// to whatever downstream tool consumes the emitted IR (§1: optimization and
// verification passes proper are opaque, invoked by name).
func verifyFunction(fn *ir.Func) error {
	if len(fn.Blocks) == 0 {
		return nil // extern declaration: no body to check
	}
	entry := fn.Blocks[0]

	for i, block := range fn.Blocks {
		if block.Term == nil {
			return verifyErrorf(Position{}, "function %q: block %q has no terminator", fn.Name(), block.Name())
		}
		if i > 0 {
			for _, inst := range block.Insts {
				if _, ok := inst.(*ir.InstAlloca); ok {
					return verifyErrorf(Position{}, "function %q: stack allocation found outside the entry block, in %q", fn.Name(), block.Name())
				}
			}
		}
	}

	sawNonAlloca := false
	for _, inst := range entry.Insts {
		if _, ok := inst.(*ir.InstAlloca); ok {
			if sawNonAlloca {
				return verifyErrorf(Position{}, "function %q: entry block interleaves an allocation after other instructions", fn.Name())
			}
			continue
		}
		sawNonAlloca = true
	}

	return nil
}

// verifyModule runs verifyFunction over every defined function in mod. It
// is what the driver's -v flag invokes in place of the opaque library
// verifier the spec treats as an external collaborator (§1) - llir/llvm
// ships no verifier of its own.
func verifyModule(mod *ir.Module) error {
	for _, fn := range mod.Funcs {
		if err := verifyFunction(fn); err != nil {
			return err
		}
	}
	return nil
}
