package compiler

import (
	"testing"

	"github.com/llir/llvm/ir"
)

func TestVerifyAcceptsWellFormedProgram(t *testing.T) {
	mod, err := Compile(`
		int add(int a, int b) {
			return a + b;
		}
	`)
	if err != nil {
		t.Fatalf("Compile unexpected error: %v", err)
	}
	if err := Verify(mod); err != nil {
		t.Fatalf("Verify rejected a well-formed module: %v", err)
	}
}

// TestVerifyEveryBlockTerminatedAcrossBranches exercises the one-terminator
// check over a function with several blocks (then/cont), since the lowering
// pass terminates every block it creates by construction (§4.3.2) and the
// only way to check that honestly is end to end.
func TestVerifyEveryBlockTerminatedAcrossBranches(t *testing.T) {
	mod, err := Compile(`
		int f(int a) {
			if (a) {
				return 1;
			}
			return 0;
		}
	`)
	if err != nil {
		t.Fatalf("Compile unexpected error: %v", err)
	}
	if err := verifyModule(mod); err != nil {
		t.Fatalf("verifyModule rejected a well-formed module: %v", err)
	}
}

func TestVerifyAllocasStayInEntryBlock(t *testing.T) {
	mod, err := Compile(`
		int f(int n) {
			int total;
			total = 0;
			while (n) {
				int step;
				step = 1;
				total = total + step;
				n = n - 1;
			}
			return total;
		}
	`)
	if err != nil {
		t.Fatalf("Compile unexpected error: %v", err)
	}
	if err := Verify(mod); err != nil {
		t.Fatalf("Verify rejected a module whose loop-body alloca should have been hoisted: %v", err)
	}

	for _, fn := range mod.Funcs {
		if fn.Name() != "f" {
			continue
		}
		for _, blk := range fn.Blocks[1:] {
			for _, inst := range blk.Insts {
				if _, ok := inst.(*ir.InstAlloca); ok {
					t.Fatalf("found an alloca outside the entry block in %q", blk.Name())
				}
			}
		}
	}
}
