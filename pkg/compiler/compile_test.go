package compiler

import (
	"strings"
	"testing"
)

func compileOK(t *testing.T, src string) string {
	t.Helper()
	mod, err := Compile(src)
	if err != nil {
		t.Fatalf("Compile(%q) unexpected error: %v", src, err)
	}
	if err := Verify(mod); err != nil {
		t.Fatalf("Verify(%q) unexpected error: %v", src, err)
	}
	return mod.String()
}

func TestCompileSimpleAdd(t *testing.T) {
	ir := compileOK(t, `
		int add(int a, int b) {
			return a + b;
		}
	`)
	if !strings.Contains(ir, "@add") {
		t.Fatalf("IR missing add's definition:\n%s", ir)
	}
	if !strings.Contains(ir, "add i32") {
		t.Fatalf("IR missing the add instruction:\n%s", ir)
	}
}

func TestCompileIfElseUnreachableCont(t *testing.T) {
	ir := compileOK(t, `
		int sign(int n) {
			if (n < 0) {
				return -1;
			} else {
				return 1;
			}
		}
	`)
	if !strings.Contains(ir, "if.then") || !strings.Contains(ir, "if.else") || !strings.Contains(ir, "if.cont") {
		t.Fatalf("IR missing then/else/cont blocks:\n%s", ir)
	}
}

func TestCompileWhileLoopSum(t *testing.T) {
	ir := compileOK(t, `
		int sum(int n) {
			int total;
			total = 0;
			while (n > 0) {
				total = total + n;
				n = n - 1;
			}
			return total;
		}
	`)
	if !strings.Contains(ir, "while.cond") || !strings.Contains(ir, "while.body") || !strings.Contains(ir, "while.exit") {
		t.Fatalf("IR missing while's three blocks:\n%s", ir)
	}
}

func TestCompileSelfRecursiveFactorial(t *testing.T) {
	ir := compileOK(t, `
		int fact(int n) {
			if (n <= 1) {
				return 1;
			}
			return n * fact(n - 1);
		}
	`)
	if !strings.Contains(ir, "call i32 @fact") {
		t.Fatalf("IR missing the self-recursive call:\n%s", ir)
	}
}

func TestCompileExternAndCall(t *testing.T) {
	ir := compileOK(t, `
		extern int putchar(int c);
		int main() {
			putchar(65);
			return 0;
		}
	`)
	if !strings.Contains(ir, "declare i32 @putchar") {
		t.Fatalf("IR missing putchar's declaration:\n%s", ir)
	}
	if !strings.Contains(ir, "@putchar(") {
		t.Fatalf("IR missing the call to putchar:\n%s", ir)
	}
}

func TestCompileUndeclaredNameIsResolutionError(t *testing.T) {
	_, err := Compile(`
		int f() {
			return missing;
		}
	`)
	if err == nil {
		t.Fatalf("expected a resolution error")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Kind != ResolutionError {
		t.Fatalf("error = %v, want a ResolutionError", err)
	}
}

// TestCompileEmptyBodySynthesizesDefaultReturn covers the boundary case
// where a non-void function's body falls off the end without an explicit
// return (§4.3.2): the lowering pass must still terminate the block.
func TestCompileEmptyBodySynthesizesDefaultReturn(t *testing.T) {
	ir := compileOK(t, `
		int zero() {
		}
	`)
	if !strings.Contains(ir, "ret i32 0") {
		t.Fatalf("IR missing the synthesized default return:\n%s", ir)
	}
}

func TestCompileVoidFunctionDefaultReturn(t *testing.T) {
	ir := compileOK(t, `
		void noop() {
		}
	`)
	if !strings.Contains(ir, "ret void") {
		t.Fatalf("IR missing the synthesized void return:\n%s", ir)
	}
}

// TestCompileDeadCodeAfterReturnEmitsNothing checks that a statement
// following a return in the same block is silently skipped rather than
// erroring or emitting unreachable instructions (§4.3.7).
func TestCompileDeadCodeAfterReturnEmitsNothing(t *testing.T) {
	ir := compileOK(t, `
		int f() {
			return 1;
			return 2;
		}
	`)
	if strings.Contains(ir, "ret i32 2") {
		t.Fatalf("IR should not contain the dead second return:\n%s", ir)
	}
}

// TestCompilePostfixIncrementResultIsPreUpdateValue checks x++'s result is
// the value before the increment, per the usual C semantics this language
// follows (§4.2's postfix level, §4.3.5).
func TestCompilePostfixIncrementResultIsPreUpdateValue(t *testing.T) {
	ir := compileOK(t, `
		int f(int x) {
			return x++;
		}
	`)
	if !strings.Contains(ir, "load") || !strings.Contains(ir, "add") {
		t.Fatalf("IR missing the load-then-add shape of postfix ++:\n%s", ir)
	}
	var loaded, returned string
	for _, line := range strings.Split(ir, "\n") {
		line = strings.TrimSpace(line)
		if strings.Contains(line, "= load i32") {
			loaded = strings.Fields(line)[0]
		}
		if strings.HasPrefix(line, "ret i32 ") {
			returned = strings.TrimPrefix(line, "ret i32 ")
		}
	}
	if loaded == "" || returned != loaded {
		t.Fatalf("x++ returns %q, want the value loaded before the increment (%q):\n%s", returned, loaded, ir)
	}
}

func TestCompileExternAndDefinitionNameCollisionIsFatal(t *testing.T) {
	_, err := Compile(`
		extern int f(int a);
		int f(int a) {
			return a;
		}
	`)
	if err == nil {
		t.Fatalf("expected a resolution error for the colliding name %q", "f")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Kind != ResolutionError {
		t.Fatalf("error = %v, want a ResolutionError", err)
	}
}

func TestCompileBreakOutsideLoopIsTypeError(t *testing.T) {
	_, err := Compile(`
		int f() {
			break;
			return 0;
		}
	`)
	if err == nil {
		t.Fatalf("expected an error for break outside of a loop")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Kind != TypeError {
		t.Fatalf("error = %v, want a TypeError", err)
	}
}

func TestCompileCallArityMismatchIsTypeError(t *testing.T) {
	_, err := Compile(`
		int add(int a, int b) {
			return a + b;
		}
		int f() {
			return add(1);
		}
	`)
	if err == nil {
		t.Fatalf("expected a type error for the arity mismatch")
	}
	ce, ok := err.(*CompileError)
	if !ok || ce.Kind != TypeError {
		t.Fatalf("error = %v, want a TypeError", err)
	}
}

// TestCompileNestedLoopBreakTargetsInnerLoop checks that break inside a
// nested for resolves to its own exit block, not an outer while's, per the
// strict LIFO loop stack (§4.3.6).
func TestCompileNestedLoopBreakTargetsInnerLoop(t *testing.T) {
	ir := compileOK(t, `
		int f() {
			int i;
			i = 0;
			while (i < 10) {
				for (;;) {
					break;
				}
				i = i + 1;
			}
			return i;
		}
	`)
	if !strings.Contains(ir, "br label %for.exit") {
		t.Fatalf("IR missing the break's branch to the inner for loop's exit block:\n%s", ir)
	}
}

func TestCompileAssignmentNarrowsIntToChar(t *testing.T) {
	ir := compileOK(t, `
		int f() {
			char c;
			c = 320;
			return 0;
		}
	`)
	if !strings.Contains(ir, "trunc") {
		t.Fatalf("IR missing the narrowing truncation from int literal to char:\n%s", ir)
	}
}

func TestCompileShortCircuitAndSkipsRightOperand(t *testing.T) {
	ir := compileOK(t, `
		int f(int a, int b) {
			return a && b;
		}
	`)
	if !strings.Contains(ir, "logic.rhs") || !strings.Contains(ir, "logic.short") {
		t.Fatalf("IR missing short-circuit blocks for &&:\n%s", ir)
	}
}
