package compiler

import "github.com/llir/llvm/ir"

// Compile runs the full front end over src and returns the populated IR
// module. There is no preprocessing stage: the C preprocessor is an
// explicit non-goal (§1). Unlike an interactive tool, this function never
// writes anything itself - the driver is the sole place that prints a
// diagnostic or the resulting IR text (§7).
func Compile(src string) (*ir.Module, error) {
	lex := NewLexer(src)
	prog, err := ParseProgram(lex)
	if err != nil {
		return nil, err
	}
	return Lower(prog)
}

// Verify re-checks an already-lowered module against this front end's own
// structural invariants (§8). It stands in for the opaque library verifier
// the spec names as an external collaborator (§1) - llir/llvm does not
// ship one.
func Verify(mod *ir.Module) error {
	return verifyModule(mod)
}
