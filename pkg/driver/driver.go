// Package driver wires together file input, the compiler core, and the
// output sink - the "external collaborator" layer the core itself does not
// specify (§1, §6). Everything fallible returns a *compiler.CompileError or
// a plain error; this package is the only place that prints a diagnostic or
// the emitted IR text.
package driver

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"

	"minicc/pkg/compiler"
	"minicc/pkg/utils"
)

// Exit codes per §6.
const (
	ExitOK          = 0
	ExitCompileFail = 1
	ExitUsage       = 2
)

// Options is the parsed CLI surface (§6).
type Options struct {
	SourcePath string
	OutPath    string
	Optimize   bool
	Verify     bool
	PrintAST   bool
}

// ParseArgs parses args (excluding the program name) into Options. It
// returns ExitUsage-worthy errors for anything flag.Parse itself can't
// catch, such as a missing positional source path.
func ParseArgs(progName string, args []string) (Options, error) {
	fs := flag.NewFlagSet(progName, flag.ContinueOnError)
	outPath := fs.String("o", "", "write IR text to PATH (default: stdout)")
	optimize := fs.Bool("O", false, "invoke the external optimizer after lowering")
	doVerify := fs.Bool("v", false, "verify the module after lowering")
	printAST := fs.Bool("ast", false, "print the AST and skip lowering")

	if err := fs.Parse(args); err != nil {
		return Options{}, err
	}
	if fs.NArg() != 1 {
		return Options{}, fmt.Errorf("expected exactly one source file argument, got %d", fs.NArg())
	}
	return Options{
		SourcePath: fs.Arg(0),
		OutPath:    *outPath,
		Optimize:   *optimize,
		Verify:     *doVerify,
		PrintAST:   *printAST,
	}, nil
}

// Run executes one compilation end to end and returns the process exit
// code (§6). stdout/stderr are injected so tests can capture them instead
// of the process's real streams.
func Run(progName string, args []string, stdout, stderr io.Writer) int {
	opts, err := ParseArgs(progName, args)
	if err != nil {
		fmt.Fprintf(stderr, "usage error: %v\n", err)
		return ExitUsage
	}

	fullPath, _, err := utils.GetPathInfo(opts.SourcePath)
	if err != nil {
		fmt.Fprintf(stderr, "usage error: %v\n", err)
		return ExitUsage
	}
	srcBytes, err := os.ReadFile(fullPath)
	if err != nil {
		fmt.Fprintf(stderr, "usage error: cannot read %q: %v\n", fullPath, err)
		return ExitUsage
	}
	src := string(srcBytes)

	if opts.PrintAST {
		prog, err := compiler.ParseProgram(compiler.NewLexer(src))
		if err != nil {
			printCompileError(stderr, err)
			return ExitCompileFail
		}
		for _, d := range prog.Decls {
			fmt.Fprintln(stdout, d.String())
		}
		return ExitOK
	}

	mod, err := compiler.Compile(src)
	if err != nil {
		printCompileError(stderr, err)
		return ExitCompileFail
	}

	if opts.Verify {
		if err := compiler.Verify(mod); err != nil {
			printCompileError(stderr, err)
			return ExitCompileFail
		}
	}

	irText := mod.String()
	if opts.Optimize {
		optimized, err := runOpt(irText)
		if err != nil {
			fmt.Fprintf(stderr, "error: optimizer invocation failed: %v\n", err)
			return ExitCompileFail
		}
		irText = optimized
	}

	if opts.OutPath == "" {
		fmt.Fprint(stdout, irText)
		return ExitOK
	}
	if err := os.WriteFile(opts.OutPath, []byte(irText), 0o644); err != nil {
		fmt.Fprintf(stderr, "error: cannot write %q: %v\n", opts.OutPath, err)
		return ExitCompileFail
	}
	return ExitOK
}

// runOpt shells out to the external "opt" binary, treating the library
// optimizer as the opaque, invoked-by-name collaborator the spec describes
// (§1, §6) rather than linking an optimizer into this process.
func runOpt(irText string) (string, error) {
	cmd := exec.Command("opt", "-S", "-O2")
	cmd.Stdin = bytes.NewBufferString(irText)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return out.String(), nil
}

// printCompileError renders the single-line diagnostic §7 mandates:
// "error: <message> at line L, column C".
func printCompileError(w io.Writer, err error) {
	if ce, ok := err.(*compiler.CompileError); ok {
		fmt.Fprintf(w, "error: %s at line %d, column %d\n", ce.Msg, ce.Pos.Line, ce.Pos.Col)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
