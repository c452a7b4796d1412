package compiler

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
)

// loopFrame is one entry of the strict LIFO loop stack (§4.3.6): the block a
// break jumps to, and the block a continue jumps to.
type loopFrame struct {
	exit       *ir.Block
	continueTo *ir.Block
}

// lowerer holds every piece of mutable state threaded through a single AST
// to IR lowering pass. One lowerer is used for exactly one compilation; it
// is never reused across modules.
type lowerer struct {
	mod *ir.Module
	env *Env

	curFn      *ir.Func
	curRetType Type
	entry      *ir.Block // curFn's entry block; all allocas are prepended here
	cur        *ir.Block // current insertion cursor

	allocaPos int // next insertion index for a new alloca within entry.Insts

	loopStack []loopFrame

	blockSeq int // uniquifies generated basic block names within curFn
	strSeq   int // uniquifies generated string global names within mod
}

func newLowerer() *lowerer {
	return &lowerer{mod: ir.NewModule(), env: NewEnv()}
}

// Lower translates a parsed Program into an LLVM IR module. Declarations
// are processed in source order. The first failing declaration aborts the
// whole pass: Lower returns the error and no module, so a partially lowered
// function never reaches the caller. Declarations after the failing one are
// not lowered.
func Lower(prog *Program) (*ir.Module, error) {
	l := newLowerer()

	// Function signatures are bound before any body is lowered so forward
	// references and self-recursion (§8 scenario 4) resolve.
	for _, d := range prog.Decls {
		if err := l.declareSignature(d); err != nil {
			return nil, err
		}
	}

	for _, d := range prog.Decls {
		switch n := d.(type) {
		case *Function:
			if err := l.lowerFunction(n); err != nil {
				return nil, err
			}
		case *ExternFunction:
			// Signature already bound and the declaration already appended
			// to the module by declareSignature; nothing further to do.
		default:
			return nil, fmt.Errorf("compiler: unhandled declaration type %T", n)
		}
	}

	return l.mod, nil
}

// irType maps a source Type to its LLVM IR type (§4.3.1).
func irType(t Type) types.Type {
	switch t {
	case TypeInt:
		return types.I32
	case TypeFloat:
		return types.Float
	case TypeDouble:
		return types.Double
	case TypeChar:
		return types.I8
	case TypeBool:
		return types.I1
	case TypeVoid:
		return types.Void
	default:
		panic(fmt.Sprintf("compiler: unmapped type %v", t))
	}
}

// zeroValue returns the default value synthesized for a type when no
// expression supplies one - a missing return (§4.3.2) or a VarDecl with no
// initializer.
func zeroValue(t Type) constant.Constant {
	switch t {
	case TypeInt:
		return constant.NewInt(types.I32, 0)
	case TypeChar:
		return constant.NewInt(types.I8, 0)
	case TypeBool:
		return constant.NewBool(false)
	case TypeFloat:
		return constant.NewFloat(types.Float, 0)
	case TypeDouble:
		return constant.NewFloat(types.Double, 0)
	default:
		panic(fmt.Sprintf("compiler: no zero value for type %v", t))
	}
}

func paramTypes(params []Param) []Type {
	out := make([]Type, len(params))
	for i, p := range params {
		out[i] = p.Type
	}
	return out
}

// declareSignature binds the global function symbol for fn or externDecl
// and, for an extern, creates the declaration-only *ir.Func (no blocks) and
// appends it to the module.
func (l *lowerer) declareSignature(d Decl) error {
	switch n := d.(type) {
	case *Function:
		return l.bindSignature(n.Name, n.ReturnType, n.Params, n.P)
	case *ExternFunction:
		if err := l.bindSignature(n.Name, n.ReturnType, n.Params, n.P); err != nil {
			return err
		}
		return nil
	default:
		return fmt.Errorf("compiler: unhandled declaration type %T", n)
	}
}

func (l *lowerer) bindSignature(name string, retType Type, params []Param, pos Position) error {
	irParams := make([]*ir.Param, len(params))
	for i, p := range params {
		irParams[i] = ir.NewParam(p.Name, irType(p.Type))
	}
	fn := l.mod.NewFunc(name, irType(retType), irParams...)
	sig := funcSig{fn: fn, returnType: retType, paramTypes: paramTypes(params)}
	if !l.env.DeclareFunc(name, sig) {
		return resolveErrorf(pos, "function %q is already declared", name)
	}
	return nil
}

// lowerFunction attaches an entry block to the already-created *ir.Func and
// lowers its body (§4.3.2).
func (l *lowerer) lowerFunction(n *Function) error {
	sig, _ := l.env.LookupFunc(n.Name)
	fn := sig.fn

	entry := fn.NewBlock(l.blockName("entry"))
	l.curFn = fn
	l.curRetType = n.ReturnType
	l.entry = entry
	l.cur = entry
	l.loopStack = nil
	l.allocaPos = 0

	l.env.PushScope()
	defer l.env.PopScope()

	for i, p := range n.Params {
		slot := l.allocaInEntry(p.Type)
		l.entry.NewStore(fn.Params[i], slot)
		if !l.env.Declare(p.Name, p.Type, slot) {
			return resolveErrorf(n.P, "duplicate parameter name %q", p.Name)
		}
	}

	if err := l.lowerBlock(n.Body); err != nil {
		return err
	}

	if l.cur.Term == nil {
		l.emitDefaultReturn(n.ReturnType)
	}

	if len(l.loopStack) != 0 {
		return fmt.Errorf("compiler: loop stack not empty at exit of function %q", n.Name)
	}

	if err := verifyFunction(fn); err != nil {
		// A verification failure discards the partial function rather than
		// leaving a malformed one in the module (§7).
		l.removeFunc(fn)
		return err
	}
	return nil
}

func (l *lowerer) removeFunc(fn *ir.Func) {
	funcs := l.mod.Funcs
	for i, f := range funcs {
		if f == fn {
			l.mod.Funcs = append(funcs[:i], funcs[i+1:]...)
			return
		}
	}
}

func (l *lowerer) emitDefaultReturn(retType Type) {
	if retType == TypeVoid {
		l.cur.NewRet(nil)
		return
	}
	l.cur.NewRet(zeroValue(retType))
}

// allocaInEntry creates a stack allocation and splices it into entry.Insts
// at l.allocaPos, ahead of every instruction already emitted into the
// entry block, then advances the position so the next alloca lands right
// after it. This is what keeps every stack slot in the entry block
// regardless of how deep in the body its declaring statement sits (§4.3.3).
func (l *lowerer) allocaInEntry(t Type) *ir.InstAlloca {
	alloca := l.entry.NewAlloca(irType(t))
	insts := l.entry.Insts
	last := len(insts) - 1
	copy(insts[l.allocaPos+1:last+1], insts[l.allocaPos:last])
	insts[l.allocaPos] = alloca
	l.entry.Insts = insts
	l.allocaPos++
	return alloca
}

// blockName returns a name unique within the current function, derived
// from base - needed because control-flow lowering (§4.3.6) may create any
// number of "if.then"/"while.cond"-style blocks per function.
func (l *lowerer) blockName(base string) string {
	l.blockSeq++
	return fmt.Sprintf("%s.%d", base, l.blockSeq)
}

// newStringGlobal materializes a string literal as a null-terminated global
// byte array and returns a pointer to its first byte (§4.3.4).
func (l *lowerer) newStringGlobal(data []byte) *ir.Global {
	l.strSeq++
	name := fmt.Sprintf(".str.%d", l.strSeq)
	withNul := append(append([]byte{}, data...), 0)
	g := l.mod.NewGlobalDef(name, constant.NewCharArrayFromString(string(withNul)))
	g.Immutable = true
	return g
}
