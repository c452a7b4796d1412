package compiler

import "github.com/llir/llvm/ir"

// varSlot is a symbol binding: the declared type plus the stack allocation
// that backs it. The allocation always lives in the owning function's entry
// block (§4.3.3) no matter which scope declares the name.
type varSlot struct {
	typ  Type
	slot *ir.InstAlloca
}

// funcSig is the signature bound to a function or extern name in the
// global scope.
type funcSig struct {
	fn         *ir.Func
	returnType Type
	paramTypes []Type
}

// Env is a stack of scopes over local names, plus one flat table of
// function signatures that lives for the whole module. Scopes are pushed on
// function entry, on each Block, and on each For header, and popped exactly
// when the construct that pushed them is exited.
type Env struct {
	scopes []map[string]varSlot
	funcs  map[string]funcSig
}

func NewEnv() *Env {
	return &Env{funcs: make(map[string]funcSig)}
}

func (e *Env) PushScope() {
	e.scopes = append(e.scopes, make(map[string]varSlot))
}

func (e *Env) PopScope() {
	if len(e.scopes) == 0 {
		panic("compiler: PopScope called with no scope pushed")
	}
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// Declare binds name to slot in the innermost scope. It returns false
// without modifying anything if name already exists in that scope - the
// caller turns that into a resolution error.
func (e *Env) Declare(name string, typ Type, slot *ir.InstAlloca) bool {
	if len(e.scopes) == 0 {
		panic("compiler: Declare called with no scope pushed")
	}
	cur := e.scopes[len(e.scopes)-1]
	if _, exists := cur[name]; exists {
		return false
	}
	cur[name] = varSlot{typ: typ, slot: slot}
	return true
}

// Lookup walks the scope stack from innermost outward; the first match wins.
func (e *Env) Lookup(name string) (varSlot, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if b, ok := e.scopes[i][name]; ok {
			return b, true
		}
	}
	return varSlot{}, false
}

// DeclareFunc binds name in the global function table. It returns false
// without modifying anything if name is already bound - this is how an
// extern/definition name collision is surfaced (§8 boundary behaviors).
func (e *Env) DeclareFunc(name string, sig funcSig) bool {
	if _, exists := e.funcs[name]; exists {
		return false
	}
	e.funcs[name] = sig
	return true
}

func (e *Env) LookupFunc(name string) (funcSig, bool) {
	sig, ok := e.funcs[name]
	return sig, ok
}
