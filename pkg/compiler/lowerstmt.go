package compiler

import "fmt"

// lowerBlock pushes a scope, lowers each statement in order, and pops the
// scope on every exit path. The terminator check happens here rather than
// inside each statement lowerer: once the current block has a terminator,
// every remaining statement in this block is unreachable and must not emit
// anything (§4.3.7) - that is simpler than treating dead code as an error.
func (l *lowerer) lowerBlock(b *Block) error {
	l.env.PushScope()
	defer l.env.PopScope()
	for _, s := range b.Stmts {
		if l.cur.Term != nil {
			continue
		}
		if err := l.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (l *lowerer) lowerStmt(s Stmt) error {
	switch n := s.(type) {
	case *VarDecl:
		return l.lowerVarDecl(n)
	case *ExprStmt:
		_, _, err := l.lowerExpr(n.Expr)
		return err
	case *If:
		return l.lowerIf(n)
	case *While:
		return l.lowerWhile(n)
	case *For:
		return l.lowerFor(n)
	case *Return:
		return l.lowerReturn(n)
	case *Break:
		return l.lowerBreak(n)
	case *Continue:
		return l.lowerContinue(n)
	case *Block:
		return l.lowerBlock(n)
	default:
		return fmt.Errorf("compiler: unhandled statement type %T", n)
	}
}

func (l *lowerer) lowerVarDecl(n *VarDecl) error {
	slot := l.allocaInEntry(n.Type)
	if n.Init != nil {
		v, t, err := l.lowerExpr(n.Init)
		if err != nil {
			return err
		}
		l.cur.NewStore(l.convert(v, t, n.Type), slot)
	} else {
		l.cur.NewStore(zeroValue(n.Type), slot)
	}
	if !l.env.Declare(n.Name, n.Type, slot) {
		return resolveErrorf(n.P, "%q is already declared in this scope", n.Name)
	}
	return nil
}

// lowerIf implements §4.3.6's if/else lowering: then/else/cont blocks, a
// not-equal-zero test on the condition, and a fallthrough branch to cont
// from any arm that doesn't already end in a terminator.
func (l *lowerer) lowerIf(n *If) error {
	cond, condType, err := l.lowerExpr(n.Cond)
	if err != nil {
		return err
	}
	test := l.truthy(cond, condType)

	thenBlock := l.curFn.NewBlock(l.blockName("if.then"))
	contBlock := l.curFn.NewBlock(l.blockName("if.cont"))

	if n.Else != nil {
		elseBB := l.curFn.NewBlock(l.blockName("if.else"))
		l.cur.NewCondBr(test, thenBlock, elseBB)

		l.cur = thenBlock
		if err := l.lowerBlock(n.Then); err != nil {
			return err
		}
		if l.cur.Term == nil {
			l.cur.NewBr(contBlock)
		}

		l.cur = elseBB
		if err := l.lowerBlock(n.Else); err != nil {
			return err
		}
		if l.cur.Term == nil {
			l.cur.NewBr(contBlock)
		}
	} else {
		l.cur.NewCondBr(test, thenBlock, contBlock)

		l.cur = thenBlock
		if err := l.lowerBlock(n.Then); err != nil {
			return err
		}
		if l.cur.Term == nil {
			l.cur.NewBr(contBlock)
		}
	}

	l.cur = contBlock
	return nil
}

// lowerWhile implements §4.3.6: cond/body/exit blocks, with the loop stack
// entry (exit, cond) pushed for the duration of the body so nested
// break/continue resolve to this loop.
func (l *lowerer) lowerWhile(n *While) error {
	condBlock := l.curFn.NewBlock(l.blockName("while.cond"))
	bodyBlock := l.curFn.NewBlock(l.blockName("while.body"))
	exitBlock := l.curFn.NewBlock(l.blockName("while.exit"))

	l.cur.NewBr(condBlock)

	l.cur = condBlock
	cond, condType, err := l.lowerExpr(n.Cond)
	if err != nil {
		return err
	}
	test := l.truthy(cond, condType)
	l.cur.NewCondBr(test, bodyBlock, exitBlock)

	l.loopStack = append(l.loopStack, loopFrame{exit: exitBlock, continueTo: condBlock})
	l.cur = bodyBlock
	if err := l.lowerBlock(n.Body); err != nil {
		return err
	}
	if l.cur.Term == nil {
		l.cur.NewBr(condBlock)
	}
	l.loopStack = l.loopStack[:len(l.loopStack)-1]

	l.cur = exitBlock
	return nil
}

// lowerFor implements §4.3.6: a scope for the header's init, then the same
// shape as while with an extra step block spliced between body-fallthrough
// and cond. The continue target is step, not cond.
func (l *lowerer) lowerFor(n *For) error {
	l.env.PushScope()
	defer l.env.PopScope()

	if n.Init != nil {
		if err := l.lowerStmt(n.Init); err != nil {
			return err
		}
	}

	condBlock := l.curFn.NewBlock(l.blockName("for.cond"))
	bodyBlock := l.curFn.NewBlock(l.blockName("for.body"))
	stepBlock := l.curFn.NewBlock(l.blockName("for.step"))
	exitBlock := l.curFn.NewBlock(l.blockName("for.exit"))

	l.cur.NewBr(condBlock)

	l.cur = condBlock
	if n.Cond != nil {
		cond, condType, err := l.lowerExpr(n.Cond)
		if err != nil {
			return err
		}
		test := l.truthy(cond, condType)
		l.cur.NewCondBr(test, bodyBlock, exitBlock)
	} else {
		l.cur.NewBr(bodyBlock)
	}

	l.loopStack = append(l.loopStack, loopFrame{exit: exitBlock, continueTo: stepBlock})
	l.cur = bodyBlock
	if err := l.lowerBlock(n.Body); err != nil {
		return err
	}
	if l.cur.Term == nil {
		l.cur.NewBr(stepBlock)
	}
	l.loopStack = l.loopStack[:len(l.loopStack)-1]

	l.cur = stepBlock
	if n.Step != nil {
		if _, _, err := l.lowerExpr(n.Step); err != nil {
			return err
		}
	}
	if l.cur.Term == nil {
		l.cur.NewBr(condBlock)
	}

	l.cur = exitBlock
	return nil
}

func (l *lowerer) lowerReturn(n *Return) error {
	retType := l.curRetType
	if retType == TypeVoid {
		if n.Expr != nil {
			return typeErrorf(n.P, "void function must not return a value")
		}
		l.cur.NewRet(nil)
		return nil
	}
	if n.Expr == nil {
		return typeErrorf(n.P, "non-void function must return a value")
	}
	v, t, err := l.lowerExpr(n.Expr)
	if err != nil {
		return err
	}
	l.cur.NewRet(l.convert(v, t, retType))
	return nil
}

func (l *lowerer) lowerBreak(n *Break) error {
	if len(l.loopStack) == 0 {
		return typeErrorf(n.P, "break outside of a loop")
	}
	top := l.loopStack[len(l.loopStack)-1]
	l.cur.NewBr(top.exit)
	return nil
}

func (l *lowerer) lowerContinue(n *Continue) error {
	if len(l.loopStack) == 0 {
		return typeErrorf(n.P, "continue outside of a loop")
	}
	top := l.loopStack[len(l.loopStack)-1]
	l.cur.NewBr(top.continueTo)
	return nil
}
