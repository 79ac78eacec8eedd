package xir

import (
	"fmt"
	"io"
	"strings"
)

// Printer outputs a File in the textual xir format
type Printer struct {
	w      io.Writer
	indent int
}

// NewPrinter creates a new xir printer
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// PrintFile prints a complete translation unit
func (p *Printer) PrintFile(f *File) {
	version := f.Version
	if version == "" {
		version = FormatVersion
	}
	fmt.Fprintf(p.w, "version %s\n", version)
	if f.Target != "" {
		fmt.Fprintf(p.w, "target %s\n", f.Target)
	}

	f.Root.Walk(func(path Path, m *ScopeMember) {
		fmt.Fprintln(p.w)
		p.printMember(path, m)
	})
}

func (p *Printer) printMember(path Path, m *ScopeMember) {
	for _, a := range m.Annotations {
		fmt.Fprintln(p.w, a.String())
	}
	switch d := m.Decl.(type) {
	case FunctionDeclaration:
		p.PrintFunction(path, &d)
	case StaticDefinition:
		if d.Init != nil {
			fmt.Fprintf(p.w, "static %s: %s = %s\n", path, typeString(d.Ty), d.Init)
		} else {
			fmt.Fprintf(p.w, "static %s: %s\n", path, typeString(d.Ty))
		}
	case AggregateDefinition:
		for _, a := range d.Annotations {
			fmt.Fprintln(p.w, a.String())
		}
		t := Taggregate{Kind: d.Kind, Annotations: d.Annotations, Fields: d.Fields}
		fmt.Fprintf(p.w, "%s %s%s\n", d.Kind, path, strings.TrimPrefix(t.String(), aggregatePrefix(t)))
	case OpaqueAggregate:
		fmt.Fprintf(p.w, "opaque %s %s\n", d.Kind, path)
	case ScopeDecl:
		fmt.Fprintf(p.w, "scope %s\n", path)
	default:
		fmt.Fprintf(p.w, "empty %s\n", path)
	}
}

// aggregatePrefix is the part of Taggregate.String before the field list
func aggregatePrefix(t Taggregate) string {
	var sb strings.Builder
	for _, a := range t.Annotations {
		sb.WriteString(a.String())
		sb.WriteByte(' ')
	}
	sb.WriteString(t.Kind.String())
	return sb.String()
}

// PrintFunction prints a function declaration or definition
func (p *Printer) PrintFunction(path Path, fn *FunctionDeclaration) {
	if fn.Body == nil {
		fmt.Fprintf(p.w, "declare function %s: %s\n", path, fn.Ty)
		return
	}
	fmt.Fprintf(p.w, "function %s: %s {\n", path, fn.Ty)
	p.indent = 1
	if len(fn.Body.Locals) > 0 {
		locals := make([]string, len(fn.Body.Locals))
		for i, l := range fn.Body.Locals {
			locals[i] = typeString(l)
		}
		p.line("locals: %s", strings.Join(locals, ", "))
	}
	p.printItems(fn.Body.Block.Items)
	p.indent = 0
	fmt.Fprintln(p.w, "}")
}

func (p *Printer) line(format string, args ...any) {
	fmt.Fprint(p.w, strings.Repeat("  ", p.indent))
	fmt.Fprintf(p.w, format, args...)
	fmt.Fprintln(p.w)
}

func (p *Printer) printItems(items []BlockItem) {
	for i, item := range items {
		switch it := item.(type) {
		case Target:
			p.line("%d: target @%d %s", i, it.Num, StackString(it.Stack))
		case NestedBlock:
			p.line("%d: block #%d {", i, it.N)
			p.indent++
			p.printItems(it.Block.Items)
			p.indent--
			p.line("}")
		case Expr:
			p.line("%d: %s", i, ExprString(it))
		}
	}
}

// StackString formats a stack shape as [kind type, ...]
func StackString(stack []StackItem) string {
	parts := make([]string, len(stack))
	for i, s := range stack {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ExprString formats a single instruction. Nested blocks are summarized.
func ExprString(e Expr) string {
	op := Opcode(e)
	switch e := e.(type) {
	case Const:
		return op + " " + valueString(e.Val)
	case ExitBlock:
		return fmt.Sprintf("%s #%d, %d", op, e.Blk, e.Values)
	case BinaryOpExpr:
		if e.Op.IsCompare() {
			return op
		}
		return op + " " + e.Overflow.String()
	case UnaryOpExpr:
		if e.Op == OpLogicNot {
			return op
		}
		return op + " " + e.Overflow.String()
	case CallFunction:
		return op + " " + e.Sig.String()
	case Tailcall:
		return op + " " + e.Sig.String()
	case Branch:
		return fmt.Sprintf("%s %s @%d", op, e.Cond, e.Target)
	case Convert:
		return fmt.Sprintf("%s %s %s", op, e.Strength, typeString(e.Ty))
	case Derive:
		return fmt.Sprintf("%s %s (%s)", op, e.Ptr, ExprString(e.Inner))
	case Local:
		return fmt.Sprintf("%s %d", op, e.N)
	case Pop:
		return fmt.Sprintf("%s %d", op, e.N)
	case Dup:
		return fmt.Sprintf("%s %d", op, e.N)
	case Pivot:
		return fmt.Sprintf("%s %d %d", op, e.N, e.M)
	case Aggregate:
		return fmt.Sprintf("%s %s {%s}", op, typeString(e.Ty), strings.Join(e.Fields, ", "))
	case Member:
		return op + " " + e.Name
	case MemberIndirect:
		return op + " " + e.Name
	case NestedBlock:
		return fmt.Sprintf("%s #%d {...}", op, e.N)
	case Assign:
		return withAccess(op, e.Access)
	case AsRValue:
		return withAccess(op, e.Access)
	case CompoundAssign:
		return withAccess(fmt.Sprintf("%s %s %s", op, e.Op, e.Overflow), e.Access)
	case LValueOp:
		return withAccess(op+" "+e.Overflow.String(), e.Access)
	case Sequence:
		return withAccess(op, e.Access)
	case Fence:
		return withAccess(op, e.Access)
	case Switch:
		return op + " " + switchString(e.Kind)
	default:
		return op
	}
}

func withAccess(s string, a AccessClass) string {
	if a == AccessNormal {
		return s
	}
	return s + " " + a.String()
}

func switchString(k SwitchKind) string {
	switch s := k.(type) {
	case HashSwitch:
		parts := make([]string, 0, len(s.Cases)+1)
		for _, c := range s.Cases {
			parts = append(parts, fmt.Sprintf("%s => @%d", valueString(c.Val), c.Target))
		}
		if s.Default != nil {
			parts = append(parts, fmt.Sprintf("default => @%d", *s.Default))
		}
		return "hash {" + strings.Join(parts, ", ") + "}"
	case LinearSwitch:
		targets := make([]string, len(s.Cases))
		for i, c := range s.Cases {
			targets[i] = fmt.Sprintf("@%d", c)
		}
		return fmt.Sprintf("linear %s min %d scale %d [%s] default @%d", s.Ty, s.Min, s.Scale, strings.Join(targets, ", "), s.Default)
	default:
		return "?"
	}
}
