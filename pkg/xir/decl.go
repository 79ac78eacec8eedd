package xir

import "strings"

// AnnotationItem is either an identifier or a nested annotation list
type AnnotationItem struct {
	Ident Path
	Meta  *Annotation
}

// Annotation is a list of annotation items, written #[a, b(c)]
type Annotation struct {
	Items []AnnotationItem
}

// Equal compares annotations structurally
func (a Annotation) Equal(o Annotation) bool {
	if len(a.Items) != len(o.Items) {
		return false
	}
	for i := range a.Items {
		x, y := a.Items[i], o.Items[i]
		if !x.Ident.Equal(y.Ident) || (x.Meta == nil) != (y.Meta == nil) {
			return false
		}
		if x.Meta != nil && !x.Meta.Equal(*y.Meta) {
			return false
		}
	}
	return true
}

func (a Annotation) String() string {
	return "#[" + a.items() + "]"
}

func (a Annotation) items() string {
	parts := make([]string, len(a.Items))
	for i, it := range a.Items {
		parts[i] = it.Ident.String()
		if it.Meta != nil {
			parts[i] += "(" + it.Meta.items() + ")"
		}
	}
	return strings.Join(parts, ", ")
}

// AnnotationsEqual compares two annotation lists element-wise
func AnnotationsEqual(a, b []Annotation) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// Visibility of a scope member
type Visibility int

const (
	Public Visibility = iota
	Origin
	Module
	Private
	None
)

// MemberDeclaration is what a scope member declares
type MemberDeclaration interface {
	implMember()
}

// EmptyMember declares nothing
type EmptyMember struct{}

// FunctionBody holds the locals and root block of a defined function
type FunctionBody struct {
	Locals []Type
	Block  Block
}

// FunctionDeclaration is a function signature with an optional body; a nil
// Body is an external declaration
type FunctionDeclaration struct {
	Ty   Tfunction
	Body *FunctionBody
}

// StaticDefinition is a global variable with an optional initializer
type StaticDefinition struct {
	Ty   Type
	Init Value
}

// AggregateDefinition is a named struct or union
type AggregateDefinition struct {
	Kind        AggregateKind
	Annotations []Annotation
	Fields      []AggregateField
}

// OpaqueAggregate is a forward declared aggregate with unknown fields
type OpaqueAggregate struct {
	Kind AggregateKind
}

// ScopeDecl is a nested scope
type ScopeDecl struct {
	Scope Scope
}

func (EmptyMember) implMember()         {}
func (FunctionDeclaration) implMember() {}
func (StaticDefinition) implMember()    {}
func (AggregateDefinition) implMember() {}
func (OpaqueAggregate) implMember()     {}
func (ScopeDecl) implMember()           {}

// ScopeMember is one declaration of a scope
type ScopeMember struct {
	Annotations []Annotation
	Vis         Visibility
	Decl        MemberDeclaration
}

// ScopeEntry binds a path to a member; scopes keep members in declaration
// order so that validation and printing are deterministic
type ScopeEntry struct {
	Path   Path
	Member ScopeMember
}

// Scope is an ordered set of members
type Scope struct {
	Annotations []Annotation
	Members     []ScopeEntry
}

// File is a whole translation unit as produced by a frontend
type File struct {
	Version string
	Target  string
	Root    Scope
}

// Walk calls fn for every member of s, recursing into nested scopes. The
// path passed to fn is the member's full path.
func (s *Scope) Walk(fn func(path Path, m *ScopeMember)) {
	s.walk(Path{}, fn)
}

func (s *Scope) walk(prefix Path, fn func(path Path, m *ScopeMember)) {
	for i := range s.Members {
		e := &s.Members[i]
		full := e.Path
		if len(prefix.Components) > 0 {
			full = prefix.Join(e.Path)
		}
		fn(full, &e.Member)
		if sd, ok := e.Member.Decl.(ScopeDecl); ok {
			sd.Scope.walk(full, fn)
		}
	}
}
