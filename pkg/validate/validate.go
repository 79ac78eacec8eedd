package validate

import (
	"errors"
	"io"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/raymyers/ralph-xir/pkg/xir"
)

// Options configures a validation run.
type Options struct {
	// Logger receives debug records per member and an info summary.
	// Nil discards all records.
	Logger *slog.Logger

	// Jobs bounds how many functions are checked at once.
	// Zero or less means one per CPU.
	Jobs int
}

// MemberKind says what sort of member a MemberResult describes.
type MemberKind string

const (
	MemberFunction MemberKind = "function"
	MemberStatic   MemberKind = "static"
)

// MemberResult is the outcome of checking one function body or static.
type MemberResult struct {
	Path xir.Path
	Kind MemberKind
	Err  error
}

// Report is the outcome of validating a File.
type Report struct {
	// File is a resolved copy of the input. Every GlobalAddress constant
	// carries its global's type. The input File is never modified.
	File *xir.File

	// Members holds one result per checked member, in declaration order.
	Members []MemberResult
}

// Valid reports whether every member passed.
func (r *Report) Valid() bool {
	for _, m := range r.Members {
		if m.Err != nil {
			return false
		}
	}
	return true
}

// Errors returns the member errors in declaration order.
func (r *Report) Errors() []error {
	var errs []error
	for _, m := range r.Members {
		if m.Err != nil {
			errs = append(errs, m.Err)
		}
	}
	return errs
}

// Err joins all member errors, or returns nil.
func (r *Report) Err() error {
	return errors.Join(r.Errors()...)
}

type job struct {
	path   xir.Path
	kind   MemberKind
	member *xir.ScopeMember
}

// File validates every function body and static initializer of f.
//
// Pass one builds the global type tables; a duplicate global path, an
// unresolved Named type in any signature, static or aggregate, or an
// unsupported format version is returned as the error and nothing else is
// checked. Pass two checks each member independently and records one result
// per member in the Report; a failing member never stops the others.
func File(f *xir.File, opts Options) (*Report, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if err := xir.CheckVersion(f.Version); err != nil {
		return nil, err
	}

	ts, err := collect(&f.Root)
	if err != nil {
		return nil, err
	}

	out := &xir.File{Version: f.Version, Target: f.Target, Root: cloneScope(f.Root)}
	var jobs []job
	out.Root.Walk(func(path xir.Path, m *xir.ScopeMember) {
		switch d := m.Decl.(type) {
		case xir.FunctionDeclaration:
			if d.Body != nil {
				jobs = append(jobs, job{path: path, kind: MemberFunction, member: m})
			}
		case xir.StaticDefinition:
			jobs = append(jobs, job{path: path, kind: MemberStatic, member: m})
		}
	})

	limit := opts.Jobs
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}
	results := make([]MemberResult, len(jobs))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, j := range jobs {
		g.Go(func() error {
			results[i] = ts.checkMember(j, log)
			return nil
		})
	}
	_ = g.Wait()

	var functions, statics, failures int
	for _, r := range results {
		if r.Kind == MemberFunction {
			functions++
		} else {
			statics++
		}
		if r.Err != nil {
			failures++
		}
	}
	log.Info("validation finished",
		"functions", functions,
		"statics", statics,
		"failures", failures,
		"jobs", limit)

	return &Report{File: out, Members: results}, nil
}

// checkMember resolves and checks one member. It replaces the member's
// declaration in the output copy with its resolved form.
func (ts *tables) checkMember(j job, log *slog.Logger) MemberResult {
	res := MemberResult{Path: j.path, Kind: j.kind}

	switch d := j.member.Decl.(type) {
	case xir.FunctionDeclaration:
		log.Debug("checking function",
			"path", j.path.String(),
			"items", len(d.Body.Block.Items))
		body, err := ts.resolveBody(d.Body)
		if err == nil {
			d.Body = body
			j.member.Decl = d
			err = ts.checkFunction(&d)
		}
		res.Err = withFunction(err, j.path)

	case xir.StaticDefinition:
		log.Debug("checking static", "path", j.path.String())
		err := ts.checkStatic(&d)
		if err == nil {
			j.member.Decl = d
		}
		res.Err = withFunction(err, j.path)
	}

	if res.Err != nil {
		log.Debug("member rejected", "path", j.path.String(), "error", res.Err)
	}
	return res
}

// checkStatic checks a static initializer against the declared type and
// resolves it in place.
func (ts *tables) checkStatic(d *xir.StaticDefinition) error {
	if d.Init == nil {
		return nil
	}
	init, err := ts.resolveValue(d.Init)
	if err != nil {
		return err
	}
	ty, err := ts.valueType(init, nil)
	if err != nil {
		return err
	}
	if err := ts.unify(ty, d.Ty); err != nil {
		return err
	}
	d.Init = init
	return nil
}

// collect is pass one: it fills the type tables and checks that every Named
// type reachable from a declaration resolves.
func collect(root *xir.Scope) (*tables, error) {
	ts := newTables()
	seen := make(map[string]bool)
	var err error
	var paths []xir.Path
	var decls []xir.MemberDeclaration

	root.Walk(func(path xir.Path, m *xir.ScopeMember) {
		if err != nil {
			return
		}
		key := path.Key()
		if seen[key] {
			err = withFunction(malformed("duplicate global %s", path), path)
			return
		}
		seen[key] = true

		switch d := m.Decl.(type) {
		case xir.FunctionDeclaration:
			ts.tys[key] = d.Ty
		case xir.StaticDefinition:
			ts.tys[key] = d.Ty
		case xir.AggregateDefinition:
			ts.aggregates[key] = &d
		case xir.OpaqueAggregate:
			ts.aggregates[key] = nil
		}
		paths = append(paths, path)
		decls = append(decls, m.Decl)
	})
	if err != nil {
		return nil, err
	}

	for i, decl := range decls {
		var err error
		switch d := decl.(type) {
		case xir.FunctionDeclaration:
			err = ts.checkNames(d.Ty)
			if err == nil && d.Body != nil {
				for _, l := range d.Body.Locals {
					if err = ts.checkNames(l); err != nil {
						break
					}
				}
			}
		case xir.StaticDefinition:
			err = ts.checkNames(d.Ty)
		case xir.AggregateDefinition:
			err = ts.checkFieldNames(d.Fields)
		}
		if err != nil {
			return nil, withFunction(err, paths[i])
		}
	}
	return ts, nil
}

// cloneScope copies the scope tree so members can be replaced without
// touching the original. Function bodies are shared until resolved.
func cloneScope(s xir.Scope) xir.Scope {
	out := xir.Scope{Annotations: s.Annotations, Members: make([]xir.ScopeEntry, len(s.Members))}
	for i, e := range s.Members {
		if sd, ok := e.Member.Decl.(xir.ScopeDecl); ok {
			e.Member.Decl = xir.ScopeDecl{Scope: cloneScope(sd.Scope)}
		}
		out.Members[i] = e
	}
	return out
}

// withFunction attributes err to the member at path
func withFunction(err error, path xir.Path) error {
	if err == nil {
		return nil
	}
	var ve *Error
	if errors.As(err, &ve) && ve.Function == "" {
		ve.Function = path.String()
	}
	return err
}
