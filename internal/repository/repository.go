// Package repository runs declared methods: it plans, compiles, executes
// and materializes one method call against the document store.
package repository

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/docrepo/internal/compiler"
	"github.com/roach88/docrepo/internal/ir"
	"github.com/roach88/docrepo/internal/mapper"
	"github.com/roach88/docrepo/internal/materialize"
	"github.com/roach88/docrepo/internal/queryir"
	"github.com/roach88/docrepo/internal/queryobj"
	"github.com/roach88/docrepo/internal/querysql"
	"github.com/roach88/docrepo/internal/store"
)

// Backend selects how a method is compiled.
type Backend string

const (
	// BackendObject builds the store query directly on every call.
	BackendObject Backend = "object"

	// BackendText compiles statement text once per method and binds values
	// on every call.
	BackendText Backend = "text"
)

// Option configures a Repository.
type Option func(*Repository)

// WithBackend selects the compiler backend. The default is BackendObject.
func WithBackend(b Backend) Option {
	return func(r *Repository) { r.backend = b }
}

// WithMappers shares a mapper registry between repositories.
func WithMappers(m *mapper.Registry) Option {
	return func(r *Repository) { r.mappers = m }
}

// Repository executes the methods of a catalog.
// A Repository is safe for concurrent use.
type Repository struct {
	store   *store.Store
	catalog *compiler.Catalog
	mappers *mapper.Registry
	backend Backend

	statements sync.Map // method name -> *querysql.Statement
}

// New creates a repository over s for the methods of catalog.
func New(s *store.Store, catalog *compiler.Catalog, opts ...Option) *Repository {
	r := &Repository{store: s, catalog: catalog, backend: BackendObject}
	for _, opt := range opts {
		opt(r)
	}
	if r.mappers == nil {
		r.mappers = mapper.NewRegistry(nil, nil)
	}
	return r
}

// Backend returns the backend the repository compiles with.
func (r *Repository) Backend() Backend { return r.backend }

// call is one prepared method invocation.
type call struct {
	method ir.MethodSpec
	plan   *queryir.Plan
	mapper *mapper.Mapper
	args   []any
}

func (r *Repository) prepare(name string, page *ir.PageRequest, args []any) (*call, error) {
	m, ok := r.catalog.Method(name)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", name)
	}
	plan, err := r.catalog.Plan(m, page)
	if err != nil {
		return nil, fmt.Errorf("plan %s: %w", name, err)
	}
	vm, err := r.mappers.For(plan.Entity)
	if err != nil {
		return nil, fmt.Errorf("mapper for %s: %w", plan.Entity.Name, err)
	}
	return &call{method: m, plan: plan, mapper: vm, args: args}, nil
}

func (c *call) expect(subjects ...ir.Subject) error {
	s := c.method.Tree.Subject
	for _, want := range subjects {
		if s == want {
			return nil
		}
	}
	return fmt.Errorf("method %s is a %s method", c.method.Name, s)
}

// statement returns the cached text compilation of c's method. Statements
// do not depend on the page, so the first call's plan serves every call.
func (r *Repository) statement(c *call) (*querysql.Statement, error) {
	if v, ok := r.statements.Load(c.method.Name); ok {
		return v.(*querysql.Statement), nil
	}
	st, err := querysql.Compile(c.plan)
	if err != nil {
		return nil, err
	}
	v, _ := r.statements.LoadOrStore(c.method.Name, st)
	return v.(*querysql.Statement), nil
}

// open runs a select method and returns its cursor.
func (r *Repository) open(ctx context.Context, c *call) (*store.Iterator, error) {
	start := time.Now()
	var (
		it  *store.Iterator
		err error
	)
	switch r.backend {
	case BackendText:
		st, serr := r.statement(c)
		if serr != nil {
			return nil, serr
		}
		values, berr := st.Bind(c.mapper, c.args)
		if berr != nil {
			return nil, berr
		}
		it, err = r.store.ExecSQL(ctx, st.Paginate(c.plan.Page), values)
	default:
		compiled, cerr := queryobj.Compile(r.store, c.plan, c.mapper, c.args)
		if cerr != nil {
			return nil, cerr
		}
		it, err = compiled.Query.Exec(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", c.method.Name, err)
	}
	slog.Debug("method executed",
		"method", c.method.Name,
		"backend", r.backend,
		"subject", c.method.Tree.Subject,
		"elapsed", time.Since(start),
	)
	return it, nil
}

// Find runs a find method and materializes its rows as T in the method's
// declared shape (see materialize.Materialize).
func Find[T any](ctx context.Context, r *Repository, method string, page *ir.PageRequest, args ...any) (any, error) {
	c, err := r.prepare(method, page, args)
	if err != nil {
		return nil, err
	}
	if err := c.expect(ir.SubjectFind); err != nil {
		return nil, err
	}
	it, err := r.open(ctx, c)
	if err != nil {
		return nil, err
	}
	req := materialize.Request{Shape: c.method.Returns, Entity: c.plan.Entity, Page: page}
	return materialize.Materialize(it, req, materialize.JSONProjector[T](c.method.Returns, c.plan.Joins))
}

// Execute runs any method. Find methods materialize documents as
// map[string]any; count returns int64, exists bool and delete the number
// of removed documents as int64.
func (r *Repository) Execute(ctx context.Context, method string, page *ir.PageRequest, args ...any) (any, error) {
	m, ok := r.catalog.Method(method)
	if !ok {
		return nil, fmt.Errorf("unknown method %q", method)
	}
	switch m.Tree.Subject {
	case ir.SubjectCount:
		return r.Count(ctx, method, args...)
	case ir.SubjectExists:
		return r.Exists(ctx, method, args...)
	case ir.SubjectDelete:
		return r.Delete(ctx, method, args...)
	default:
		return Find[map[string]any](ctx, r, method, page, args...)
	}
}

// Count runs a count method.
func (r *Repository) Count(ctx context.Context, method string, args ...any) (n int64, err error) {
	c, err := r.prepare(method, nil, args)
	if err != nil {
		return 0, err
	}
	if err := c.expect(ir.SubjectCount); err != nil {
		return 0, err
	}
	it, err := r.open(ctx, c)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := it.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return it.TotalCount(), nil
}

// Exists runs an exists method.
func (r *Repository) Exists(ctx context.Context, method string, args ...any) (ok bool, err error) {
	c, err := r.prepare(method, nil, args)
	if err != nil {
		return false, err
	}
	if err := c.expect(ir.SubjectExists); err != nil {
		return false, err
	}
	it, err := r.open(ctx, c)
	if err != nil {
		return false, err
	}
	defer func() {
		if cerr := it.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	ok = it.Next()
	return ok, it.Err()
}

// Delete runs a delete method and returns the number of removed documents.
func (r *Repository) Delete(ctx context.Context, method string, args ...any) (int64, error) {
	c, err := r.prepare(method, nil, args)
	if err != nil {
		return 0, err
	}
	if err := c.expect(ir.SubjectDelete); err != nil {
		return 0, err
	}

	var n int64
	switch r.backend {
	case BackendText:
		st, err := r.statement(c)
		if err != nil {
			return 0, err
		}
		values, err := st.Bind(c.mapper, c.args)
		if err != nil {
			return 0, err
		}
		n, err = r.store.DeleteSQL(ctx, st.Text, values)
		if err != nil {
			return 0, fmt.Errorf("execute %s: %w", method, err)
		}
	default:
		compiled, err := queryobj.Compile(r.store, c.plan, c.mapper, c.args)
		if err != nil {
			return 0, err
		}
		n, err = compiled.Query.Delete(ctx)
		if err != nil {
			return 0, fmt.Errorf("execute %s: %w", method, err)
		}
	}
	slog.Info("documents deleted",
		"method", method,
		"backend", r.backend,
		"count", n,
	)
	return n, nil
}
