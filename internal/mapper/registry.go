package mapper

import (
	"fmt"
	"sync"

	"github.com/roach88/docrepo/internal/ir"
)

// Registry builds one index map and one Mapper per namespace and reuses them.
//
// Construction happens at most once per namespace, under concurrent first
// use too; afterwards lookups are lock-free reads.
type Registry struct {
	converters  map[string]ValueConverter
	conversions ConversionService
	entries     sync.Map // namespace -> *entry
}

type entry struct {
	once   sync.Once
	index  ir.IndexMap
	mapper *Mapper
	err    error
}

// NewRegistry creates a registry resolving named converters from converters
// (the builtins are added underneath). conversions may be nil.
func NewRegistry(converters map[string]ValueConverter, conversions ConversionService) *Registry {
	all := BuiltinConverters()
	for name, c := range converters {
		all[name] = c
	}
	return &Registry{converters: all, conversions: conversions}
}

// For returns the mapper of meta's namespace, building it on first use.
func (r *Registry) For(meta *ir.EntityMeta) (*Mapper, error) {
	e := r.entry(meta)
	return e.mapper, e.err
}

// IndexMap returns the index map of meta's namespace, building it on first use.
func (r *Registry) IndexMap(meta *ir.EntityMeta) (ir.IndexMap, error) {
	e := r.entry(meta)
	return e.index, e.err
}

func (r *Registry) entry(meta *ir.EntityMeta) *entry {
	v, _ := r.entries.LoadOrStore(meta.Namespace, &entry{})
	e := v.(*entry)
	e.once.Do(func() {
		e.index = ir.BuildIndexMap(meta)
		props := make(map[string]ValueConverter, len(meta.Converters))
		for prop, name := range meta.Converters {
			c, ok := r.converters[name]
			if !ok {
				e.err = fmt.Errorf("converter %q for %s.%s is not registered", name, meta.Name, prop)
				return
			}
			props[prop] = c
		}
		e.mapper = New(e.index, props, r.conversions)
	})
	return e
}
