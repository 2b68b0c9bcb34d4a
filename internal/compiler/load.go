package compiler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/docrepo/internal/ir"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// Catalog is every entity and method declared in a descriptor directory.
type Catalog struct {
	Entities map[string]*ir.EntityMeta
	Methods  []ir.MethodSpec

	Value     cue.Value
	FileCount int
}

// Method returns the method declared under name.
func (c *Catalog) Method(name string) (ir.MethodSpec, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return ir.MethodSpec{}, false
}

// EntityNames returns the declared entity names, sorted.
func (c *Catalog) EntityNames() []string {
	names := make([]string, 0, len(c.Entities))
	for n := range c.Entities {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadError is a loading failure, positioned when CUE knows where.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Load error codes.
const (
	ErrCodeGeneric     = "E001"
	ErrCodeScanError   = "E002"
	ErrCodeNoFiles     = "E003"
	ErrCodeLoadFailed  = "E004"
	ErrCodeNotFound    = "E005"
	ErrCodeBuildFailed = "E006"

	ErrCodeEntity = "E010" // entity descriptor rejected
	ErrCodeMethod = "E011" // method descriptor rejected
)

// Load reads every .cue file in dir as one CUE instance and compiles the
// entity and method structs it declares.
func Load(dir string, mode LoadMode) (*Catalog, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(files) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	cat, errs := LoadValue(value, mode)
	cat.FileCount = len(files)
	return cat, errs
}

// LoadValue compiles the entity and method structs of an already built
// CUE value.
func LoadValue(value cue.Value, mode LoadMode) (*Catalog, []error) {
	cat := &Catalog{Entities: make(map[string]*ir.EntityMeta), Value: value}
	var errs []error
	failed := func(err error) bool {
		errs = append(errs, err)
		return mode == LoadModeFailFast
	}

	if ev := value.LookupPath(cue.ParsePath("entity")); ev.Exists() {
		it, err := ev.Fields()
		if err != nil {
			if failed(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating entities: %v", err)}) {
				return cat, errs
			}
		} else {
			for it.Next() {
				meta, err := CompileEntity(it.Value())
				if err != nil {
					if failed(convertCompileError(err, ErrCodeEntity, "entity."+it.Label())) {
						return cat, errs
					}
					continue
				}
				cat.Entities[meta.Name] = meta
			}
		}
	}

	if mv := value.LookupPath(cue.ParsePath("method")); mv.Exists() {
		it, err := mv.Fields()
		if err != nil {
			if failed(&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating methods: %v", err)}) {
				return cat, errs
			}
		} else {
			for it.Next() {
				m, err := CompileMethod(it.Value())
				if err != nil {
					if failed(convertCompileError(err, ErrCodeMethod, "method."+it.Label())) {
						return cat, errs
					}
					continue
				}
				cat.Methods = append(cat.Methods, *m)
			}
		}
	}

	if len(cat.Entities) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no entities found in specs"})
	}
	return cat, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func convertCompileError(err error, code, context string) *LoadError {
	var ce *CompileError
	if errors.As(err, &ce) {
		return &LoadError{Code: code, Message: fmt.Sprintf("%s: %s: %s", context, ce.Field, ce.Message), Pos: ce.Pos}
	}
	return &LoadError{Code: code, Message: fmt.Sprintf("%s: %v", context, err)}
}
