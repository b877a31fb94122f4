package workflow

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// ErrInvalidContent is returned (wrapped) when content fails schema validation.
var ErrInvalidContent = errors.New("invalid workflow content")

// Validator checks raw workflow JSON against the embedded #Workflow schema.
//
// Thread-safety: a cue.Context is not safe for concurrent use, so Validate
// serializes on an internal mutex.
type Validator struct {
	mu     sync.Mutex
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile workflow schema: %w", err)
	}
	def := root.LookupPath(cue.ParsePath("#Workflow"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile workflow schema: #Workflow not defined")
	}
	return &Validator{ctx: ctx, schema: def}, nil
}

// Validate reports whether data is a workflow document the merge logic can
// consume. The returned error wraps ErrInvalidContent and lists every
// violation found.
func (v *Validator) Validate(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	val := v.ctx.CompileBytes(data, cue.Filename("content.json"))
	if err := val.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidContent, cueerrors.Details(err, nil))
	}
	unified := v.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidContent, cueerrors.Details(err, nil))
	}
	return nil
}
