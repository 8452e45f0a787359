package harness

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error
)

func scenarioSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		root := schemaCtx.CompileString(schemaSource, cue.Filename("schema.cue"))
		if err := root.Err(); err != nil {
			schemaErr = fmt.Errorf("compile scenario schema: %w", err)
			return
		}
		schemaValue = root.LookupPath(cue.ParsePath("#Scenario"))
		if !schemaValue.Exists() {
			schemaErr = fmt.Errorf("scenario schema: #Scenario not defined")
		}
	})
	return schemaCtx, schemaValue, schemaErr
}

// ValidateSchema checks a generically decoded scenario document against the
// embedded CUE schema.
func ValidateSchema(doc map[string]any) error {
	ctx, schema, err := scenarioSchema()
	if err != nil {
		return err
	}

	data := ctx.Encode(doc)
	if err := data.Err(); err != nil {
		return fmt.Errorf("encode scenario: %w", err)
	}

	unified := schema.Unify(data)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema violation: %s", strings.TrimSpace(cueerrors.Details(err, nil)))
	}
	return nil
}
