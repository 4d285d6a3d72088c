package casefile

import (
	"bytes"
	_ "embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "https://casetrace.local/schema/case-summary-v1.schema.json"

//go:embed schema/case-summary-v1.schema.json
var schemaDoc []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func caseSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaDoc)); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// Validate checks a raw JSON or YAML document against the case-summary-v1
// schema. Decode is lenient; Validate is the strict counterpart used when a
// caller wants malformed input rejected up front.
func Validate(data []byte) error {
	schema, err := caseSchema()
	if err != nil {
		return err
	}
	instance, err := parseDocument(data)
	if err != nil {
		return err
	}
	if err := schema.Validate(instance); err != nil {
		return fmt.Errorf("casefile: schema validation: %w", err)
	}
	return nil
}
