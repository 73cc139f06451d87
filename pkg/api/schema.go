package api

import (
	"bytes"
	_ "embed"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/generate_request.schema.json
var generateRequestSchema []byte

const generateSchemaURL = "https://auditreportgen.enstso.com/schemas/generate_request.schema.json"

// compileGenerateSchema compiles the embedded request schema. Called
// once at server construction; a failure is a build defect, not a
// runtime condition.
func compileGenerateSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(generateSchemaURL, bytes.NewReader(generateRequestSchema)); err != nil {
		return nil, fmt.Errorf("request schema load failed: %w", err)
	}
	compiled, err := c.Compile(generateSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("request schema compile failed: %w", err)
	}
	return compiled, nil
}
