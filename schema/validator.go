package enrichmentschema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed enrichment.schema.json
var enrichmentSchemaJSON string

// EnrichmentResult is the model output after schema validation.
type EnrichmentResult struct {
	TitleKo       string        `json:"title_ko"`
	SummaryKeys   []string      `json:"summary_keys"`
	SummaryDetail SummaryDetail `json:"summary_detail"`
	Tags          []string      `json:"tags"`
	IsRelated     bool          `json:"is_related"`
}

type SummaryDetail struct {
	Introduction string `json:"introduction"`
	Body         string `json:"body"`
	Conclusion   string `json:"conclusion"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidateEnrichmentPayload validates raw model output against the
// enrichment schema and decodes it. Any failure here means the whole
// response is discarded; there is no partial application.
func ValidateEnrichmentPayload(payload json.RawMessage) (*EnrichmentResult, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode payload JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize payload JSON: %w", err)
	}

	var result EnrichmentResult
	if err := json.Unmarshal(normalized, &result); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}

	if err := validateSemantics(&result); err != nil {
		return nil, err
	}

	return &result, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("enrichment.schema.json", strings.NewReader(enrichmentSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("enrichment.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}

func validateSemantics(result *EnrichmentResult) error {
	if result == nil {
		return fmt.Errorf("payload is nil")
	}

	if strings.TrimSpace(result.TitleKo) == "" {
		return fmt.Errorf("title_ko must not be empty")
	}
	for i, key := range result.SummaryKeys {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("summary_keys[%d] must not be empty", i)
		}
	}
	for i, tag := range result.Tags {
		if strings.TrimSpace(tag) == "" {
			return fmt.Errorf("tags[%d] must not be empty", i)
		}
	}
	if strings.TrimSpace(result.SummaryDetail.Introduction) == "" ||
		strings.TrimSpace(result.SummaryDetail.Body) == "" ||
		strings.TrimSpace(result.SummaryDetail.Conclusion) == "" {
		return fmt.Errorf("summary_detail sections must not be empty")
	}

	return nil
}
