package categorizer

import (
	"bytes"
	"encoding/json"
	"fmt"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

const categoriesSchemaURL = "memcat://schemas/memory-categories.json"

// MemoryCategories is the structure the model is asked to return.
type MemoryCategories struct {
	Categories []string `json:"categories" jsonschema:"description=Category labels that apply to the memory"`
}

// SchemaError reports a parsed response that does not match MemoryCategories.
type SchemaError struct {
	Err error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("invalid categories response: %v", e.Err)
}

func (e *SchemaError) Unwrap() []error { return []error{ErrSchemaViolation, e.Err} }

var categoriesSchema = compileCategoriesSchema()

// CategoriesSchemaJSON renders the JSON Schema the responses are validated against.
func CategoriesSchemaJSON() ([]byte, error) {
	return json.Marshal(reflectCategoriesSchema())
}

func reflectCategoriesSchema() *invopop.Schema {
	r := &invopop.Reflector{
		Anonymous:                 true,
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	s := r.Reflect(&MemoryCategories{})
	s.Required = []string{"categories"}
	return s
}

func compileCategoriesSchema() *jsonschema.Schema {
	raw, err := CategoriesSchemaJSON()
	if err != nil {
		panic(fmt.Sprintf("categorizer: marshal categories schema: %v", err))
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(categoriesSchemaURL, bytes.NewReader(raw)); err != nil {
		panic(fmt.Sprintf("categorizer: add categories schema: %v", err))
	}
	return c.MustCompile(categoriesSchemaURL)
}

// ValidateCategories checks a decoded JSON document against the categories
// schema and converts it.
func ValidateCategories(doc any) (MemoryCategories, error) {
	if err := categoriesSchema.Validate(doc); err != nil {
		return MemoryCategories{}, &SchemaError{Err: err}
	}
	obj := doc.(map[string]any)
	items := obj["categories"].([]any)
	out := MemoryCategories{Categories: make([]string, 0, len(items))}
	for _, item := range items {
		out.Categories = append(out.Categories, item.(string))
	}
	return out, nil
}
