package llm

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// schemas holds compiled response schemas by name. The tutor uses a fixed
// handful, so entries are never evicted.
var schemas = struct {
	sync.Mutex
	compiled map[string]*jsonschema.Schema
}{compiled: make(map[string]*jsonschema.Schema)}

// validateResponse checks raw against schema. A nil schema accepts anything.
func validateResponse(schema *Schema, raw json.RawMessage) error {
	if schema == nil {
		return nil
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return invalid(raw, fmt.Errorf("reply is not JSON: %w", err))
	}
	compiled, err := compiledSchema(schema)
	if err != nil {
		return invalid(raw, err)
	}
	if err := compiled.Validate(doc); err != nil {
		return invalid(raw, fmt.Errorf("reply does not match %s: %w", schema.Name, err))
	}
	return nil
}

func compiledSchema(schema *Schema) (*jsonschema.Schema, error) {
	schemas.Lock()
	defer schemas.Unlock()
	if s, ok := schemas.compiled[schema.Name]; ok {
		return s, nil
	}

	// Round-trip through JSON so number types match what the compiler expects.
	raw, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
	}
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
	}
	url := "mem://" + schema.Name
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
	}
	s, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", schema.Name, err)
	}
	schemas.compiled[schema.Name] = s
	return s, nil
}

// replyJSON trims whitespace and a markdown code fence some models wrap
// around their JSON.
func replyJSON(text string) json.RawMessage {
	text = strings.TrimSpace(text)
	if body, ok := strings.CutPrefix(text, "```"); ok {
		body = strings.TrimPrefix(body, "json")
		if i := strings.LastIndex(body, "```"); i >= 0 {
			body = body[:i]
		}
		text = strings.TrimSpace(body)
	}
	return json.RawMessage(text)
}
