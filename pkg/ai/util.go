package ai

import (
	"encoding/json"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// EmbeddingDimensions returns the embedding dimension from the AI_EMBED_DIM
// environment variable, falling back to def. Both backends truncate or pad
// model output to this length so stored vectors stay comparable.
func EmbeddingDimensions(def int) int {
	v, exists := os.LookupEnv("AI_EMBED_DIM")
	if !exists {
		return def
	}
	dim, err := strconv.Atoi(v)
	if err != nil || dim <= 0 {
		return def
	}
	return dim
}

// GenerateSchema creates a JSON Schema from the given Go type, suitable for
// use with AI structured output.
func GenerateSchema(value any) any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}

	t := reflect.TypeOf(value)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	v := reflect.New(t).Interface()
	return reflector.Reflect(v)
}

// UnmarshalFlexible attempts to unmarshal model-generated JSON into out.
// It tries standard unmarshaling first, then unwraps double-encoded JSON
// strings, and finally repairs malformed JSON before parsing.
func UnmarshalFlexible(input string, out any) error {
	input = strings.TrimSpace(input)

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}

	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("failed to unmarshal repaired json: %w", err)
	}
	return nil
}
