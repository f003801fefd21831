// Package configschema renders the docquery configuration as a JSON Schema.
package configschema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/nimburion/docquery/pkg/config"
)

// BuildSchema returns the JSON Schema of config.Config with DefaultConfig
// values injected as defaults.
func BuildSchema() (*jsonschema.Schema, error) {
	return BuildSchemaWithDefaults(config.DefaultConfig())
}

// BuildSchemaWithDefaults builds the schema and injects the given defaults.
func BuildSchemaWithDefaults(defaults *config.Config) (*jsonschema.Schema, error) {
	opts := &jsonschema.ForOptions{
		IgnoreInvalidTypes: true,
		TypeSchemas: map[reflect.Type]*jsonschema.Schema{
			reflect.TypeOf(time.Duration(0)): {Type: "string"},
		},
	}

	schema, err := jsonschema.ForType(reflect.TypeOf(config.Config{}), opts)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	applyFieldNames(schema, reflect.TypeOf(config.Config{}))

	if defaults == nil {
		defaults = config.DefaultConfig()
	}
	injectDefaults(schema, reflect.ValueOf(defaults))
	pruneRequiredWithDefaults(schema)

	serviceName := "docquery"
	if name := strings.TrimSpace(defaults.Service.Name); name != "" {
		serviceName = name
	}
	schema.Title = serviceName + " Configuration"
	schema.Description = "Schema for " + serviceName + " configuration."
	schema.Schema = "https://json-schema.org/draft/2020-12/schema"
	return schema, nil
}

// applyFieldNames renames properties from Go field names to the
// mapstructure keys the loader reads.
func applyFieldNames(schema *jsonschema.Schema, t reflect.Type) {
	if schema == nil || t.Kind() != reflect.Struct || len(schema.Properties) == 0 {
		return
	}
	renamed := make(map[string]string)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		jsonName, omit := jsonFieldName(field)
		if omit {
			continue
		}
		key := fieldKeyName(field)
		renamed[jsonName] = key
		if prop, ok := schema.Properties[jsonName]; ok {
			delete(schema.Properties, jsonName)
			schema.Properties[key] = prop
			applyFieldNames(prop, field.Type)
		}
	}
	schema.Required = renameAll(schema.Required, renamed)
	schema.PropertyOrder = renameAll(schema.PropertyOrder, renamed)
}

func renameAll(names []string, renamed map[string]string) []string {
	if len(names) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if mapped, ok := renamed[name]; ok {
			name = mapped
		}
		out = append(out, name)
	}
	return dedupeStrings(out)
}

func injectDefaults(schema *jsonschema.Schema, value reflect.Value) {
	if schema == nil || !value.IsValid() {
		return
	}
	for value.Kind() == reflect.Pointer {
		if value.IsNil() {
			return
		}
		value = value.Elem()
	}

	if value.Kind() != reflect.Struct {
		if schema.Default == nil {
			if raw, ok := marshalDefault(schema, value); ok {
				schema.Default = raw
			}
		}
		return
	}
	t := value.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if prop, ok := schema.Properties[fieldKeyName(field)]; ok {
			injectDefaults(prop, value.Field(i))
		}
	}
}

func pruneRequiredWithDefaults(schema *jsonschema.Schema) {
	if schema == nil {
		return
	}
	for _, prop := range schema.Properties {
		pruneRequiredWithDefaults(prop)
	}
	if len(schema.Required) == 0 || len(schema.Properties) == 0 {
		return
	}
	kept := make([]string, 0, len(schema.Required))
	for _, name := range schema.Required {
		prop := schema.Properties[name]
		if prop == nil || prop.Default == nil {
			kept = append(kept, name)
		}
	}
	schema.Required = kept
}

func marshalDefault(schema *jsonschema.Schema, value reflect.Value) (json.RawMessage, bool) {
	var v any = value.Interface()
	if d, ok := v.(time.Duration); ok && schema.Type == "string" {
		v = d.String()
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, false
	}
	return payload, true
}

// fieldKeyName returns the mapstructure key of field, or its lowercased name.
func fieldKeyName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("mapstructure"), ",")
	if name == "" || name == "-" {
		return strings.ToLower(field.Name)
	}
	return name
}

func jsonFieldName(field reflect.StructField) (string, bool) {
	if !field.IsExported() {
		return "", true
	}
	name := field.Name
	if tag, ok := field.Tag.Lookup("json"); ok {
		tagName, _, found := strings.Cut(tag, ",")
		if tagName == "-" && !found {
			return "", true
		}
		if tagName != "" {
			name = tagName
		}
	}
	return name, false
}

func dedupeStrings(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
