// Package inputschema translates the open-ended JSON Schema documents carried
// by a hosted tool catalog into local input validators.
//
// Translation is total: a document the translator cannot understand degrades
// to a permissive validator instead of failing, so one malformed tool schema
// never prevents the rest of a catalog from being registered.
package inputschema

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Kind is the tag of a translated schema node.
type Kind int

const (
	KindAny Kind = iota // permissive: accepts every value
	KindString
	KindNumber
	KindInteger
	KindBoolean
	KindObject
	KindArray
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindInteger:
		return "integer"
	case KindBoolean:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindEnum:
		return "enum"
	default:
		return "any"
	}
}

// Spec is one node of the translated schema tree.
type Spec struct {
	Kind     Kind
	Nullable bool

	Properties map[string]*Spec // KindObject
	Required   map[string]bool  // KindObject
	Items      *Spec            // KindArray; nil means untyped items
	Enum       []any            // KindEnum
}

// Permissive returns the validator that accepts every value.
func Permissive() *Spec { return &Spec{Kind: KindAny} }

// Translate converts a raw JSON Schema document into a Spec.
// It never fails: an empty, unparseable, or non-object document yields the
// permissive validator.
func Translate(raw json.RawMessage) *Spec {
	if len(raw) == 0 {
		return Permissive()
	}
	var node map[string]any
	if err := json.Unmarshal(raw, &node); err != nil {
		return Permissive()
	}
	return translateNode(node)
}

func translateNode(node map[string]any) *Spec {
	if node == nil {
		return Permissive()
	}

	nullable := false
	if b, ok := node["nullable"].(bool); ok && b {
		nullable = true
	}

	// enum wins over type: the value set is the whole constraint.
	if values, ok := node["enum"].([]any); ok && len(values) > 0 {
		return &Spec{Kind: KindEnum, Nullable: nullable, Enum: values}
	}

	typ, nullInList := schemaType(node["type"])
	if nullInList {
		nullable = true
	}

	switch typ {
	case "string":
		return &Spec{Kind: KindString, Nullable: nullable}
	case "number":
		return &Spec{Kind: KindNumber, Nullable: nullable}
	case "integer":
		return &Spec{Kind: KindInteger, Nullable: nullable}
	case "boolean":
		return &Spec{Kind: KindBoolean, Nullable: nullable}
	case "array":
		s := &Spec{Kind: KindArray, Nullable: nullable}
		if items, ok := node["items"].(map[string]any); ok {
			s.Items = translateNode(items)
		}
		return s
	case "object":
		s := &Spec{
			Kind:       KindObject,
			Nullable:   nullable,
			Properties: map[string]*Spec{},
			Required:   map[string]bool{},
		}
		if props, ok := node["properties"].(map[string]any); ok {
			for name, p := range props {
				if pm, ok := p.(map[string]any); ok {
					s.Properties[name] = translateNode(pm)
				} else {
					// Property described by something other than an
					// object: keep the field, drop the constraint.
					s.Properties[name] = Permissive()
				}
			}
		}
		if req, ok := node["required"].([]any); ok {
			for _, r := range req {
				if name, ok := r.(string); ok {
					s.Required[name] = true
				}
			}
		}
		return s
	default:
		// Missing or unrecognised type (anyOf, $ref, "null", …):
		// degrade to the permissive leaf.
		return &Spec{Kind: KindAny, Nullable: true}
	}
}

// schemaType normalises the "type" keyword, which may be a string or a list
// of strings. A "null" entry in the list is reported separately.
func schemaType(v any) (typ string, nullable bool) {
	switch t := v.(type) {
	case string:
		return t, false
	case []any:
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				continue
			}
			if s == "null" {
				nullable = true
				continue
			}
			if typ == "" {
				typ = s
			}
		}
		return typ, nullable
	default:
		return "", false
	}
}

// Validate checks value against the spec. value is expected in the shapes
// produced by encoding/json unmarshalling into any (map[string]any, []any,
// float64, string, bool, nil).
func (s *Spec) Validate(value any) error {
	return s.validateAt("", value)
}

func (s *Spec) validateAt(path string, value any) error {
	if s == nil || s.Kind == KindAny {
		return nil
	}
	if value == nil {
		if s.Nullable {
			return nil
		}
		return fmt.Errorf("%s: expected %s, got null", displayPath(path), s.Kind)
	}

	switch s.Kind {
	case KindString:
		if _, ok := value.(string); !ok {
			return typeError(path, s.Kind, value)
		}
	case KindBoolean:
		if _, ok := value.(bool); !ok {
			return typeError(path, s.Kind, value)
		}
	case KindNumber:
		if !isNumber(value) {
			return typeError(path, s.Kind, value)
		}
	case KindInteger:
		if !isInteger(value) {
			return typeError(path, s.Kind, value)
		}
	case KindEnum:
		for _, allowed := range s.Enum {
			if value == allowed {
				return nil
			}
		}
		return fmt.Errorf("%s: value %v not in enum %v", displayPath(path), value, s.Enum)
	case KindArray:
		arr, ok := value.([]any)
		if !ok {
			return typeError(path, s.Kind, value)
		}
		for i, item := range arr {
			if err := s.Items.validateAt(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
	case KindObject:
		obj, ok := value.(map[string]any)
		if !ok {
			return typeError(path, s.Kind, value)
		}
		missing := make([]string, 0)
		for name := range s.Required {
			if _, present := obj[name]; !present {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			return fmt.Errorf("%s: missing required field(s) %s",
				displayPath(path), strings.Join(missing, ", "))
		}
		for name, prop := range s.Properties {
			v, present := obj[name]
			if !present {
				continue
			}
			if err := prop.validateAt(joinPath(path, name), v); err != nil {
				return err
			}
		}
		// Fields not named in properties pass through unchecked.
	}
	return nil
}

func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, json.Number:
		return true
	default:
		return false
	}
}

func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case json.Number:
		_, err := n.Int64()
		return err == nil
	default:
		return false
	}
}

func typeError(path string, kind Kind, v any) error {
	return fmt.Errorf("%s: expected %s, got %T", displayPath(path), kind, v)
}

func joinPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}

func displayPath(path string) string {
	if path == "" {
		return "input"
	}
	return path
}
