package generator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInteger FieldType = "integer"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeArray   FieldType = "array"
	TypeObject  FieldType = "object"
)

// Field describes one property of a structured reply. Items is used by
// arrays, Properties by objects.
type Field struct {
	Name        string
	Type        FieldType
	Description string
	Items       *Field
	Properties  []Field
}

// Schema 是结构化输出的声明式描述。
// 同一个值既用于请求模型（strict json_schema），也用于校验回复，二者不会漂移。
type Schema struct {
	Name        string
	Description string
	Fields      []Field

	once     sync.Once
	compiled *gojsonschema.Schema
	err      error
}

// JSONSchema renders the descriptor in strict form: every property is
// required and no additional properties are allowed.
func (s *Schema) JSONSchema() map[string]any {
	return objectSchema(s.Fields, "")
}

func objectSchema(fields []Field, desc string) map[string]any {
	props := make(map[string]any, len(fields))
	required := make([]string, 0, len(fields))
	for _, f := range fields {
		props[f.Name] = fieldSchema(f)
		required = append(required, f.Name)
	}
	out := map[string]any{
		"type":                 string(TypeObject),
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
	if desc != "" {
		out["description"] = desc
	}
	return out
}

func fieldSchema(f Field) map[string]any {
	switch f.Type {
	case TypeObject:
		return objectSchema(f.Properties, f.Description)
	case TypeArray:
		out := map[string]any{"type": string(TypeArray)}
		if f.Items != nil {
			out["items"] = fieldSchema(*f.Items)
		}
		if f.Description != "" {
			out["description"] = f.Description
		}
		return out
	default:
		out := map[string]any{"type": string(f.Type)}
		if f.Description != "" {
			out["description"] = f.Description
		}
		return out
	}
}

// Validate checks raw against the rendered schema.
func (s *Schema) Validate(raw string) error {
	s.once.Do(func() {
		s.compiled, s.err = gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	})
	if s.err != nil {
		return fmt.Errorf("compile schema %s: %w", s.Name, s.err)
	}

	result, err := s.compiled.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return malformedError("reply is not valid JSON", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return malformedError(fmt.Sprintf("reply violates schema %s: %s", s.Name, strings.Join(msgs, "; ")), nil)
	}
	return nil
}

var (
	categorySchema = &Schema{
		Name:        "category_num",
		Description: "카테고리를 분류합니다.",
		Fields: []Field{
			{Name: "category_num", Type: TypeInteger, Description: "사용자의 입력이 속하는 카테고리의 번호입니다."},
		},
	}

	scheduleSchema = &Schema{
		Name:        "schedules",
		Description: "일정 목록을 반환합니다.",
		Fields: []Field{
			{
				Name: "schedules",
				Type: TypeArray,
				Items: &Field{
					Type: TypeObject,
					Properties: []Field{
						{Name: "name", Type: TypeString},
						{Name: "start_date", Type: TypeString},
						{Name: "end_date", Type: TypeString},
						{Name: "days", Type: TypeString},
						{Name: "desc", Type: TypeString},
					},
				},
			},
		},
	}

	curatedSchema = &Schema{
		Name:        "curated_terms",
		Description: "추천 검색어를 반환합니다.",
		Fields: []Field{
			{Name: "curated_terms", Type: TypeArray, Items: &Field{Type: TypeString}},
		},
	}
)
