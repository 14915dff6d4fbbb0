// Package series renders BLS series identifiers from region codes and
// statistic parameters, and recovers region codes from identifiers.
package series

import (
	"strings"

	"github.com/sells-group/blsgeo/internal/apperr"
)

// FieldKind identifies what a template field renders.
type FieldKind int

const (
	// Literal renders fixed text.
	Literal FieldKind = iota
	// AreaCode renders the region code.
	AreaCode
	// StateCode renders the region's state FIPS code.
	StateCode
	// Param renders one value of a named parameter.
	Param
)

// Field is one segment of a series identifier.
type Field struct {
	Kind  FieldKind
	Text  string // Literal text
	Name  string // Param name
	Width int    // fixed width, left zero-padded; 0 means variable
}

// Lit is a fixed-text field.
func Lit(text string) Field { return Field{Kind: Literal, Text: text} }

// Area is the region-code field.
func Area(width int) Field { return Field{Kind: AreaCode, Width: width} }

// State is the region state-code field.
func State(width int) Field { return Field{Kind: StateCode, Width: width} }

// P is a named parameter field. Width 0 accepts any length.
func P(name string, width int) Field { return Field{Kind: Param, Name: name, Width: width} }

// Template describes how a statistic lays out its series identifiers.
type Template struct {
	Fields []Field
}

// NewTemplate builds a template from fields in identifier order.
func NewTemplate(fields ...Field) Template {
	return Template{Fields: fields}
}

// ParamNames returns the parameter names in identifier order.
func (t Template) ParamNames() []string {
	var names []string
	for _, f := range t.Fields {
		if f.Kind == Param {
			names = append(names, f.Name)
		}
	}
	return names
}

// AreaRange returns the half-open position of the area code within a rendered
// identifier. Valid only when every field before the area field has a fixed width.
func (t Template) AreaRange() AreaCodeRange {
	pos := 0
	for _, f := range t.Fields {
		switch {
		case f.Kind == AreaCode:
			return AreaCodeRange{Start: pos, End: pos + f.Width}
		case f.Kind == Literal:
			pos += len(f.Text)
		default:
			pos += f.Width
		}
	}
	return AreaCodeRange{}
}

// ValidateParams checks that every parameter field has at least one value and
// that no value exceeds its field width. Unknown parameter names are rejected.
func (t Template) ValidateParams(params map[string][]string) error {
	known := make(map[string]bool)
	for _, f := range t.Fields {
		if f.Kind != Param {
			continue
		}
		known[f.Name] = true
		values := params[f.Name]
		if len(values) == 0 {
			return apperr.InvalidArgument(f.Name, "at least one value is required")
		}
		for _, v := range values {
			if v == "" {
				return apperr.InvalidArgument(f.Name, "empty value")
			}
			if _, err := pad(f.Name, v, f.Width); err != nil {
				return err
			}
		}
	}
	for name := range params {
		if !known[name] {
			return apperr.InvalidArgument(name, "unknown parameter")
		}
	}
	return nil
}

func (t Template) areaWidth() int {
	for _, f := range t.Fields {
		if f.Kind == AreaCode {
			return f.Width
		}
	}
	return 0
}

// pad left-pads value with zeros to width. Values longer than width are rejected.
func pad(field, value string, width int) (string, error) {
	if width == 0 {
		return value, nil
	}
	if len(value) > width {
		return "", apperr.InvalidArgument(field, "value %q exceeds width %d", value, width)
	}
	return strings.Repeat("0", width-len(value)) + value, nil
}

// AreaCodeRange is the half-open substring [Start, End) of a series identifier
// that holds the region code.
type AreaCodeRange struct {
	Start int
	End   int
}

// Extract returns the region code embedded in id. ok is false when id is too
// short for the range.
func (r AreaCodeRange) Extract(id string) (code string, ok bool) {
	if r.Start < 0 || r.End <= r.Start || len(id) < r.End {
		return "", false
	}
	return id[r.Start:r.End], true
}
