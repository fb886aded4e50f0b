// Package cfn models the subset of CloudFormation template values the macro
// has to reason about: plain literals, the intrinsic functions it encounters
// in the wild (Ref, Fn::Sub, Fn::Join, Fn::GetAtt, Fn::If), lists, and an
// explicit Unknown variant for everything else.
package cfn

import "reflect"

// Value is a template property value. Exactly one of the concrete types in
// this package implements it; consumers type-switch over the closed set.
type Value interface {
	// Raw returns the value in its wire encoding (the shape that was parsed,
	// reconstructed after any rewriting).
	Raw() any
}

// Literal is a plain string value.
type Literal struct {
	Value string
}

// Ref is {"Ref": "Name"}.
type Ref struct {
	Name string
}

// Sub is {"Fn::Sub": "template"} or {"Fn::Sub": ["template", {bindings}]}.
// The bindings slot of the array form is carried through untouched.
type Sub struct {
	Template    string
	Bindings    any
	HasBindings bool
}

// Join is {"Fn::Join": [delimiter, [parts...]]}.
type Join struct {
	Delimiter string
	Parts     []Value
}

// GetAtt is {"Fn::GetAtt": ["LogicalId", "Attribute"]}.
type GetAtt struct {
	LogicalID string
	Attribute string
}

// If is {"Fn::If": ["ConditionName", whenTrue, whenFalse]}. The condition is
// never statically known here, so If is never collapsed to one branch.
type If struct {
	Condition string
	WhenTrue  Value
	WhenFalse Value
}

// List is a plain JSON array, kept with its original elements.
type List struct {
	Items []any
}

// Unknown is any shape the model does not recognize. It is carried through
// verbatim so an encoding the macro does not understand is never corrupted.
type Unknown struct {
	value any
}

func (v Literal) Raw() any { return v.Value }

func (v Ref) Raw() any { return map[string]any{"Ref": v.Name} }

func (v Sub) Raw() any {
	if v.HasBindings {
		return map[string]any{"Fn::Sub": []any{v.Template, v.Bindings}}
	}
	return map[string]any{"Fn::Sub": v.Template}
}

func (v Join) Raw() any {
	parts := make([]any, len(v.Parts))
	for i, p := range v.Parts {
		parts[i] = p.Raw()
	}
	return map[string]any{"Fn::Join": []any{v.Delimiter, parts}}
}

func (v GetAtt) Raw() any {
	return map[string]any{"Fn::GetAtt": []any{v.LogicalID, v.Attribute}}
}

func (v If) Raw() any {
	return map[string]any{"Fn::If": []any{v.Condition, v.WhenTrue.Raw(), v.WhenFalse.Raw()}}
}

func (v List) Raw() any { return v.Items }

func (v Unknown) Raw() any { return v.value }

// Parse maps a decoded JSON value onto the Value union. Anything that is not
// a string, a list, or one of the recognized single-key intrinsic maps comes
// back as Unknown.
func Parse(raw any) Value {
	switch t := raw.(type) {
	case string:
		return Literal{Value: t}
	case []any:
		return List{Items: t}
	case map[string]any:
		if len(t) != 1 {
			return Unknown{value: raw}
		}
		for key, arg := range t {
			if v, ok := parseIntrinsic(key, arg); ok {
				return v
			}
		}
	}
	return Unknown{value: raw}
}

func parseIntrinsic(key string, arg any) (Value, bool) {
	switch key {
	case "Ref":
		if name, ok := arg.(string); ok {
			return Ref{Name: name}, true
		}
	case "Fn::Sub":
		switch a := arg.(type) {
		case string:
			return Sub{Template: a}, true
		case []any:
			if len(a) == 2 {
				if tmpl, ok := a[0].(string); ok {
					return Sub{Template: tmpl, Bindings: a[1], HasBindings: true}, true
				}
			}
		}
	case "Fn::Join":
		a, ok := arg.([]any)
		if !ok || len(a) != 2 {
			return nil, false
		}
		delim, ok := a[0].(string)
		if !ok {
			return nil, false
		}
		rawParts, ok := a[1].([]any)
		if !ok {
			return nil, false
		}
		parts := make([]Value, len(rawParts))
		for i, p := range rawParts {
			parts[i] = Parse(p)
		}
		return Join{Delimiter: delim, Parts: parts}, true
	case "Fn::GetAtt":
		switch a := arg.(type) {
		case []any:
			if len(a) == 2 {
				id, okID := a[0].(string)
				attr, okAttr := a[1].(string)
				if okID && okAttr {
					return GetAtt{LogicalID: id, Attribute: attr}, true
				}
			}
		case string:
			// Short form "LogicalId.Attribute" from YAML templates.
			for i := 0; i < len(a); i++ {
				if a[i] == '.' {
					return GetAtt{LogicalID: a[:i], Attribute: a[i+1:]}, true
				}
			}
		}
	case "Fn::If":
		a, ok := arg.([]any)
		if !ok || len(a) != 3 {
			return nil, false
		}
		cond, ok := a[0].(string)
		if !ok {
			return nil, false
		}
		return If{Condition: cond, WhenTrue: Parse(a[1]), WhenFalse: Parse(a[2])}, true
	}
	return nil, false
}

// Resolve extracts a literal string from v when one can be determined.
// A Ref resolves through the supplied parameter map. A Sub resolves to its
// template text verbatim; placeholders are detected, not interpolated. Join
// resolves only when every part resolves. If is never collapsed, and GetAtt,
// List and Unknown carry no literal.
func Resolve(v Value, params map[string]string) (string, bool) {
	switch t := v.(type) {
	case Literal:
		return t.Value, true
	case Ref:
		val, ok := params[t.Name]
		return val, ok
	case Sub:
		return t.Template, true
	case Join:
		joined := ""
		for i, p := range t.Parts {
			s, ok := Resolve(p, params)
			if !ok {
				return "", false
			}
			if i > 0 {
				joined += t.Delimiter
			}
			joined += s
		}
		return joined, true
	}
	return "", false
}

// RewriteLists applies fn to every list leaf of v, recursing through Fn::If
// trees of arbitrary depth and reconstructing the identical tree shape. The
// second return is false when v contains a shape that carries no list leaf,
// in which case v is returned unmodified and the caller should skip its
// mutation rather than guess.
func RewriteLists(v Value, fn func([]any) []any) (Value, bool) {
	switch t := v.(type) {
	case List:
		return List{Items: fn(t.Items)}, true
	case If:
		wt, okT := RewriteLists(t.WhenTrue, fn)
		wf, okF := RewriteLists(t.WhenFalse, fn)
		if !okT || !okF {
			return v, false
		}
		return If{Condition: t.Condition, WhenTrue: wt, WhenFalse: wf}, true
	}
	return v, false
}

// ContainsItem reports whether list contains item, comparing strings directly
// and any other shape structurally.
func ContainsItem(list []any, item any) bool {
	for _, existing := range list {
		if s, ok := existing.(string); ok {
			if is, ok := item.(string); ok && s == is {
				return true
			}
			continue
		}
		if reflect.DeepEqual(existing, item) {
			return true
		}
	}
	return false
}
