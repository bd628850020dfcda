package methods

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/roadmap-automation/lh-manager-sub000/pkg/bedlayout"
)

// Definition describes a registered method type.
type Definition struct {
	MethodName  string         `json:"method_name"`
	DisplayName string         `json:"display_name"`
	Displayable bool           `json:"displayable"`
	Schema      map[string]any `json:"schema"`

	factory func() Method
}

// Registry maps wire method names to their factories and schemas.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: map[string]Definition{}}
}

// Default is the process-wide registry populated by package init.
var Default = NewRegistry()

// Register adds a method type. The factory must return a method with its
// name, display name, and defaults populated.
func (r *Registry) Register(factory func() Method, displayable bool) {
	proto := factory()
	meta := proto.Meta()
	def := Definition{
		MethodName:  meta.MethodName,
		DisplayName: meta.DisplayName,
		Displayable: displayable,
		Schema:      schemaOf(proto),
		factory:     factory,
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.MethodName]; exists {
		panic(fmt.Sprintf("methods: duplicate registration for %q", def.MethodName))
	}
	r.defs[def.MethodName] = def
}

// New creates a fresh instance of the named method with defaults applied.
func (r *Registry) New(methodName string) (Method, bool) {
	r.mu.RLock()
	def, ok := r.defs[methodName]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return def.factory(), true
}

// Definitions lists all registered methods sorted by wire name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MethodName < out[j].MethodName })
	return out
}

// Displayable lists the methods a user can add through the interface.
func (r *Registry) Displayable() []Definition {
	var out []Definition
	for _, def := range r.Definitions() {
		if def.Displayable {
			out = append(out, def)
		}
	}
	return out
}

// Unmarshal decodes a serialized method by dispatching on its method_name.
// Unrecognized names decode to an Unknown method that preserves the payload.
func (r *Registry) Unmarshal(data []byte) (Method, error) {
	var head struct {
		MethodName string `json:"method_name"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("decoding method envelope: %w", err)
	}
	m, ok := r.New(head.MethodName)
	if !ok {
		u := NewUnknown(head.MethodName)
		if err := json.Unmarshal(data, &u.Base); err != nil {
			return nil, fmt.Errorf("decoding unknown method %q: %w", head.MethodName, err)
		}
		u.Payload = append(json.RawMessage(nil), data...)
		return u, nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("decoding method %q: %w", head.MethodName, err)
	}
	return m, nil
}

// UnmarshalList decodes a serialized list of methods.
func (r *Registry) UnmarshalList(data []byte) ([]Method, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("decoding method list: %w", err)
	}
	out := make([]Method, 0, len(raws))
	for _, raw := range raws {
		m, err := r.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Unknown preserves a method whose type is not registered in this process.
// It round-trips its original payload and is inert against the layout.
type Unknown struct {
	Base
	Payload json.RawMessage `json:"-"`
}

// NewUnknown returns an inert placeholder for an unregistered method name.
func NewUnknown(methodName string) *Unknown {
	return &Unknown{Base: newBase(methodName, methodName, TypeNone)}
}

func (u *Unknown) GetMethods(*bedlayout.LHBedLayout) []Method { return []Method{u} }

func (u *Unknown) MarshalJSON() ([]byte, error) {
	if len(u.Payload) > 0 {
		return u.Payload, nil
	}
	type alias Base
	return json.Marshal((*alias)(&u.Base))
}

// schemaOf builds a JSON-schema-shaped description of a method's own fields
// from its struct tags.
func schemaOf(m Method) map[string]any {
	props := map[string]any{}
	var required []string
	collectSchema(reflect.TypeOf(m).Elem(), props, &required)
	sort.Strings(required)
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

var baseExcluded = map[string]bool{
	"id": true, "tasks": true, "status": true,
	"method_name": true, "display_name": true, "method_type": true,
}

func collectSchema(t reflect.Type, props map[string]any, required *[]string) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous {
			ft := field.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				collectSchema(ft, props, required)
			}
			continue
		}
		name := jsonName(field)
		if name == "" || baseExcluded[name] {
			continue
		}
		props[name] = fieldSchema(field.Type)
		if field.Type.Kind() != reflect.Pointer {
			*required = append(*required, name)
		}
	}
}

func jsonName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return ""
	}
	if tag == "" {
		return field.Name
	}
	for i := 0; i < len(tag); i++ {
		if tag[i] == ',' {
			return tag[:i]
		}
	}
	return tag
}

func fieldSchema(t reflect.Type) map[string]any {
	switch t.Kind() {
	case reflect.Pointer:
		return fieldSchema(t.Elem())
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	case reflect.String:
		return map[string]any{"type": "string"}
	case reflect.Slice, reflect.Array:
		return map[string]any{"type": "array", "items": fieldSchema(t.Elem())}
	case reflect.Struct, reflect.Map:
		return map[string]any{"type": "object"}
	default:
		return map[string]any{}
	}
}
