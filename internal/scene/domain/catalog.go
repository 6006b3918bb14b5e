package domain

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// PrimitiveDef holds the defaults for one primitive kind.
type PrimitiveDef struct {
	Kind  Kind
	Name  string
	Scale Vec3
}

type primitiveFile struct {
	Primitives map[string]struct {
		Name  string    `yaml:"name"`
		Scale []float64 `yaml:"scale"`
	} `yaml:"primitives"`
}

//go:embed catalog/primitives.yaml
var primitivesYAML []byte

var primitiveDefs = mustParsePrimitives(primitivesYAML)

// ParsePrimitives decodes a primitive catalog.
func ParsePrimitives(data []byte) (map[Kind]PrimitiveDef, error) {
	var file primitiveFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse primitive catalog: %w", err)
	}
	defs := make(map[Kind]PrimitiveDef, len(file.Primitives))
	for name, entry := range file.Primitives {
		kind := Kind(name)
		if !kind.Valid() {
			return nil, fmt.Errorf("primitive catalog: unknown kind %q", name)
		}
		if len(entry.Scale) != 3 {
			return nil, fmt.Errorf("primitive catalog: %s scale needs 3 components, got %d", name, len(entry.Scale))
		}
		scale := Vec3{entry.Scale[0], entry.Scale[1], entry.Scale[2]}
		if coerce(scale, unitVec, positiveFinite) != scale {
			return nil, fmt.Errorf("primitive catalog: %s scale must be positive", name)
		}
		defs[kind] = PrimitiveDef{Kind: kind, Name: entry.Name, Scale: scale}
	}
	return defs, nil
}

func mustParsePrimitives(data []byte) map[Kind]PrimitiveDef {
	defs, err := ParsePrimitives(data)
	if err != nil {
		panic(err)
	}
	for _, kind := range []Kind{KindCube, KindSphere, KindCone} {
		if _, ok := defs[kind]; !ok {
			panic(fmt.Sprintf("primitive catalog: missing %s", kind))
		}
	}
	return defs
}

// Primitives lists the catalog entries ordered by kind.
func Primitives() []PrimitiveDef {
	out := make([]PrimitiveDef, 0, len(primitiveDefs))
	for _, def := range primitiveDefs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind < out[j].Kind })
	return out
}

// NewPrimitive builds a visible primitive at the origin with catalog defaults.
func NewPrimitive(kind Kind, id string) (Object, error) {
	def, ok := primitiveDefs[kind]
	if !ok {
		return Object{}, fmt.Errorf("unknown primitive kind %q", kind)
	}
	obj := Object{
		Type:    TypePrimitive,
		ID:      id,
		Name:    def.Name,
		Visible: true,
		Scale:   def.Scale,
		Kind:    kind,
	}
	if err := Validate(obj); err != nil {
		return Object{}, err
	}
	return obj, nil
}
