package expression

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// GeometryType is the declared geometry tag of a feature.
type GeometryType int

// Geometry types, in index order.
const (
	Unknown GeometryType = iota
	Point
	LineString
	Polygon
)

// TypeKey is the attribute key that addresses a feature's geometry type
// instead of its attributes.
const TypeKey = "$type"

// geometryTypes maps filter-facing names to geometry indices. Unknown is
// deliberately absent: it can be a feature's type but never a match target.
var geometryTypes = map[string]GeometryType{
	"Point":      Point,
	"LineString": LineString,
	"Polygon":    Polygon,
}

// LookupGeometryType resolves a geometry name to its index.
func LookupGeometryType(name string) (GeometryType, bool) {
	t, ok := geometryTypes[name]
	return t, ok
}

func (t GeometryType) String() string {
	switch t {
	case Point:
		return "Point"
	case LineString:
		return "LineString"
	case Polygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

// Feature is anything a compiled predicate can test.
type Feature interface {
	// Attribute returns the named attribute, or Undefined if absent.
	Attribute(key string) Value
	GeometryType() GeometryType
}

// MapFeature is a feature backed by plain attribute maps. Attributes are read
// from Properties when it is non-nil, otherwise from Tags.
type MapFeature struct {
	Properties map[string]any `json:"properties,omitempty"`
	Tags       map[string]any `json:"tags,omitempty"`
	Type       GeometryType   `json:"type"`
}

// Attributes returns the attribute bag in fallback order: properties, then
// tags, then an empty bag.
func (f MapFeature) Attributes() map[string]any {
	if f.Properties != nil {
		return f.Properties
	}
	if f.Tags != nil {
		return f.Tags
	}
	return map[string]any{}
}

// Attribute implements Feature.
func (f MapFeature) Attribute(key string) Value {
	raw, ok := f.Attributes()[key]
	if !ok {
		return Undefined()
	}
	return ValueOf(raw)
}

// GeometryType implements Feature.
func (f MapFeature) GeometryType() GeometryType { return f.Type }

// FeatureFromMap decodes a GeoJSON-like object. The geometry type is taken
// from "type" when it is an index or a geometry name, then from
// "geometry.type"; anything else leaves the feature Unknown.
func FeatureFromMap(m map[string]any) MapFeature {
	var f MapFeature
	if props, ok := m["properties"].(map[string]any); ok {
		f.Properties = props
	}
	if tags, ok := m["tags"].(map[string]any); ok {
		f.Tags = tags
	}
	if t, ok := geometryTypeOf(m["type"]); ok {
		f.Type = t
	} else if geom, ok := m["geometry"].(map[string]any); ok {
		if t, ok := geometryTypeOf(geom["type"]); ok {
			f.Type = t
		}
	}
	return f
}

// DecodeFeature parses one JSON object into a MapFeature.
func DecodeFeature(data []byte) (MapFeature, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return MapFeature{}, fmt.Errorf("failed to decode feature: %w", err)
	}
	return FeatureFromMap(m), nil
}

func geometryTypeOf(raw any) (GeometryType, bool) {
	switch v := raw.(type) {
	case float64:
		if v >= float64(Unknown) && v <= float64(Polygon) && v == float64(int(v)) {
			return GeometryType(v), true
		}
	case string:
		switch v {
		case "MultiPoint":
			return Point, true
		case "MultiLineString":
			return LineString, true
		case "MultiPolygon":
			return Polygon, true
		}
		return LookupGeometryType(v)
	}
	return Unknown, false
}

// FeatureFromStruct builds a MapFeature whose properties are the JSON-encoded
// fields of record, which must be a struct or a pointer to one.
func FeatureFromStruct[T any](record T, t GeometryType) (MapFeature, error) {
	val := reflect.ValueOf(record)
	if !val.IsValid() {
		return MapFeature{}, fmt.Errorf("input record cannot be nil")
	}
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return MapFeature{}, fmt.Errorf("input record cannot be a nil pointer to a struct")
		}
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return MapFeature{}, fmt.Errorf("input record must be a struct or a pointer to a struct, got %s", val.Kind())
	}

	data, err := json.Marshal(record)
	if err != nil {
		return MapFeature{}, fmt.Errorf("FeatureFromStruct: failed to marshal input record to JSON: %w", err)
	}
	props := make(map[string]any)
	if err := json.Unmarshal(data, &props); err != nil {
		return MapFeature{}, fmt.Errorf("FeatureFromStruct: failed to unmarshal JSON to properties: %w", err)
	}
	return MapFeature{Properties: props, Type: t}, nil
}
