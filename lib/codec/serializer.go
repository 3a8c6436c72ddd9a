package codec

import (
	"fmt"
	"strings"
)

// ISerializer is the interface for all document serializers.
type ISerializer interface {
	// Name returns the short name the serializer is selected by.
	Name() string
	// Serialize serializes a document (a pointer or value) into a byte array
	Serialize(v any) ([]byte, error)
	// Deserialize deserializes a byte array into the document v points to
	Deserialize(b []byte, v any) error
}

// SerializerByName returns the serializer called name: json, gob or yaml.
func SerializerByName(name string) (ISerializer, error) {
	switch strings.ToLower(name) {
	case "json":
		return NewJSONSerializer(), nil
	case "gob":
		return NewGOBSerializer(), nil
	case "yaml", "yml":
		return NewYAMLSerializer(), nil
	default:
		return nil, fmt.Errorf("unknown serializer %q", name)
	}
}
