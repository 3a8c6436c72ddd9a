package codec

import (
	"gopkg.in/yaml.v3"
)

// NewYAMLSerializer creates a new serializer using yaml encoding. It is the
// slowest of the three and meant for documents read by humans.
func NewYAMLSerializer() ISerializer {
	return &yamlSerializerImpl{}
}

// yamlSerializerImpl implements the ISerializer interface using yaml encoding
type yamlSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see codec.ISerializer)
// --------------------------------------------------------------------------

func (y yamlSerializerImpl) Name() string { return "yaml" }

func (y yamlSerializerImpl) Serialize(v any) ([]byte, error) {
	return yaml.Marshal(v)
}

func (y yamlSerializerImpl) Deserialize(b []byte, v any) error {
	return yaml.Unmarshal(b, v)
}
