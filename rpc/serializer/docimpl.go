package serializer

import (
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &docSerializerImpl{docs: codec.NewJSONSerializer()}
}

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRPCSerializer {
	return &docSerializerImpl{docs: codec.NewGOBSerializer()}
}

// docSerializerImpl implements the IRPCSerializer interface by encoding the
// whole message with one of the document serializers of lib/codec
type docSerializerImpl struct {
	docs codec.ISerializer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (d docSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	return d.docs.Serialize(msg)
}

func (d docSerializerImpl) Deserialize(b []byte, msg *common.Message) error {
	*msg = common.Message{}
	return d.docs.Deserialize(b, msg)
}
