package codec

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
)

// --------------------------------------------------------------------------
// Entries
// --------------------------------------------------------------------------

// EntryDoc is the document form of an entry. Exactly one variant is set.
type EntryDoc struct {
	Route          *aft.RouteEntry     `json:"route,omitempty" yaml:"route,omitempty"`
	Index          *aft.IndexEntry     `json:"index,omitempty" yaml:"index,omitempty"`
	KeyField       *aft.KeyFieldEntry  `json:"key_field,omitempty" yaml:"key_field,omitempty"`
	DeleteRoute    *aft.DeleteRoute    `json:"delete_route,omitempty" yaml:"delete_route,omitempty"`
	DeleteIndex    *aft.DeleteIndex    `json:"delete_index,omitempty" yaml:"delete_index,omitempty"`
	DeleteKeyField *aft.DeleteKeyField `json:"delete_key_field,omitempty" yaml:"delete_key_field,omitempty"`
}

// EncodeEntry converts e into its document form.
func EncodeEntry(e aft.Entry) (EntryDoc, error) {
	if e == nil {
		return EntryDoc{}, fmt.Errorf("%w: nil entry", aft.ErrIllegalType)
	}
	var doc EntryDoc
	switch x := aft.CloneEntry(e).(type) {
	case *aft.RouteEntry:
		doc.Route = x
	case *aft.IndexEntry:
		doc.Index = x
	case *aft.KeyFieldEntry:
		doc.KeyField = x
	case *aft.DeleteRoute:
		doc.DeleteRoute = x
	case *aft.DeleteIndex:
		doc.DeleteIndex = x
	case *aft.DeleteKeyField:
		doc.DeleteKeyField = x
	default:
		return EntryDoc{}, fmt.Errorf("%w: %T", aft.ErrIllegalType, e)
	}
	return doc, nil
}

// DecodeEntry returns the entry held by doc.
func DecodeEntry(doc EntryDoc) (aft.Entry, error) {
	var out []aft.Entry
	add := func(set bool, e aft.Entry) {
		if set {
			out = append(out, e)
		}
	}
	add(doc.Route != nil, doc.Route)
	add(doc.Index != nil, doc.Index)
	add(doc.KeyField != nil, doc.KeyField)
	add(doc.DeleteRoute != nil, doc.DeleteRoute)
	add(doc.DeleteIndex != nil, doc.DeleteIndex)
	add(doc.DeleteKeyField != nil, doc.DeleteKeyField)

	if len(out) != 1 {
		return nil, fmt.Errorf("%w: entry carries %d variants", aft.ErrIllegalType, len(out))
	}
	return aft.CloneEntry(out[0]), nil
}

func encodeEntries(es []aft.Entry) ([]EntryDoc, error) {
	if len(es) == 0 {
		return nil, nil
	}
	out := make([]EntryDoc, len(es))
	for i, e := range es {
		doc, err := EncodeEntry(e)
		if err != nil {
			return nil, err
		}
		out[i] = doc
	}
	return out, nil
}

func decodeEntries(docs []EntryDoc) ([]aft.Entry, error) {
	out := make([]aft.Entry, 0, len(docs))
	for i, doc := range docs {
		e, err := DecodeEntry(doc)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}
