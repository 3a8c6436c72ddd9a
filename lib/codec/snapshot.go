package codec

import (
	"bufio"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/tables"
	"io"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum        = "DAFTSBX\x00" // File format identifier
	snapshotVersion = 1             // Snapshot format version
)

// --------------------------------------------------------------------------
// Snapshot document
// --------------------------------------------------------------------------

// nodeStateDoc is aft.NodeState with the node in document form.
type nodeStateDoc struct {
	Token     aft.NodeToken
	TypeName  string
	Container bool
	Group     string
	Inactive  bool
	Node      *NodeDoc
}

// snapshotDoc is the gob payload following the snapshot header.
type snapshotDoc struct {
	Name     string
	MaxToken aft.NodeToken

	Types  []aft.IndexBinding
	Groups []aft.IndexBinding
	Protos []aft.IndexBinding
	Encaps []aft.IndexBinding
	Decaps []aft.IndexBinding
	Fields []aft.FieldState

	Nodes   []nodeStateDoc
	Entries []EntryDoc
	Names   []aft.NameBinding

	MaxInputPorts  uint32
	MaxOutputPorts uint32
	Inputs         []tables.Port
	Outputs        []tables.Port
}

func stateToDoc(st *aft.State) (*snapshotDoc, error) {
	doc := &snapshotDoc{
		Name:           st.Name,
		MaxToken:       st.MaxToken,
		Types:          st.Types,
		Groups:         st.Groups,
		Protos:         st.Protos,
		Encaps:         st.Encaps,
		Decaps:         st.Decaps,
		Fields:         st.Fields,
		Names:          st.Names,
		MaxInputPorts:  st.MaxInputPorts,
		MaxOutputPorts: st.MaxOutputPorts,
		Inputs:         st.Inputs,
		Outputs:        st.Outputs,
	}
	for _, ns := range st.Nodes {
		nd := nodeStateDoc{
			Token:     ns.Token,
			TypeName:  ns.TypeName,
			Container: ns.Container,
			Group:     ns.Group,
			Inactive:  ns.Inactive,
		}
		if ns.Node != nil {
			n, err := EncodeNode(ns.Node)
			if err != nil {
				return nil, fmt.Errorf("token %d: %w", ns.Token, err)
			}
			nd.Node = &n
		}
		doc.Nodes = append(doc.Nodes, nd)
	}
	entries, err := encodeEntries(st.Entries)
	if err != nil {
		return nil, err
	}
	doc.Entries = entries
	return doc, nil
}

func docToState(doc *snapshotDoc) (*aft.State, error) {
	st := &aft.State{
		Name:           doc.Name,
		MaxToken:       doc.MaxToken,
		Types:          doc.Types,
		Groups:         doc.Groups,
		Protos:         doc.Protos,
		Encaps:         doc.Encaps,
		Decaps:         doc.Decaps,
		Fields:         doc.Fields,
		Names:          doc.Names,
		MaxInputPorts:  doc.MaxInputPorts,
		MaxOutputPorts: doc.MaxOutputPorts,
		Inputs:         doc.Inputs,
		Outputs:        doc.Outputs,
	}
	for _, nd := range doc.Nodes {
		ns := aft.NodeState{
			Token:     nd.Token,
			TypeName:  nd.TypeName,
			Container: nd.Container,
			Group:     nd.Group,
			Inactive:  nd.Inactive,
		}
		if nd.Node != nil {
			n, err := DecodeNode(*nd.Node)
			if err != nil {
				return nil, fmt.Errorf("token %d: %w", nd.Token, err)
			}
			ns.Node = n
		}
		st.Nodes = append(st.Nodes, ns)
	}
	entries, err := decodeEntries(doc.Entries)
	if err != nil {
		return nil, err
	}
	st.Entries = entries
	return st, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// SaveSandbox writes a snapshot of s to w: the file header followed by the
// gob encoded tables, nodes in token order, entries and the token maximum.
//
// Thread-safety: s may be used concurrently; the snapshot is taken under
// the sandbox's read lock.
func SaveSandbox(w io.Writer, s *aft.Sandbox) error {
	return SaveState(w, s.ExportState())
}

// SaveState writes st in the format of SaveSandbox. It lets callers export
// the state at one point and write it out later.
func SaveState(w io.Writer, st *aft.State) error {
	doc, err := stateToDoc(st)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", st.Name, err)
	}

	bw := bufio.NewWriter(w)

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(snapshotVersion)); err != nil {
		return err
	}

	if err := gob.NewEncoder(bw).Encode(doc); err != nil {
		return fmt.Errorf("snapshot %s: %w", st.Name, err)
	}
	return bw.Flush()
}

// LoadSandbox reads a snapshot written by SaveSandbox and builds a new
// sandbox from it. Settings that are not part of the snapshot (caching,
// validation, token base) come from cfg.
func LoadSandbox(r io.Reader, cfg aft.Config) (*aft.Sandbox, error) {
	br := bufio.NewReader(r)

	// Read and verify magic number
	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return nil, err
	}
	if string(magicBytes) != magicNum {
		return nil, fmt.Errorf("invalid snapshot format: magic number mismatch")
	}

	// Read and verify version
	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return nil, err
	}
	if int(version) != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version: %d (expected %d)", version, snapshotVersion)
	}

	var doc snapshotDoc
	if err := gob.NewDecoder(br).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	st, err := docToState(&doc)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", doc.Name, err)
	}
	return aft.NewSandboxFromState(cfg, st)
}
