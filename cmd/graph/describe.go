package graph

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/lib/data"
	"gopkg.in/yaml.v3"
	"io"
)

// description is what describe prints
type description struct {
	Sandbox string            `yaml:"sandbox"`
	Status  data.Parameters   `yaml:"status,omitempty"`
	Names   map[string]string `yaml:"names,omitempty"`
	Nodes   []describedNode   `yaml:"nodes"`
}

type describedNode struct {
	ID      string           `yaml:"id"`
	Info    aft.Info         `yaml:"info"`
	Node    codec.NodeDoc    `yaml:"node"`
	Entries []codec.EntryDoc `yaml:"entries,omitempty"`
}

// describe commits doc to a local sandbox and writes the result as YAML.
// Nodes are listed in document order.
func describe(doc *codec.GraphDoc, w io.Writer) error {
	sb := localSandbox(doc)
	ids, err := commit(doc, sb)
	if err != nil {
		return fmt.Errorf("graph is invalid: %w", err)
	}

	out := description{Sandbox: sb.Name(), Names: make(map[string]string)}

	status := aft.NewSandboxInfo(aft.InfoStatus)
	if aft.Run(sb, status) {
		out.Status = status.Reply
	}

	byToken := make(map[aft.NodeToken]string, len(ids))
	tokens := make([]aft.NodeToken, 0, len(ids))
	for _, n := range doc.Nodes {
		byToken[ids[n.ID]] = n.ID
		tokens = append(tokens, ids[n.ID])
	}
	for name := range doc.Names {
		if tok, ok := sb.FindName(name); ok {
			out.Names[name] = fmt.Sprintf("%s (%d)", byToken[tok], tok)
		}
	}

	info := aft.NewNodeInfo(tokens...)
	if !aft.Run(sb, info) {
		return info.Err()
	}
	infos := make(map[aft.NodeToken]aft.Info, len(tokens))
	for {
		i, ok := info.Pull()
		if !ok {
			break
		}
		infos[i.Token] = i
	}

	for _, tok := range tokens {
		n, ok := sb.FindNode(tok)
		if !ok {
			return fmt.Errorf("node %s (%d) missing after commit", byToken[tok], tok)
		}
		nd, err := codec.EncodeNode(n)
		if err != nil {
			return err
		}
		dn := describedNode{ID: byToken[tok], Info: infos[tok], Node: nd}
		for _, e := range sb.Entries(tok) {
			ed, err := codec.EncodeEntry(e)
			if err != nil {
				return err
			}
			dn.Entries = append(dn.Entries, ed)
		}
		out.Nodes = append(out.Nodes, dn)
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(out)
}
