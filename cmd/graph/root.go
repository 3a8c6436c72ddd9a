package graph

import (
	"errors"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dAFT/cmd/util"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/codec"
	"github.com/ValentinKolb/dAFT/rpc/client"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"io"
	"os"
)

var (
	GraphCommands = &cobra.Command{
		Use:   "graph",
		Short: "Work with forwarding graph files",
		Long: `Validate, describe or apply YAML forwarding graphs. validate and
describe build the graph in a local sandbox, apply ships it to a server.`,
	}

	validateCmd = &cobra.Command{
		Use:     "validate",
		Short:   "Build a graph in a local sandbox and report diagnostics",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loadGraph(viper.GetString("file"))
			if err != nil {
				return err
			}
			return validate(doc, cmd.OutOrStdout())
		},
	}

	describeCmd = &cobra.Command{
		Use:     "describe",
		Short:   "Print the nodes and entries a graph commits",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loadGraph(viper.GetString("file"))
			if err != nil {
				return err
			}
			return describe(doc, cmd.OutOrStdout())
		},
	}

	applyCmd = &cobra.Command{
		Use:     "apply",
		Short:   "Insert a graph into the sandbox of a server",
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			doc, err := loadGraph(viper.GetString("file"))
			if err != nil {
				return err
			}

			s, err := cmdUtil.GetSerializer()
			if err != nil {
				return err
			}
			t, err := cmdUtil.GetTransport()
			if err != nil {
				return err
			}
			rs, err := client.NewRemoteSandbox(cmdUtil.GetShardID(), *cmdUtil.GetClientConfig(), t, s)
			if err != nil {
				return err
			}
			defer rs.Close()

			return apply(doc, rs, cmd.OutOrStdout())
		},
	}
)

func init() {
	GraphCommands.AddCommand(validateCmd, describeCmd, applyCmd)

	key := "file"
	GraphCommands.PersistentFlags().StringP(key, "f", "", cmdUtil.WrapString("The YAML graph file, - reads from stdin"))
	_ = GraphCommands.MarkPersistentFlagRequired(key)

	cmdUtil.SetupRPCClientFlags(applyCmd)
}

func bindFlags(cmd *cobra.Command, _ []string) error {
	return cmdUtil.BindCommandFlags(cmd)
}

// loadGraph parses the graph file at path
func loadGraph(path string) (*codec.GraphDoc, error) {
	if path == "-" {
		return codec.ParseGraph(os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return codec.ParseGraph(f)
}

// Target is a sandbox a graph can be built in and committed to.
type Target interface {
	aft.Receiver
	aft.Stager
	codec.Registry
}

// commit registers the tables of doc in target and inserts its nodes,
// entries and names in one all-or-nothing Insert.
func commit(doc *codec.GraphDoc, target Target) (map[string]aft.NodeToken, error) {
	if err := doc.Register(target); err != nil {
		return nil, err
	}
	ins, ids, err := codec.BuildInsert(doc, target)
	if err != nil {
		return nil, err
	}
	if !aft.Run(target, ins) {
		return nil, ins.Err()
	}
	return ids, nil
}

func localSandbox(doc *codec.GraphDoc) *aft.Sandbox {
	name := doc.Sandbox
	if name == "" {
		name = "graph"
	}
	return aft.NewSandbox(aft.DefaultConfig(name))
}

func validate(doc *codec.GraphDoc, w io.Writer) error {
	sb := localSandbox(doc)
	if _, err := commit(doc, sb); err != nil {
		var ve *aft.ValidationError
		if errors.As(err, &ve) && ve.Diagnostics != "" {
			fmt.Fprintln(w, ve.Diagnostics)
		}
		return fmt.Errorf("graph is invalid: %w", err)
	}
	fmt.Fprintf(w, "graph %s is valid: %d nodes, %d entries\n", sb.Name(), sb.NodeCount(), sb.EntryCount())
	return nil
}

func apply(doc *codec.GraphDoc, rs *client.RemoteSandbox, w io.Writer) error {
	ids, err := commit(doc, rs)
	if err != nil {
		return fmt.Errorf("apply to shard %d: %w", rs.ShardID(), err)
	}
	fmt.Fprintf(w, "applied %d nodes to shard %d\n", len(ids), rs.ShardID())
	for _, n := range doc.Nodes {
		fmt.Fprintf(w, "  %-20s %d\n", n.ID, ids[n.ID])
	}
	return nil
}
