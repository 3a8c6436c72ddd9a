package serve

import (
	"context"
	"fmt"
	cmdUtil "github.com/ValentinKolb/dAFT/cmd/util"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/ValentinKolb/dAFT/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"os"
	"os/signal"
	"syscall"
	"time"
)

var log = logger.GetLogger("cli")

// shutdownTimeout bounds the graceful shutdown after a signal
const shutdownTimeout = 10 * time.Second

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the dAFT server",
		Long:    `Start the dAFT server with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is DAFT_<flag> (e.g. DAFT_TIMEOUT=15)`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "shards"
	ServeCmd.PersistentFlags().String(key, "1=local", cmdUtil.WrapString("Comma-separated list of sandboxes to serve. Format: ID=TYPE where TYPE is one of: local, replicated"))

	key = "rtt-millisecond"
	ServeCmd.PersistentFlags().Int(key, 100, cmdUtil.WrapString("(Replicated shards) RTTMillisecond defines the average Round Trip Time (RTT) in milliseconds between two NodeHost instances. \nOther raft configuration parameters (ElectionRTT=value*10, HeartbeatRTT=value) are derived from this value"))

	key = "snapshot-entries"
	ServeCmd.PersistentFlags().Int(key, 1000, cmdUtil.WrapString("(Replicated shards) SnapshotEntries defines how often the sandbox should be snapshotted automatically. It is defined in terms of the number of applied Raft log entries. SnapshotEntries can be set to 0 to disable such automatic snapshotting (not recommended)"))

	key = "compaction-overhead"
	ServeCmd.PersistentFlags().Int(key, 500, cmdUtil.WrapString("(Replicated shards) CompactionOverhead defines the number of log entries kept after a snapshot. Recommended value is about 1/2 of SnapshotEntries"))

	key = "data-dir"
	ServeCmd.PersistentFlags().String(key, "data", cmdUtil.WrapString("(Replicated shards) DataDir is the directory used for storing the raft log and snapshots"))

	key = "replica-id"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Replicated shards) ReplicaID is the unique identifier for this NodeHost instance (e.g. 'node-1')"))

	key = "cluster-members"
	ServeCmd.PersistentFlags().String(key, "", cmdUtil.WrapString("(Replicated shards) ClusterMembers is a comma-separated list of NodeHost addresses in the format 'node-1=localhost:63001,node-2=localhost:63002,...'"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int64(key, 5, cmdUtil.WrapString("(Replicated shards) Timeout of proposals and reads in seconds"))

	key = "cache-nodes"
	ServeCmd.PersistentFlags().Bool(key, false, cmdUtil.WrapString("Keep removed nodes in a cache of the sandbox"))

	key = "max-input-ports"
	ServeCmd.PersistentFlags().Uint32(key, 0, cmdUtil.WrapString("Number of input ports of every sandbox (0 keeps the default)"))

	key = "max-output-ports"
	ServeCmd.PersistentFlags().Uint32(key, 0, cmdUtil.WrapString("Number of output ports of every sandbox (0 keeps the default)"))

	key = "endpoint"
	ServeCmd.PersistentFlags().String(key, "0.0.0.0:8080", cmdUtil.WrapString("The address on which the API will listen (e.g. localhost:8080)"))

	key = "metrics"
	ServeCmd.PersistentFlags().Bool(key, true, cmdUtil.WrapString("Expose prometheus metrics at GET /metrics of the endpoint"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", cmdUtil.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := cmdUtil.BindCommandFlags(cmd); err != nil {
		return err
	}

	// parse shards
	shards, err := common.ParseShards(viper.GetString("shards"))
	if err != nil {
		return err
	}
	serveCmdConfig.Shards = shards

	// read the configuration from the command line flags and environment variables
	serveCmdConfig.RTTMillisecond = viper.GetUint64("rtt-millisecond")
	serveCmdConfig.SnapshotEntries = viper.GetUint64("snapshot-entries")
	serveCmdConfig.CompactionOverhead = viper.GetUint64("compaction-overhead")
	serveCmdConfig.DataDir = viper.GetString("data-dir")
	serveCmdConfig.TimeoutSecond = viper.GetInt64("timeout")
	serveCmdConfig.CacheNodes = viper.GetBool("cache-nodes")
	serveCmdConfig.MaxInputPorts = viper.GetUint32("max-input-ports")
	serveCmdConfig.MaxOutputPorts = viper.GetUint32("max-output-ports")
	serveCmdConfig.Endpoint = viper.GetString("endpoint")
	serveCmdConfig.MetricsEnabled = viper.GetBool("metrics")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// the level has to be set before anything is logged
	if err := common.InitLoggers(serveCmdConfig.LogLevel); err != nil {
		return err
	}

	if !serveCmdConfig.HasReplicatedShard() {
		return nil
	}

	// parse replica id (only for replicated shards)
	id := viper.GetString("replica-id")
	if id == "" {
		return fmt.Errorf("ReplicaId is required for replicated shards")
	}
	serveCmdConfig.ReplicaID = common.ReplicaIDOf(id)

	// parse cluster members
	clusterMembers := viper.GetString("cluster-members")
	if clusterMembers == "" {
		return fmt.Errorf("ClusterMembers is required for replicated shards")
	}
	if serveCmdConfig.ClusterMembers, err = common.ParseClusterMembers(clusterMembers); err != nil {
		return err
	}

	// test if the replica id is in the cluster members
	if _, ok := serveCmdConfig.ClusterMembers[serveCmdConfig.ReplicaID]; !ok {
		return fmt.Errorf("no address found for replica %s in cluster members", id)
	}

	return nil
}

// run starts the dAFT server and shuts it down on SIGINT or SIGTERM
func run(_ *cobra.Command, _ []string) error {
	s, err := cmdUtil.GetSerializer()
	if err != nil {
		return err
	}
	t, err := cmdUtil.GetServerTransport()
	if err != nil {
		return err
	}

	serv := server.NewRPCServer(*serveCmdConfig, t, s)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		log.Infof("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		done <- serv.Shutdown(sctx)
	}()

	if err := serv.Serve(); err != nil {
		return err
	}
	return <-done
}
