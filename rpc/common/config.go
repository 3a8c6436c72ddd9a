package common

import (
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/aft"
	"github.com/ValentinKolb/dAFT/lib/util"
	"github.com/lni/dragonboat/v4/config"
	"sort"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// helper functions for to interface with Dragonboat (for the server util)
// --------------------------------------------------------------------------

// Dragonboat uses RTT (Round Trip Time) to determine the timing of elections and heartbeats.
// These default values are selected according to the RAFT Paper
const (
	electionRTTFactor  = 10
	heartbeatRTTFactor = 1
)

// ToDragonboatConfig converts the ServerConfig to Dragonboat Config
func (c *ServerConfig) ToDragonboatConfig(shardId uint64) config.Config {
	return config.Config{
		ReplicaID:          c.ReplicaID,
		ShardID:            shardId,
		ElectionRTT:        electionRTTFactor,
		HeartbeatRTT:       heartbeatRTTFactor,
		CheckQuorum:        true,
		SnapshotEntries:    c.SnapshotEntries,
		CompactionOverhead: c.CompactionOverhead,
		MaxInMemLogSize:    0,
	}
}

// ToNodeHostConfig creates a NodeHostConfig for Dragonboat
func (c *ServerConfig) ToNodeHostConfig() config.NodeHostConfig {
	return config.NodeHostConfig{
		WALDir:         c.DataDir,
		NodeHostDir:    c.DataDir,
		RTTMillisecond: c.RTTMillisecond,
		RaftAddress:    c.ClusterMembers[c.ReplicaID],
	}
}

// SandboxConfig returns the configuration of the sandbox served as shardId.
func (c *ServerConfig) SandboxConfig(shardId uint64) aft.Config {
	cfg := aft.DefaultConfig(fmt.Sprintf("shard-%d", shardId))
	cfg.CacheNodes = c.CacheNodes
	if c.MaxInputPorts > 0 {
		cfg.MaxInputPorts = c.MaxInputPorts
	}
	if c.MaxOutputPorts > 0 {
		cfg.MaxOutputPorts = c.MaxOutputPorts
	}
	return cfg
}

// Timeout returns TimeoutSecond as a duration.
func (c *ServerConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecond) * time.Second
}

// --------------------------------------------------------------------------
// RPC server configuration struct
// --------------------------------------------------------------------------

type ServerShardType string

const (
	// ShardTypeLocal is a sandbox living in the server process, fed by a session
	ShardTypeLocal ServerShardType = "local"
	// ShardTypeReplicated is a sandbox replicated with raft
	ShardTypeReplicated ServerShardType = "replicated"
)

type ServerShard struct {
	// ShardID is the ID of the shard
	ShardID uint64
	// Type is how the sandbox of the shard is hosted
	Type ServerShardType
}

// ParseShards parses a comma separated list of ID=TYPE pairs, e.g.
// "1=local,2=replicated".
func ParseShards(s string) ([]ServerShard, error) {
	var shards []ServerShard
	seen := make(map[uint64]bool)
	for _, shardConfig := range strings.Split(s, ",") {
		parts := strings.Split(shardConfig, "=")
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid shard format: %s (expected ID=TYPE)", shardConfig)
		}

		shardID, err := strconv.ParseUint(strings.TrimSpace(parts[0]), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid shard ID %s: %v", parts[0], err)
		}
		if seen[shardID] {
			return nil, fmt.Errorf("shard %d configured twice", shardID)
		}
		seen[shardID] = true

		shardType := ServerShardType(strings.TrimSpace(parts[1]))
		switch shardType {
		case ShardTypeLocal, ShardTypeReplicated:
		default:
			return nil, fmt.Errorf("invalid shard type: %s (expected one of: local, replicated)", shardType)
		}

		shards = append(shards, ServerShard{ShardID: shardID, Type: shardType})
	}
	return shards, nil
}

// ReplicaIDOf maps a replica name like "node-1" to its numeric id.
func ReplicaIDOf(name string) uint64 {
	return util.HashString(name, 0)
}

// ParseClusterMembers parses a comma separated list of NAME=ADDRESS pairs,
// e.g. "node-1=localhost:63001,node-2=localhost:63002". The names are mapped
// to replica ids with ReplicaIDOf.
func ParseClusterMembers(s string) (map[uint64]string, error) {
	members := make(map[uint64]string)
	for _, member := range strings.Split(s, ",") {
		parts := strings.Split(member, "=")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid cluster member format: %s (expected ID=address)", member)
		}
		members[ReplicaIDOf(strings.TrimSpace(parts[0]))] = strings.TrimSpace(parts[1])
	}
	return members, nil
}

// ServerConfig holds all configuration parameters of a dAFT server.
type ServerConfig struct {
	// the sandboxes served, see ParseShards
	Shards []ServerShard

	// Dragonboat parameters
	RTTMillisecond     uint64
	SnapshotEntries    uint64
	CompactionOverhead uint64
	DataDir            string
	ReplicaID          uint64
	ClusterMembers     map[uint64]string

	// timeout of replicated proposals and reads
	TimeoutSecond int64

	// Sandbox parameters
	CacheNodes     bool
	MaxInputPorts  uint32
	MaxOutputPorts uint32

	// HTTP api settings
	Endpoint       string
	MetricsEnabled bool

	// Logging configuration
	LogLevel string
}

// HasReplicatedShard checks if the configuration contains any replicated shards
func (c *ServerConfig) HasReplicatedShard() bool {
	for _, shard := range c.Shards {
		if shard.Type == ShardTypeReplicated {
			return true
		}
	}
	return false
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// RPC settings
	addSection("RPC Server")
	addField("Endpoint", c.Endpoint)
	addField("Metrics", fmt.Sprintf("%t", c.MetricsEnabled))

	// Logging configuration
	addSection("Logging")
	addField("Log Level", c.LogLevel)

	// Sandboxes
	addSection("Sandbox")
	addField("Cache Nodes", fmt.Sprintf("%t", c.CacheNodes))
	addField("Max Input Ports", strconv.FormatUint(uint64(c.MaxInputPorts), 10))
	addField("Max Output Ports", strconv.FormatUint(uint64(c.MaxOutputPorts), 10))

	// Shards
	addSection("Shards")
	for _, shard := range c.Shards {
		addField(strconv.FormatUint(shard.ShardID, 10), string(shard.Type))
	}

	if c.HasReplicatedShard() {
		// Node Identity
		addSection("Node Identity")
		addField("RAFT Address", c.ClusterMembers[c.ReplicaID])
		addField("Node ID", strconv.FormatUint(c.ReplicaID, 10))

		// RAFT parameters
		addSection("RAFT Parameters")
		addField("Round Trip Time (ms)", fmt.Sprintf("%d ms", c.RTTMillisecond))
		addField("Election RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*electionRTTFactor))
		addField("Heartbeat RTT (ms)", fmt.Sprintf("%d", c.RTTMillisecond*heartbeatRTTFactor))
		addField("Check Quorum", fmt.Sprintf("%t", true))
		addField("Snapshot Entries", fmt.Sprintf("%d", c.SnapshotEntries))
		addField("Compaction Overhead", fmt.Sprintf("%d", c.CompactionOverhead))
		addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

		// Storage
		addSection("Storage")
		addField("Data Directory", c.DataDir)

		// Cluster
		addSection("Cluster")
		sb.WriteString("  Initial Members:\n")

		// Sort keys for consistent output
		var keys []uint64
		for k := range c.ClusterMembers {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("    Node %d: %s\n", k, c.ClusterMembers[k]))
		}
	}
	return sb.String()
}

// --------------------------------------------------------------------------
// RPC client configuration struct
// --------------------------------------------------------------------------

type ClientConfig struct {
	Endpoints     []string
	TimeoutSecond int
	RetryCount    int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// General Client Settings
	addSection("Client Configuration")
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))
	addField("Retry Count", strconv.Itoa(c.RetryCount))

	// Endpoints
	addSection("Endpoints")
	for i, endpoint := range c.Endpoints {
		addField(strconv.Itoa(i), endpoint)
	}

	return sb.String()
}
