// Package server implements the RPC server of dAFT.
// It hosts one sandbox per shard and answers the requests the transport
// routes to it.
//
// Key Components:
//
//   - Shard: The sandbox as the server sees it. A receiver for operations, a
//     stager for decoding them and a registry for the tables.
//
//   - LocalShard: A sandbox living in the server process. Operations are
//     serialized through a session.Session.
//
//   - IRPCServerAdapter: Interface defining the contract for all server
//     adapters, with the Handle method that processes a request against a
//     shard. NewSandboxServerAdapter returns the adapter of all shards.
//
//   - NewRPCServer: Factory function creating a configured server with the
//     specified transport and serializer mechanisms.
//
// Usage Example:
//
//	// Create server configuration
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 1, Type: common.ShardTypeLocal},
//	  },
//	  Endpoint:      "0.0.0.0:8080",
//	  TimeoutSecond: 5,
//	  LogLevel:      "info",
//	}
//
//	// Create and start the server
//	s := server.NewRPCServer(
//	  config,
//	  http.NewHttpServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// The server supports two types of shards, which can be mixed within a
// single server:
//
//   - ShardTypeLocal: A sandbox in the server process, suitable for
//     single-node deployments or development environments.
//
//   - ShardTypeReplicated: A sandbox replicated with Raft, see the replica
//     package. When using this type the RAFT configuration (RTTMillisecond,
//     SnapshotEntries, CompactionOverhead, DataDir, ReplicaID and
//     ClusterMembers) must be properly configured.
//
// An operation that is rejected by the sandbox is still answered with a
// successful response. Its outcome travels in the reply document, and only
// requests that could not be executed at all get an error response.
package server
