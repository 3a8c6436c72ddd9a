// Package replica replicates an aft.Sandbox with the Dragonboat RAFT consensus
// library. Every replica of a shard hosts its own sandbox and applies the same
// operations in the same order, so all of them hold the same forwarding graph.
//
// Architecture:
//
//   - ReplicatedSandbox: an aft.Receiver and aft.Stager that proposes
//     operations to the shard and reads from it. It can be used wherever a
//     local sandbox is expected, e.g. behind a session or an RPC server.
//
//   - SandboxStateMachine: a Dragonboat IConcurrentStateMachine holding the
//     sandbox of one replica. Update applies commands from the log, Lookup
//     answers read-only queries.
//
//   - Communication Protocol: the Command and Query structures of the internal
//     package.
//
// Write Operations:
//
//	Insert, Remove and NodeActive, as well as the table registrations
//	(InsertType, InsertField, InsertProto, CreateGroup), follow this flow:
//
//	1. The operation is encoded into a codec.OperationDoc and wrapped in a Command
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. Once committed, every replica executes it against its sandbox
//	4. The reply document is returned to the proposer and copied into the operation
//
//	A rejected Insert is rejected on every replica alike, since validation only
//	depends on the replicated state.
//
// Tokens:
//
//	Tokens are allocated from blocks (DefaultTokenBlock at a time) reserved
//	with a ReserveTokens command. The block counter is part of the replicated
//	state and of every snapshot, so no token is handed out twice, not even
//	after a restart.
//
// Read Operations:
//
//	SandboxInfo, SandboxFind, NodeInfo and the tests use SyncRead and see every
//	operation committed before them.
//
// Error Handling and Retries:
//
//   - System Busy: When Dragonboat returns ErrSystemBusy, the request is retried
//     after a short delay, up to 5 times.
//
//   - Timeouts: requests that do not complete in time fail with aft.ErrTimeout.
//
// Snapshotting and Recovery:
//
//	PrepareSnapshot exports the sandbox state, SaveSnapshot writes it in the
//	format of codec.SaveSandbox. RecoverFromSnapshot replaces the sandbox of
//	the replica by the one read back.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	err = nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    replica.CreateStateMachineFactory(aft.DefaultConfig("")),
//	    shardConfig)
//	if err != nil { ... }
//
//	sb := replica.NewReplicatedSandbox(nh, shardID, 5*time.Second)
//	ins := aft.NewInsert(sb)
//	...
//	ok := aft.Run(sb, ins)
package replica
