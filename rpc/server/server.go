package server

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dAFT/lib/replica"
	"github.com/ValentinKolb/dAFT/rpc/common"
	"github.com/ValentinKolb/dAFT/rpc/serializer"
	"github.com/ValentinKolb/dAFT/rpc/transport"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"os/signal"
	"runtime"
	"syscall"
)

var log = logger.GetLogger("rpc")

// serverShard is a struct that represents a shard in the RPC server
// It contains the sandbox it serves and the adapter that handles requests
// for it
type serverShard struct {
	Shard   Shard
	Adapter IRPCServerAdapter
}

// NewRPCServer creates a new RPC server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		http.NewHttpServerTransport(),
//		serializer.NewJSONSerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	 }
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	log.Infof("Created RPC Server")
	log.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		shards:     xsync.NewMapOf[uint64, serverShard](),
	}
}

// RPCServer serves the sandboxes of its configuration over a transport.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer
	shards     *xsync.MapOf[uint64, serverShard]
	nodeHost   *dragonboat.NodeHost
}

// AddShard serves shard under id, replacing what was served there before.
func (s *RPCServer) AddShard(id uint64, shard Shard) {
	s.shards.Store(id, serverShard{
		Shard:   shard,
		Adapter: NewSandboxServerAdapter(),
	})
}

// Shard returns the shard served under id.
func (s *RPCServer) Shard(id uint64) (Shard, bool) {
	shard, ok := s.shards.Load(id)
	return shard.Shard, ok
}

// Handle decodes a request addressed to shardId, lets the adapter of the
// shard answer it and encodes the response. It is the handler registered
// at the transport.
func (s *RPCServer) Handle(shardId uint64, req []byte) []byte {
	var msg common.Message
	var respMsg *common.Message

	if err := s.serializer.Deserialize(req, &msg); err != nil {
		respMsg = common.NewErrorResponse(msg.ID, fmt.Errorf("failed to deserialize request: %w", err))
	} else if shard, ok := s.shards.Load(shardId); !ok {
		respMsg = common.NewErrorResponse(msg.ID, fmt.Errorf("shard %d not found", shardId))
	} else {
		// Let the adapter handle the request
		respMsg = shard.Adapter.Handle(&msg, shard.Shard)
	}

	// Return result
	val, err := s.serializer.Serialize(*respMsg)
	if err != nil {
		log.Errorf("failed to serialize %s response: %v", respMsg.MsgType, err)
		val, _ = s.serializer.Serialize(*common.NewErrorResponse(msg.ID, fmt.Errorf("failed to serialize response: %w", err)))
	}
	return val
}

func (s *RPCServer) init() error {
	// Create the Dragonboat NodeHost
	if s.config.HasReplicatedShard() {
		// Only create the NodeHost if we have replicated shards
		nh, err := dragonboat.NewNodeHost(s.config.ToNodeHostConfig())
		if err != nil {
			return fmt.Errorf("failed to create node host: %w", err)
		}
		s.nodeHost = nh
	}

	// CREATE SHARDS

	/*
		Note: A single RPC Server can serve any number of local and replicated
		sandboxes. Every shard gets its own sandbox configured from the server
		config.
	*/

	for _, shardConfig := range s.config.Shards {
		cfg := s.config.SandboxConfig(shardConfig.ShardID)

		switch shardConfig.Type {
		case common.ShardTypeLocal:
			s.AddShard(shardConfig.ShardID, NewLocalShard(cfg))
			log.Infof("created local sandbox for shard %d", shardConfig.ShardID)

		case common.ShardTypeReplicated:
			if s.nodeHost == nil {
				return fmt.Errorf("node host is nil, cannot create replicated sandbox")
			}

			// Start Raft for the shard
			if err := s.nodeHost.StartConcurrentReplica(s.config.ClusterMembers, false, replica.CreateStateMachineFactory(cfg), s.config.ToDragonboatConfig(shardConfig.ShardID)); err != nil {
				return fmt.Errorf("failed to start shard %d: %w", shardConfig.ShardID, err)
			}
			s.AddShard(shardConfig.ShardID, replica.NewReplicatedSandbox(s.nodeHost, shardConfig.ShardID, s.config.Timeout()))
			log.Infof("started replicated sandbox for shard %d", shardConfig.ShardID)

		default:
			return fmt.Errorf("invalid shard type: %s", shardConfig.Type)
		}
	}

	log.Infof("dAFT setup completed successfully")

	// Configure the transport layer
	s.transport.RegisterHandler(s.Handle)

	return nil
}

// Serve starts the RPC server
// This function will also initialize the server plus the shards and start the
// transport layer. It blocks until the transport is shut down.
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		s.close()
		return err
	}
	return s.transport.Listen(s.config)
}

// Shutdown stops the transport and releases every shard.
func (s *RPCServer) Shutdown(ctx context.Context) error {
	err := s.transport.Shutdown(ctx)
	s.close()
	return err
}

func (s *RPCServer) close() {
	s.shards.Range(func(id uint64, shard serverShard) bool {
		if local, ok := shard.Shard.(*LocalShard); ok {
			local.Close()
		}
		s.shards.Delete(id)
		return true
	})
	if s.nodeHost != nil {
		s.nodeHost.Close()
		s.nodeHost = nil
	}
}
