// Package client implements the RPC client of a dAFT server.
// It provides RemoteSandbox, a sandbox whose operations are executed by a
// remote server via RPC.
//
// The package focuses on:
//   - Transparent RPC access to a sandbox served by a shard
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and aft errors
//
// Key Components:
//
//   - NewRemoteSandbox: Factory function that creates a client implementing
//     aft.Receiver, aft.Stager and codec.Registry. Operations are encoded with
//     the codec package, executed by the server and their reply is copied back
//     into the caller's operation.
//
// Tokens are reserved from the server in blocks of DefaultTokenBlock, so an
// Insert staged against a RemoteSandbox carries tokens that are unique in the
// served sandbox.
//
// Usage Example:
//
//	// Configure the client
//	config := common.ClientConfig{
//	  Endpoints:     []string{"localhost:8080"},
//	  TimeoutSecond: 5,
//	  RetryCount:    3,
//	}
//
//	// Create the sandbox client
//	sb, _ := client.NewRemoteSandbox(1, config, http.NewHttpClientTransport(), serializer.NewBinarySerializer())
//	defer sb.Close()
//
//	// Stage and run an operation
//	op := aft.NewSandboxInfo(aft.InfoRequest{})
//	aft.Run(sb, op)
//
// Errors reported by the server keep their code and the sentinel they match,
// so errors.Is(err, aft.ErrValidation) works across the wire.
package client
