// Package rpc provides the remote procedure call layer of dAFT. It serves
// sandboxes over the network and lets clients stage and execute operations
// against them.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures and utilities used across the RPC system,
//     including the Message protocol, configuration structures, and logging.
//
//   - transport: Network communication abstractions with an HTTP
//     implementation.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: RemoteSandbox, the client side of a served sandbox.
//
//   - server: RPC server components that host local and replicated
//     sandboxes and answer incoming requests for them.
package rpc
