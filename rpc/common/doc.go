// Package common provides the data structures shared by the dAFT server, its
// clients and the transports between them.
//
// The package focuses on:
//   - Message protocol definition for client and server communication
//   - Configuration structures for client and server components
//   - A logrus backed logger factory for Dragonboat's logging system
//   - Utilities for Dragonboat (RAFT) integration
//
// Key Components:
//
//   - Message: the request and response structure of every RPC. Operations
//     travel as codec.OperationDoc, table registrations and token
//     reservations use the Name and Count fields. Every response carries the
//     ID of its request.
//
//   - ServerConfig: configuration of a server, i.e. the shards it serves
//     (local or replicated sandboxes), RAFT parameters, sandbox limits and the
//     HTTP endpoint. Provides conversions into Dragonboat configurations.
//
//   - ClientConfig: endpoints, timeout and retries of a client.
//
//   - InitLoggers: installs the logger factory and sets the log level of all
//     Dragonboat and dAFT package loggers.
package common
