// Package internal provides the raft log format of the replica package.
//
// This package is intended for internal use by the replica implementation and should
// not be imported directly by external code.
//
//   - Command System: write operations (Execute, ReserveTokens and the table
//     registrations) that change the replicated sandbox. Commands are serialized,
//     proposed to the RAFT cluster and applied by every replica in log order.
//
//   - Query System: read operations executed locally on the state machine. They
//     are never written to the log and therefore need no serialization.
//
// Command Format:
//
//	+--------+----------+----------+--------+-------------+
//	| Type   | Count    | NameLen  | Name   | Payload     |
//	| 1 byte | 8 bytes  | 4 bytes  | N byte | rest        |
//	+--------+----------+----------+--------+-------------+
//
// All integers are big endian. The payload of an Execute command is a gob
// encoded codec.OperationDoc.
package internal
