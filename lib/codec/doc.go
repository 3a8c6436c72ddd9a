/*
Package codec converts nodes, entries, operations and whole sandboxes into
document form and back.

Documents are plain structs with json and yaml tags that are also gob
friendly, so one set of types serves the wire (see the ISerializer
implementations), snapshots (SaveSandbox, LoadSandbox) and hand written
graphs (GraphDoc).

A node document carries its variant in a field named after the variant,
for example

	{"type": "Counter", "token": 7, "next": 0, "mask": 18446744073709551615, "counter": {"l3_mode": true}}

Operations travel as OperationDoc. The side that executes an operation
attaches a ReplyDoc with EncodeReply; the side that sent it copies the
reply back into its own operation with ApplyResult. Errors keep their
sentinel across the trip, so errors.Is works on both ends.
*/
package codec
