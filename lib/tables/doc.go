// Package tables provides the registries a sandbox is built from.
//
// Key Features:
//
//   - TokenTable: monotonic token allocation (tokens are never reused) and a
//     token -> descriptor map backed by xsync.MapOf. With caching disabled
//     only the type name and container flag are kept per token.
//   - StringTable: generic name -> entry map with regular expression search,
//     used for name bindings.
//   - IndexTable: bidirectional name <-> index registry with index 0 reserved
//     for "none", used for types, groups, protocols, encaps and decaps.
//   - FieldTable: field name -> {index, width}.
//   - PortTable: fixed capacity index -> port map for input and output ports.
//
// Thread Safety:
//
// Every table is safe for concurrent use on its own. Keeping several tables
// consistent with each other is the job of the owner (the sandbox), which
// serializes all mutations.
//
// Usage Example:
//
//	types := tables.NewIndexTable()
//	tree, _ := types.Create("Tree")
//
//	tokens := tables.NewTokenTable[*Node](tables.TokenDiscard, true)
//	tok := tokens.Allocate()
//	tokens.Insert(tok, "Tree", true, node)
package tables
