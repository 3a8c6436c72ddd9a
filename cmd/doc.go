// Package cmd implements the command-line interface of dAFT. It provides a
// hierarchical command structure for running the server and for working
// with forwarding graphs, locally or against a server.
//
// The package is organized into several subpackages:
//
//   - serve: Commands for starting and configuring the dAFT server
//   - graph: Commands to validate, describe and apply YAML graph files
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set with environment variables prefixed DAFT_ (e.g.
// DAFT_LOG_LEVEL=debug), which are read from .env and .env.local too.
//
// See daft -help for a list of all commands.
package cmd
