// Package cmd implements the command-line interface of feedstore. The CLI
// exists to exercise the in-memory store outside of tests.
//
// The package is organized into two subpackages:
//
//   - perf: In-process benchmark of the store (retrieve, insert, delete, mixed)
//   - util: Shared utilities for flag handling and configuration (internal use)
//
// All flags can also be set via environment variables with the FEEDSTORE_
// prefix, e.g. FEEDSTORE_LOG_LEVEL=debug. A .env or .env.local file in the
// working directory is loaded first.
//
// See feedstore -help for a list of all commands.
package cmd
