// Package util provides small concurrency building blocks shared by the
// sandbox, the session layer and the command line tools.
//
// The package contains:
//   - mpsc: MPSC, an unbounded lock-free multi-producer single-consumer queue
//     that reports how long each item waited
//   - completion: Completion, a one-shot signal with timed and context waits
//   - functions: HashString, a seeded FNV-1a string hash used for replica ids
package util
