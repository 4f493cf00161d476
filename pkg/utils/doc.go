// Package utils provides helpers shared by the embedkit packages.
//
// This package contains:
//   - Bounded concurrent execution with ordered results (concurrent.go)
//   - Panic recovery for goroutines and callbacks (recovery.go)
//   - Vector math used on embedding output (vector.go)
package utils
