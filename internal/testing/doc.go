// Package testing provides test utilities and fixtures shared across packages.
//
//   - RecordingObserver: a provisioning.Observer that keeps every event
//   - SourceTree: writes a minimal terraform/ + ansible/ source layout
//   - TestContext: a context bounded by a test timeout
//
// Usage:
//
//	obs := testing.NewRecordingObserver()
//	tree := testing.NewSourceTree(t, testing.DefaultVariables())
package testing
