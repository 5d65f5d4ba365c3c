// Package provisioning provides the step pipeline and observability types
// shared by every provisioning component.
//
// # Core Types
//
// Context carries the run configuration, the RunContext of the current
// invocation, the parsed deployment variables, an Observer and the metrics
// recorder. Phase defines a provisioning step with Name() and Provision()
// methods; RunPhases executes phases strictly in order and stops at the
// first failure.
package provisioning
