// Package testing provides test doubles, builders, and fixtures shared by the
// orchestrator and command tests.
//
// This package centralizes common testing patterns to avoid duplication across test files:
//   - ConfigBuilder: Fluent builder writing a configuration directory and loading it
//   - MockInfrastructure, MockExecutor: function-field doubles recording their calls
//   - MockContainerRuntime: testify mock of the container runtime
//   - RecordingObserver: collects provisioning events for assertions
//
// Usage:
//
//	cfg := testing.NewConfigBuilder().
//	    WithProvider(config.ProviderHCloud).
//	    WithNode("node_000", config.Node{Box: "ubuntu-22.04"}).
//	    Build(t)
//
//	infra := &testing.MockInfrastructure{}
//	infra.IsRunningFunc = func(context.Context, string) (bool, error) { return true, nil }
package testing
