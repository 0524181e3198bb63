// Package agent drives conversational sessions against an inference backend.
//
// Invariants:
// - One round is one backend request plus execution of every tool call it contained.
// - Every tool call is answered with exactly one result before the next request.
// - The state machine is pure; all I/O lives in the driver and backends.
// - Run never raises: every failure resolves into a terminal SessionResult.
//
// Usage:
//
//	backend, _ := agent.NewBackend(agent.BackendLocal, agent.BackendConfig{})
//	driver, _ := agent.NewDriver(agent.DriverConfig{Backend: backend, Tools: exec, Logger: logger})
//	result := driver.Run(ctx, toolexec.Scope{UserID: "u1"}, "create a task called 'Buy milk'", agent.RunConfig{MaxRounds: 5})
//	_ = result
package agent
