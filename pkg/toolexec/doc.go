// Package toolexec validates and executes structured tool calls against the
// task domain.
//
// Invariants:
// - Tool names are unique and map 1:1 to domain operations, plus the
//   reserved complete_session signal.
// - Arguments are schema-validated before dispatch.
// - Execute always returns a result; domain rejections come back as error
//   outcomes so the model can self-correct. Only store unavailability is
//   marked fatal.
package toolexec
