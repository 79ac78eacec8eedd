// Package validate type checks xir function bodies.
//
// Each body is checked by abstract interpretation: every instruction is
// replayed against a simulated operand stack of typed lvalue and rvalue
// items. Target labels declare the exact stack a join point expects, and
// every path reaching a label, whether by fall through, branch or switch,
// must agree with it. Nested blocks report the stack carried out by their
// exits to the enclosing block.
//
// Types are compared by unification rather than equality: Named types are
// resolved through the file's global tables, tagged and aligned wrappers
// are transparent, and pointer annotations are ignored.
//
// Validation never modifies its input. File returns a Report holding a
// resolved copy of the IR and one result per function or static, so one
// malformed function does not hide errors in the others.
package validate
