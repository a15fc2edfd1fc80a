// Package solver couples the optimizer to the external finite-element program.
//
// The external program is a black box that reads a request line and, after an
// unbounded delay, leaves one result value per line in an output file. The
// ExternalSolver interface hides how that happens so the rest of the system
// can run against an in-process fake.
//
// Main Types:
//   - ExternalSolver: Run(ctx, Request) -> Response contract
//   - ProcessSolver: the file-channel implementation used with Abaqus
//   - ReplaySolver: answers requests already seen from recorded responses
//   - FuncSolver: adapts a plain Go function, mostly for tests
//
// File contract:
//
//	input channel:  append-only CSV, one request per line, no header;
//	                the solver script reads only the last line
//	output channel: exactly one value per declared output key, one per line
package solver
