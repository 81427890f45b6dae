// Package inference owns the model session used by the dice pipeline.
//
// An Engine moves through two states: Uninitialized until Load succeeds,
// then Ready for the rest of the process. There is no way back; a failed
// load leaves the engine Uninitialized and every Infer call fails fast.
//
// The numeric work is delegated to a Runtime. LoomRuntime executes loom
// model bundles; EchoRuntime is a deterministic stand-in for tests and dev
// mode.
package inference
