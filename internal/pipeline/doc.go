// Package pipeline registers an oracle type, an oracle and a product against
// a deployed instance, in that order.
//
// The pipeline is a fixed list of stages. Each stage declares the bindings it
// requires from earlier stages, the bindings it produces and the services it
// talks to, and runs its operations strictly one after another. The first
// failing operation stops the run. Nothing is rolled back: the remote side has
// no compensating calls, so a failed run leaves the environment in the state
// the journal describes, to be repaired by hand or resumed with a later
// starting stage.
package pipeline
