package pipeline

import (
	"context"

	"github.com/specialistvlad/gifdeploy/internal/gif"
)

// Env is what an operation can see: the run parameters, the facade set and
// the bindings produced so far.
type Env struct {
	Params   Params
	Services *gif.Services
	Bindings *Bindings
}

// Operation is one remote call, plus whatever binding it produces.
type Operation struct {
	Name string
	Do   func(ctx context.Context, env *Env) error
}

// Stage is an ordered list of operations that succeed or fail as a unit.
type Stage struct {
	ID   StageID
	Name string
	// Requires must be bound before the first operation runs.
	Requires []Key
	// Produces must be bound once the last operation has run.
	Produces []Key
	// Services are the facades the operations use.
	Services []gif.ServiceName
	// Reached is the run state once the stage completes.
	Reached    State
	Operations []Operation
	// Assume binds Produces from the parameters when a resumed run starts
	// after this stage. Stages without it cannot be skipped.
	Assume func(p Params, b *Bindings)
}
