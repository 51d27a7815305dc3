package domain

import "github.com/relaydb/jobcore/internal/codec"

// AllEntities returns one zero-valued exemplar per domain variant, the
// closed set spec.md §3 describes. This is passed to codec.NewRegistry as
// its rescan source — the Go-idiomatic stand-in for
// original_source/database_object3.py's inspect.getmembers module scan,
// since Go has no runtime package-level type enumeration.
func AllEntities() []codec.Entity {
	return []codec.Entity{
		System{},
		User{},
		Job{},
		Task{},
		Schedule{},
		Tag{},
		TriggerEvent{},
		CancellationEvent{},
		Execution{},
		ExecutionServer{},
		WorkerThread{},
		Config{},
		SchedulerLease{},
	}
}

// NewRegistry builds the process-wide codec.Registry populated with every
// domain entity, per spec.md §4.2 and SPEC_FULL.md §4.2.
func NewRegistry() *codec.Registry {
	return codec.NewRegistry(AllEntities)
}
