package codec

import "fmt"

// ErrUnknownType is returned when a row's dsmall tag cannot be resolved to
// any registered Entity, even after the registry rescan, per spec.md §4.2.
type ErrUnknownType struct {
	Tag string
}

func (e *ErrUnknownType) Error() string {
	return fmt.Sprintf("codec: unknown type tag %q", e.Tag)
}
