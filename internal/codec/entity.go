// Package codec maps domain records to and from store.Row, maintaining the
// process-wide type registry described in spec.md §4.2.
package codec

// Entity is implemented by every domain struct that can round-trip through
// the Row Store. TypeTag returns the logical type name written to a Row's
// dsmall column.
type Entity interface {
	TypeTag() string
}

// Validatable is implemented by domain structs exposing spec.md §4.3's
// validate-and-collect contract; Encode does not call it — callers (the
// Data Service) decide when to validate.
type Validatable interface {
	Validate() []error
}
