package codec

import (
	"encoding/json"
	"reflect"

	"github.com/relaydb/jobcore/internal/store"
)

// Codec translates domain records to/from store.Row (C2). Serialization
// rules per spec.md §4.2: null values are omitted (encoding/json's
// "omitempty" tag), payloads are UTF-8 JSON, and decode tolerates both
// camelCase and snake_case tag-map keys.
type Codec struct {
	registry *Registry
}

// New builds a Codec backed by registry.
func New(registry *Registry) *Codec {
	return &Codec{registry: registry}
}

// Encode serializes obj and tags into a Row. The returned Row has no id or
// ver; the store assigns those on insert.
func Encode(obj Entity, tags map[string]string) (store.Row, error) {
	payload, err := json.Marshal(obj)
	if err != nil {
		return store.Row{}, err
	}
	tagsJSON, err := json.Marshal(onDiskTags(tags))
	if err != nil {
		return store.Row{}, err
	}
	return store.Row{Dsmall: obj.TypeTag(), Dmedium: string(tagsJSON), Dlarge: string(payload)}, nil
}

// Decode unmarshals row's payload into a new T, per spec.md §4.2's
// decode(row) -> obj. T's TypeTag() need not equal row.Dsmall byte-for-byte
// — the registry's fallback chain is consulted to confirm the tag is
// known, the same way DecodeAny resolves a dynamic type.
func Decode[T Entity](c *Codec, row store.Row) (T, error) {
	var zero T
	if _, err := c.registry.Resolve(row.Dsmall); err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal([]byte(row.Dlarge), &out); err != nil {
		return zero, err
	}
	return out, nil
}

// DecodeAny resolves row.Dsmall through the registry and unmarshals into a
// freshly constructed instance of the resolved type, for callers scanning
// a table whose rows mix several type tags (the literal five-column
// "single table partitioned by dsmall" layout of spec.md §6).
func (c *Codec) DecodeAny(row store.Row) (Entity, error) {
	t, err := c.registry.Resolve(row.Dsmall)
	if err != nil {
		return nil, err
	}
	ptr := reflect.New(t)
	if err := json.Unmarshal([]byte(row.Dlarge), ptr.Interface()); err != nil {
		return nil, err
	}
	obj, ok := ptr.Elem().Interface().(Entity)
	if !ok {
		return nil, &ErrUnknownType{Tag: row.Dsmall}
	}
	return obj, nil
}

// DecodeTags unmarshals a Row's tag map (dmedium), returning in-memory
// keys in snake_case per spec.md §4.2's field-naming rule, tolerant of
// either casing on read.
func DecodeTags(row store.Row) (map[string]string, error) {
	if row.Dmedium == "" {
		return map[string]string{}, nil
	}
	var raw map[string]string
	if err := json.Unmarshal([]byte(row.Dmedium), &raw); err != nil {
		return nil, err
	}
	return inMemoryTags(raw), nil
}
