package store

import "fmt"

// Row is the sole physical record every domain entity persists as: the
// five columns described in spec.md §3. dsmall carries the type tag,
// dmedium the JSON tag map, dlarge the JSON payload.
type Row struct {
	ID      string
	Ver     int64
	Dsmall  string
	Dmedium string
	Dlarge  string
}

func (r Row) String() string {
	return fmt.Sprintf("Row(id=%s, ver=%d, dsmall=%s)", r.ID, r.Ver, r.Dsmall)
}

// ColumnMask selects which of the non-key columns a select statement should
// fetch; unselected columns come back zero-valued without a round trip,
// mirroring original_source/database3.py's RowColumns Flag enum.
type ColumnMask uint8

const (
	ColDsmall ColumnMask = 1 << iota
	ColDmedium
	ColDlarge

	ColAll = ColDsmall | ColDmedium | ColDlarge
)

// Has reports whether the mask includes col.
func (m ColumnMask) Has(col ColumnMask) bool { return m&col != 0 }

// IDKind distinguishes the two identifier strategies spec.md §3 allows.
// Every domain table in this repository uses IDKindUUID (SPEC_FULL.md §3);
// IDKindInt exists as a generic store capability exercised only by the
// store package's own tests.
type IDKind int

const (
	IDKindUUID IDKind = iota
	IDKindInt
)
