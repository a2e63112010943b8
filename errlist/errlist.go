// Package errlist is the "details form" mix-in: an append-only,
// unique-by-kind error list that the parsed structural types
// (DOSHeaderDetails, RichHeaderDetails, SectionTableDetails,
// CertificateTableDetails, resource.Directory, resource.Group) embed by
// value. NTHeaderDetails, Section and Image carry no list of their own.
// Go has no template mix-in to generate a separate
// "plain" struct without the field, so the field is simply always present
// and zero-cost when empty (a nil slice, no map allocated until the first
// Add). Loaders always populate it; a caller that wants the "plain" form
// just ignores it.
package errlist

// ErrorKind is one of the recoverable structural fault kinds recorded in
// a List rather than returned directly. It is distinct from the fatal
// header errors (invalid DOS magic, bad PE signature, ...), which are
// returned as plain Go errors from the loader entrypoints instead of
// being recorded here.
type ErrorKind int

// Error kinds, grouped by the layer that detects them.
const (
	// Buffer faults.
	BufferReadOutOfBounds ErrorKind = iota
	IOFailure

	// Structural faults.
	InvalidDirectorySize
	InvalidResourceDirectory
	InvalidResourceDirectoryEntry
	InvalidResourceDirectoryEntryName
	InvalidNumberOfNamedAndIDEntries
	EntriesPointOutsideDirectory
	UnsortedEntries
	EntryDoesNotContainDirectory
	EntryDoesNotContainData
	EntryDoesNotHaveName
	EntryDoesNotHaveID
	EntryDoesNotExist

	// Rich-codec faults.
	MissingDansMarker
	MisalignedCompIDRegion
	InvalidRichHeaderOffset

	// Semantic-validation faults (icon/cursor sub-parser).
	InvalidHotspot
	DifferentNumberOfHeadersAndData
)

var kindNames = map[ErrorKind]string{
	BufferReadOutOfBounds:             "buffer_read_out_of_bounds",
	IOFailure:                         "io_failure",
	InvalidDirectorySize:              "invalid_directory_size",
	InvalidResourceDirectory:          "invalid_resource_directory",
	InvalidResourceDirectoryEntry:     "invalid_resource_directory_entry",
	InvalidResourceDirectoryEntryName: "invalid_resource_directory_entry_name",
	InvalidNumberOfNamedAndIDEntries:  "invalid_number_of_named_and_id_entries",
	EntriesPointOutsideDirectory:      "entries_point_outside_directory",
	UnsortedEntries:                   "unsorted_entries",
	EntryDoesNotContainDirectory:      "entry_does_not_contain_directory",
	EntryDoesNotContainData:           "entry_does_not_contain_data",
	EntryDoesNotHaveName:              "entry_does_not_have_name",
	EntryDoesNotHaveID:                "entry_does_not_have_id",
	EntryDoesNotExist:                 "entry_does_not_exist",
	MissingDansMarker:                 "missing_dans_marker",
	MisalignedCompIDRegion:            "misaligned_compid_region",
	InvalidRichHeaderOffset:           "invalid_rich_header_offset",
	InvalidHotspot:                    "invalid_hotspot",
	DifferentNumberOfHeadersAndData:   "different_number_of_headers_and_data",
}

// String returns the stable kind name used in logs and error messages.
func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown_error_kind"
}

// Entry is one recorded fault: its kind plus optional free-form context
// (e.g. the offset or RVA that triggered it).
type Entry struct {
	Kind    ErrorKind
	Context string
}

// Error implements the error interface so an Entry can be wrapped or
// logged like any other Go error.
func (e Entry) Error() string {
	if e.Context == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Context
}

// List is the append-only, unique-by-kind error accumulator.
type List struct {
	entries []Entry
	seen    map[ErrorKind]struct{}
}

// Add records a fault. Re-adding a kind already present is a no-op: entries
// are unique-keyed by kind within a single List.
func (l *List) Add(kind ErrorKind, context string) {
	if l.seen == nil {
		l.seen = make(map[ErrorKind]struct{})
	}
	if _, ok := l.seen[kind]; ok {
		return
	}
	l.seen[kind] = struct{}{}
	l.entries = append(l.entries, Entry{Kind: kind, Context: context})
}

// HasErrors reports whether any fault has been recorded.
func (l *List) HasErrors() bool {
	return len(l.entries) > 0
}

// Errors returns a defensive copy of the recorded faults, in the order
// they were added.
func (l *List) Errors() []Entry {
	if len(l.entries) == 0 {
		return nil
	}
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Merge appends every entry of other into l, still respecting
// uniqueness-by-kind. other is left unchanged.
func (l *List) Merge(other *List) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		l.Add(e.Kind, e.Context)
	}
}
