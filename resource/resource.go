// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package resource decodes the PE resource directory tree: a recursive
// structure rooted at the .rsrc section's data directory entry, three
// levels deep by Windows convention (type, name, language) though the
// format itself does not bound the depth.
//
// A subtree entry is modeled as a tagged union (Kind: Directory, Data,
// or Cycle) rather than a nilable back-reference, so a cyclic tree -
// which the format permits and malware sometimes exploits to stall
// naive walkers - ends the recursion with an explicit Cycle entry
// instead of silently breaking out of a loop.
package resource

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"

	"github.com/corvidre/pebliss/buffer"
	"github.com/corvidre/pebliss/errlist"
	"github.com/corvidre/pebliss/packed"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// maxAllowedEntries bounds the number of directory entries read per
// table, guarding against a NumberOfNamedEntries+NumberOfIDEntries value
// engineered to exhaust memory.
const maxAllowedEntries = 0x1000

// Kind distinguishes the three shapes a resource tree node can take.
type Kind int

const (
	// KindDirectory holds a nested Directory (another level of the tree).
	KindDirectory Kind = iota
	// KindData holds a leaf DataEntry (the actual resource bytes).
	KindData
	// KindCycle marks an entry whose OffsetToData pointed at a directory
	// already visited elsewhere in the tree: an ancestor, or a subtree
	// another entry already reached.
	KindCycle
)

// ImageResourceDirectory is the fixed-size header of one directory level.
type ImageResourceDirectory struct {
	Characteristics      uint32
	TimeDateStamp        uint32
	MajorVersion         uint16
	MinorVersion         uint16
	NumberOfNamedEntries uint16
	NumberOfIDEntries    uint16
}

// ImageResourceDirectoryEntry is one row following an
// ImageResourceDirectory header.
type ImageResourceDirectoryEntry struct {
	Name         uint32
	OffsetToData uint32
}

// ImageResourceDataEntry describes one unit of raw resource data.
type ImageResourceDataEntry struct {
	OffsetToData uint32
	Size         uint32
	CodePage     uint32
	Reserved     uint32
}

// DataEntry is a decoded leaf: the ImageResourceDataEntry struct plus a
// Buffer over its payload.
type DataEntry struct {
	Struct ImageResourceDataEntry
	Data   buffer.Buffer
}

// Entry is one row of a Directory: either a nested Directory, a leaf
// DataEntry, or a Cycle marker, per Kind.
type Entry struct {
	Struct ImageResourceDirectoryEntry

	// Name is set when this entry is identified by string rather than ID.
	Name string
	// ID is set when Name == "".
	ID uint32

	Kind Kind

	// Directory is valid when Kind == KindDirectory.
	Directory *Directory
	// Data is valid when Kind == KindData.
	Data DataEntry
}

// IsNamed reports whether this entry is identified by name rather than
// numeric ID.
func (e Entry) IsNamed() bool { return e.Name != "" }

// Directory is one level of the resource tree.
type Directory struct {
	Struct  ImageResourceDirectory
	Entries []Entry
	errlist.List
}

// EntryByID returns the entry with the given numeric ID at this level.
func (d *Directory) EntryByID(id uint32) (Entry, bool) {
	for _, e := range d.Entries {
		if !e.IsNamed() && e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// EntryByName returns the entry with the given string name at this
// level.
func (d *Directory) EntryByName(name string) (Entry, bool) {
	for _, e := range d.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// GetDataByID walks path (a sequence of numeric IDs, e.g.
// [RTIcon, iconID]) down the tree, returning the data entry of the first
// child at the final level.
func (d *Directory) GetDataByID(path ...uint32) (DataEntry, bool) {
	cur := d
	for i, id := range path {
		e, ok := cur.EntryByID(id)
		if !ok {
			return DataEntry{}, false
		}
		if i == len(path)-1 {
			if e.Kind == KindData {
				return e.Data, true
			}
			if e.Kind == KindDirectory && len(e.Directory.Entries) > 0 {
				return e.Directory.GetDataByLangIndex(0)
			}
			return DataEntry{}, false
		}
		if e.Kind != KindDirectory {
			return DataEntry{}, false
		}
		cur = e.Directory
	}
	return DataEntry{}, false
}

// GetDataByLangIndex returns the i-th entry's data at this (language)
// level, regardless of its language ID.
func (d *Directory) GetDataByLangIndex(i int) (DataEntry, bool) {
	if i < 0 || i >= len(d.Entries) {
		return DataEntry{}, false
	}
	e := d.Entries[i]
	if e.Kind != KindData {
		return DataEntry{}, false
	}
	return e.Data, true
}

// TryEmplaceByID inserts a new subdirectory entry under id if none
// exists yet, returning the (possibly newly created) child directory.
func (d *Directory) TryEmplaceByID(id uint32) *Directory {
	for i := range d.Entries {
		if !d.Entries[i].IsNamed() && d.Entries[i].ID == id && d.Entries[i].Kind == KindDirectory {
			return d.Entries[i].Directory
		}
	}
	child := &Directory{}
	d.Entries = append(d.Entries, Entry{
		ID:        id,
		Kind:      KindDirectory,
		Directory: child,
	})
	return child
}

// TryEmplaceByName is TryEmplaceByID's string-keyed counterpart.
func (d *Directory) TryEmplaceByName(name string) *Directory {
	for i := range d.Entries {
		if d.Entries[i].Name == name && d.Entries[i].Kind == KindDirectory {
			return d.Entries[i].Directory
		}
	}
	child := &Directory{}
	d.Entries = append(d.Entries, Entry{
		Name:      name,
		Kind:      KindDirectory,
		Directory: child,
	})
	return child
}

// addressMap is the minimal RVA-resolution surface resource.Parse needs;
// *pebliss.AddressMap satisfies it without this package importing the
// root package (which would make an import cycle, since the root wires
// resource.Directory into its own Image type).
type addressMap interface {
	RVAToBuffer(rva, size uint32) (buffer.Buffer, error)
}

// Parse decodes the resource directory tree rooted at rva (the
// IMAGE_DIRECTORY_ENTRY_RESOURCE data directory's VirtualAddress), using
// am to resolve RVAs within the .rsrc section back to file bytes.
// maxEntries caps how many directory entries one level will read before
// giving up; zero uses the package default.
//
// visited is a single set shared across the whole recursion, not copied
// per branch: a directory offset referenced a second time anywhere in
// the tree - whether because it is a genuine cycle or because two
// unrelated entries share a subtree - terminates with a KindCycle entry
// rather than being materialized twice.
func Parse(am addressMap, rva, size, maxEntries uint32) (*Directory, error) {
	if maxEntries == 0 {
		maxEntries = maxAllowedEntries
	}
	return parseLevel(am, rva, rva, map[uint32]struct{}{rva: {}}, maxEntries)
}

func parseLevel(am addressMap, rva, baseRVA uint32, visited map[uint32]struct{}, maxEntries uint32) (*Directory, error) {
	dir := &Directory{}

	hdrBuf, err := am.RVAToBuffer(rva, uint32(binary.Size(ImageResourceDirectory{})))
	if err != nil {
		return nil, err
	}
	if _, err := packed.Deserialize(hdrBuf, 0, &dir.Struct, false); err != nil {
		return nil, err
	}

	entryRVA := rva + uint32(binary.Size(ImageResourceDirectory{}))
	entrySize := uint32(binary.Size(ImageResourceDirectoryEntry{}))

	count := int(dir.Struct.NumberOfNamedEntries) + int(dir.Struct.NumberOfIDEntries)
	if count > int(maxEntries) {
		dir.List.Add(errlist.InvalidNumberOfNamedAndIDEntries, "")
		count = int(maxEntries)
	}

	sorted := true
	havePrev := false
	prevWasID := false
	prevName := ""
	prevID := uint32(0)

	for i := 0; i < count; i++ {
		entBuf, err := am.RVAToBuffer(entryRVA, entrySize)
		if err != nil {
			dir.List.Add(errlist.EntriesPointOutsideDirectory, "")
			break
		}
		var raw ImageResourceDirectoryEntry
		if _, err := packed.Deserialize(entBuf, 0, &raw, false); err != nil {
			dir.List.Add(errlist.InvalidResourceDirectoryEntry, "")
			break
		}

		e := Entry{Struct: raw}

		nameIsString := raw.Name&0x80000000 != 0
		if nameIsString {
			nameOffset := raw.Name & 0x7FFFFFFF
			name, err := readUnicodeResourceName(am, baseRVA+nameOffset)
			if err != nil {
				dir.List.Add(errlist.EntryDoesNotHaveName, "")
			} else {
				e.Name = name
			}
		} else {
			e.ID = raw.Name
		}

		// Windows lays out a directory's entries with all named entries
		// first (ascending by name), followed by all ID entries
		// (ascending by ID). A violation is recorded, not corrected: the
		// tree is still walked and returned in its on-disk order.
		if havePrev {
			switch {
			case nameIsString && prevWasID:
				sorted = false
			case nameIsString && !prevWasID && e.Name < prevName:
				sorted = false
			case !nameIsString && !prevWasID && e.ID < prevID:
				sorted = false
			}
		}
		havePrev = true
		prevWasID = !nameIsString
		prevName = e.Name
		prevID = e.ID

		offsetToDirectory := raw.OffsetToData & 0x7FFFFFFF
		childRVA := baseRVA + offsetToDirectory
		isDirectory := raw.OffsetToData&0x80000000 != 0

		if isDirectory {
			if _, seen := visited[childRVA]; seen {
				e.Kind = KindCycle
			} else {
				visited[childRVA] = struct{}{}

				child, err := parseLevel(am, childRVA, baseRVA, visited, maxEntries)
				if err != nil {
					dir.List.Add(errlist.EntryDoesNotContainDirectory, "")
					break
				}
				e.Kind = KindDirectory
				e.Directory = child
			}
		} else {
			data, err := parseDataEntry(am, childRVA)
			if err != nil {
				dir.List.Add(errlist.EntryDoesNotContainData, "")
				break
			}
			e.Kind = KindData
			e.Data = data
		}

		dir.Entries = append(dir.Entries, e)
		entryRVA += entrySize
	}

	if !sorted {
		dir.List.Add(errlist.UnsortedEntries, "")
	}

	return dir, nil
}

func parseDataEntry(am addressMap, rva uint32) (DataEntry, error) {
	var raw ImageResourceDataEntry
	structSize := uint32(binary.Size(raw))
	buf, err := am.RVAToBuffer(rva, structSize)
	if err != nil {
		return DataEntry{}, err
	}
	if _, err := packed.Deserialize(buf, 0, &raw, false); err != nil {
		return DataEntry{}, err
	}
	data, err := am.RVAToBuffer(raw.OffsetToData, raw.Size)
	if err != nil {
		return DataEntry{Struct: raw}, nil
	}
	return DataEntry{Struct: raw, Data: data}, nil
}

func readUnicodeResourceName(am addressMap, rva uint32) (string, error) {
	lenBuf, err := am.RVAToBuffer(rva, 2)
	if err != nil {
		return "", err
	}
	var lenBytes [2]byte
	if _, err := lenBuf.Read(0, lenBytes[:]); err != nil {
		return "", err
	}
	charCount := uint32(lenBytes[0]) | uint32(lenBytes[1])<<8

	strBuf, err := am.RVAToBuffer(rva+2, charCount*2)
	if err != nil {
		return "", err
	}
	raw, err := buffer.ReadAll(strBuf)
	if err != nil {
		return "", err
	}

	decoded, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
