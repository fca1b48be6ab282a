// =============================================================================
// Mission Sheet Converter - Item Set Loader
// =============================================================================
//
// Loads the reference list of valid item identifiers (blocks, items, entities)
// from a newline-delimited text file. Each non-blank line, trimmed of
// surrounding whitespace, is one identifier. Membership is an exact string
// match.
//
// =============================================================================

package itemset

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrEmptyItemList is returned when the item list contains no identifiers.
var ErrEmptyItemList = errors.New("item list contains no item IDs")

// Set is an immutable set of valid item identifiers.
type Set struct {
	items map[string]struct{}
}

// New builds a Set from the given identifiers. Blank entries are ignored.
func New(ids ...string) *Set {
	s := &Set{items: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id != "" {
			s.items[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is a valid item identifier.
func (s *Set) Contains(id string) bool {
	if s == nil {
		return false
	}
	_, ok := s.items[id]
	return ok
}

// Len returns the number of identifiers in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// IDs returns the identifiers in sorted order.
func (s *Set) IDs() []string {
	ids := make([]string, 0, s.Len())
	if s == nil {
		return ids
	}
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads the item list at path.
// A missing or unreadable file and an empty list are both errors.
func Load(path string) (*Set, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open item list %s: %w", path, err)
	}
	defer file.Close()

	set, err := Read(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read item list %s: %w", path, err)
	}
	return set, nil
}

// Read builds a Set from newline-delimited identifiers.
func Read(r io.Reader) (*Set, error) {
	set := &Set{items: make(map[string]struct{})}

	scanner := bufio.NewScanner(r)
	// Item dumps can carry long NBT-style identifiers.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		set.items[line] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if len(set.items) == 0 {
		return nil, ErrEmptyItemList
	}
	return set, nil
}
