package appconfig

import (
	"sort"
	"strings"
	"sync"

	"github.com/stroemhansen/yolocam/internal/fsutil"
)

// PlateList is a newline-delimited set of plate texts (blacklist,
// whitelist, or ignorelist), loaded into memory and rewritten atomically
// on every mutation.
type PlateList struct {
	fs   fsutil.FileSystem
	path string

	mu     sync.RWMutex
	plates map[string]struct{}
}

// NewPlateList loads path into memory, tolerating a missing file (an
// empty list is a normal starting state).
func NewPlateList(fs fsutil.FileSystem, path string) *PlateList {
	l := &PlateList{fs: fs, path: path, plates: make(map[string]struct{})}
	if data, err := fs.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				l.plates[line] = struct{}{}
			}
		}
	}
	return l
}

// Contains reports whether plate is present in the list.
func (l *PlateList) Contains(plate string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.plates[plate]
	return ok
}

// All returns the sorted plate texts, used to serve
// <GET_{BLACK,WHITE,IGNORE}LIST>.
func (l *PlateList) All() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.plates))
	for p := range l.plates {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Add inserts plate and persists the list.
func (l *PlateList) Add(plate string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plates[plate] = struct{}{}
	return l.save()
}

// Set replaces the entire list and persists it, used by <SET_*LIST>.
func (l *PlateList) Set(plates []string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.plates = make(map[string]struct{}, len(plates))
	for _, p := range plates {
		p = strings.TrimSpace(p)
		if p != "" {
			l.plates[p] = struct{}{}
		}
	}
	return l.save()
}

func (l *PlateList) save() error {
	all := make([]string, 0, len(l.plates))
	for p := range l.plates {
		all = append(all, p)
	}
	sort.Strings(all)
	return fsutil.AtomicWriteFile(l.fs, l.path, []byte(strings.Join(all, "\n")), 0644)
}
