package tune

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/YuminosukeSato/emigo/pkg/errors"
)

// Store persists candidate results as JSON so an interrupted search can
// resume without re-evaluating finished candidates. Results are keyed by
// candidate index; the file is rewritten atomically on every Put.
type Store struct {
	mu      sync.Mutex
	path    string
	results map[int]Result
}

// storeFile is the on-disk layout.
type storeFile struct {
	Results []Result `json:"results"`
}

// OpenStore loads an existing store file or starts an empty one.
func OpenStore(path string) (*Store, error) {
	s := &Store{path: path, results: make(map[int]Result)}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading search store")
	}

	var file storeFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrapf(err, "parsing search store %s", path)
	}
	for _, res := range file.Results {
		s.results[res.Candidate.Index] = res
	}
	return s, nil
}

// Get returns the stored result for a candidate index, if present.
func (s *Store) Get(index int) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[index]
	return res, ok
}

// Lookup returns the stored result for cand only when the stored candidate
// matches it exactly. A store written under a different seed or parameter
// space holds different hyperparameters at the same index; serving those
// would silently corrupt the search, so a mismatch reads as a miss and the
// candidate is re-evaluated.
func (s *Store) Lookup(cand Candidate) (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[cand.Index]
	if !ok || res.Candidate != cand {
		return Result{}, false
	}
	return res, true
}

// Len returns the number of stored results.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// Put records a result and flushes the store to disk.
func (s *Store) Put(res Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.Candidate.Index] = res
	return s.flushLocked()
}

// flushLocked writes the whole store via a temp-file rename so a crash mid
// write never corrupts the file.
func (s *Store) flushLocked() error {
	indices := make([]int, 0, len(s.results))
	for idx := range s.results {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	file := storeFile{Results: make([]Result, 0, len(indices))}
	for _, idx := range indices {
		file.Results = append(file.Results, s.results[idx])
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encoding search store")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Wrap(err, "writing search store")
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.Wrapf(err, "replacing search store %s", filepath.Base(s.path))
	}
	return nil
}
