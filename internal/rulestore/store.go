// Package rulestore owns the rule set in force: a single JSON file holding an
// ordered array of rules. Readers take immutable snapshots; writers are
// serialized and commit with validate-then-atomic-swap semantics, leaving a
// timestamped backup of the previous rule set before every committed change.
package rulestore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ketwaroo/appscreener/internal/rules"
)

const backupTimeLayout = "20060102_150405"

// Store manages the persisted rule set.
type Store struct {
	mu      sync.RWMutex
	path    string
	current rules.Set
	logger  *zap.Logger
}

// Open loads the rule set from path. A missing file is seeded with the
// built-in default set. A corrupt file is left on disk untouched and the
// defaults are used in memory; the next committed mutation backs it up.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("rules file path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Store{path: path, logger: logger}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.current = rules.Default()
		if err := s.writeFile(s.current); err != nil {
			return nil, fmt.Errorf("seeding default rules file: %w", err)
		}
		logger.Info("created default rules file",
			zap.String("path", path),
			zap.Int("rules", len(s.current)),
		)
	case err != nil:
		return nil, fmt.Errorf("reading rules file %q: %w", path, err)
	default:
		set, perr := rules.Parse(data)
		if perr == nil {
			perr = set.Validate()
		}
		if perr != nil {
			logger.Warn("rules file is unusable, falling back to built-in defaults",
				zap.String("path", path),
				zap.Error(perr),
			)
			s.current = rules.Default()
			break
		}
		s.current = set
		logger.Info("loaded rules", zap.String("path", path), zap.Int("rules", len(set)))
	}

	return s, nil
}

// Snapshot returns a deep copy of the rule set in force. Evaluations run on
// the snapshot, unaffected by concurrent mutations.
func (s *Store) Snapshot() rules.Set {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Len returns the number of rules in force.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.current)
}

// Get returns a copy of the rule at the given index.
func (s *Store) Get(index int) (rules.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.current) {
		return rules.Rule{}, fmt.Errorf("rule index %d out of range [0,%d)", index, len(s.current))
	}
	return s.current[index : index+1].Clone()[0], nil
}

// Replace swaps in a whole new rule set.
func (s *Store) Replace(set rules.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(set.Clone())
}

// Append adds one rule at the end of the set.
func (s *Store) Append(rule rules.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Clone()
	next = append(next, rule)
	return s.commit(next)
}

// Update replaces the rule at the given index.
func (s *Store) Update(index int, rule rules.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.current) {
		return fmt.Errorf("rule index %d out of range [0,%d)", index, len(s.current))
	}
	next := s.current.Clone()
	next[index] = rule
	return s.commit(next)
}

// Delete removes the rule at the given index.
func (s *Store) Delete(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.current) {
		return fmt.Errorf("rule index %d out of range [0,%d)", index, len(s.current))
	}
	next := s.current.Clone()
	next = append(next[:index], next[index+1:]...)
	return s.commit(next)
}

// Reset restores the built-in default rule set.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(rules.Default())
}

// commit validates the candidate set, backs up the previous file, writes the
// new one atomically and publishes the new snapshot. On any failure the store
// and the file are left unchanged. Callers hold the write lock.
func (s *Store) commit(next rules.Set) error {
	if next == nil {
		next = rules.Set{}
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rule set rejected: %w", err)
	}

	if err := s.backup(); err != nil {
		return err
	}

	if err := s.writeFile(next); err != nil {
		return err
	}

	s.current = next
	s.logger.Info("rule set committed", zap.String("path", s.path), zap.Int("rules", len(next)))
	return nil
}

// backup copies the current rules file aside with a timestamp suffix, enabling
// manual rollback of any committed mutation.
func (s *Store) backup() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading rules file for backup: %w", err)
	}

	backupPath := backupName(s.path, time.Now())
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return fmt.Errorf("writing backup %q: %w", backupPath, err)
	}

	s.logger.Debug("created rules backup", zap.String("path", backupPath))
	return nil
}

// writeFile persists the set atomically: a temp file in the same directory is
// renamed over the target, so readers never observe a partial write.
func (s *Store) writeFile(set rules.Set) error {
	data, err := set.Marshal()
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating rules directory %q: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("creating temp rules file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp rules file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp rules file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing rules file: %w", err)
	}
	return nil
}

func backupName(path string, at time.Time) string {
	base := strings.TrimSuffix(path, filepath.Ext(path))
	return fmt.Sprintf("%s.backup.%s.json", base, at.Format(backupTimeLayout))
}
