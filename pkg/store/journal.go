package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const (
	DefaultJournalFileName = ".yieldctl-history.json"

	// DefaultJournalSize caps how many settled operations are kept
	DefaultJournalSize = 500
)

// Journal persists settled operations to a JSON file
type Journal struct {
	filePath string
	limit    int
	mu       sync.RWMutex
	entries  map[string]OperationStatus
}

var _ Subscriber = (*Journal)(nil)

// journalFile represents the JSON structure on disk
type journalFile struct {
	Operations map[string]OperationStatus `json:"operations"`
}

// NewJournal opens the journal at filePath, defaulting to the home directory
func NewJournal(filePath string) (*Journal, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultJournalFileName)
	}

	j := &Journal{
		filePath: filePath,
		limit:    DefaultJournalSize,
		entries:  make(map[string]OperationStatus),
	}

	// A missing file is created on first save
	if err := j.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return j, nil
}

func (j *Journal) load() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := j.readFile()
	if err != nil {
		return err
	}
	if entries != nil {
		j.entries = entries
	}
	return nil
}

func (j *Journal) readFile() (map[string]OperationStatus, error) {
	data, err := os.ReadFile(j.filePath)
	if err != nil {
		return nil, err
	}

	var file journalFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return file.Operations, nil
}

// mergeLocked picks up runs another process wrote since this journal was
// read. Entries held in memory win for the same ID.
func (j *Journal) mergeLocked() error {
	entries, err := j.readFile()
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	for id, status := range entries {
		if _, ok := j.entries[id]; !ok {
			j.entries[id] = status
		}
	}
	return nil
}

// saveLocked writes the journal; the caller holds j.mu
func (j *Journal) saveLocked() error {
	data, err := json.MarshalIndent(journalFile{Operations: j.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(j.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := j.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}

	if err := os.Rename(tempFile, j.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// OnTransition records settled runs; pending transitions are ignored
func (j *Journal) OnTransition(ctx context.Context, status OperationStatus) error {
	if !status.Settled() {
		return nil
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.mergeLocked(); err != nil {
		return fmt.Errorf("failed to reload history: %w", err)
	}
	j.entries[status.ID] = status
	j.trimLocked()
	return j.saveLocked()
}

// trimLocked drops the oldest entries beyond the size limit
func (j *Journal) trimLocked() {
	if j.limit <= 0 || len(j.entries) <= j.limit {
		return
	}
	ordered := sortedByStart(j.entries)
	for _, status := range ordered[j.limit:] {
		delete(j.entries, status.ID)
	}
}

// List returns journaled operations, most recent first
func (j *Journal) List() []OperationStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return sortedByStart(j.entries)
}

// Get retrieves an operation run by ID
func (j *Journal) Get(id string) (OperationStatus, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	status, exists := j.entries[id]
	if !exists {
		return OperationStatus{}, fmt.Errorf("operation '%s' not found", id)
	}
	return status, nil
}

// Clear removes every entry
func (j *Journal) Clear() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = make(map[string]OperationStatus)
	return j.saveLocked()
}

// Count returns the number of journaled operations
func (j *Journal) Count() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries)
}

// GetFilePath returns the journal file path
func (j *Journal) GetFilePath() string {
	return j.filePath
}

func sortedByStart(entries map[string]OperationStatus) []OperationStatus {
	list := make([]OperationStatus, 0, len(entries))
	for _, status := range entries {
		list = append(list, status)
	}
	sort.Slice(list, func(a, b int) bool {
		if list[a].StartedAt.Equal(list[b].StartedAt) {
			return list[a].ID < list[b].ID
		}
		return list[a].StartedAt.After(list[b].StartedAt)
	})
	return list
}
