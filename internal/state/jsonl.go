package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/user/forumbot/internal/types"
)

// ExecutionFile is a JSONL-backed append-only execution log.
// Entries are stored per UTC day in executions/<YYYY-MM-DD>.jsonl.
type ExecutionFile struct {
	root  string
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewExecutionFile creates a file-backed execution log rooted at the given directory.
func NewExecutionFile(root string) *ExecutionFile {
	return &ExecutionFile{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

func dayKey(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// getLock returns the per-day mutex, creating one if it doesn't exist.
func (e *ExecutionFile) getLock(day string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	if lock, ok := e.locks[day]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	e.locks[day] = lock
	return lock
}

func (e *ExecutionFile) path(day string) string {
	return filepath.Join(e.root, "executions", day+".jsonl")
}

// AppendExecution adds an entry to the file for the entry's day.
func (e *ExecutionFile) AppendExecution(_ context.Context, entry *types.ExecutionEntry) error {
	if entry.At.IsZero() {
		entry.At = time.Now()
	}
	day := dayKey(entry.At)

	lock := e.getLock(day)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(e.path(day)), 0o755); err != nil {
		return fmt.Errorf("create executions dir: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal execution: %w", err)
	}

	f, err := os.OpenFile(e.path(day), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open executions file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write execution: %w", err)
	}
	return nil
}

// Tail returns the last N entries logged on the given day.
func (e *ExecutionFile) Tail(_ context.Context, day time.Time, limit int) ([]*types.ExecutionEntry, error) {
	key := dayKey(day)
	lock := e.getLock(key)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(e.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open executions file: %w", err)
	}
	defer f.Close()

	var entries []*types.ExecutionEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry types.ExecutionEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal execution: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan executions file: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
