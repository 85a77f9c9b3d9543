package eventlog

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const fileTimeLayout = "2006-01-02 15:04:05"

// FileSink appends "[timestamp] message" lines to a text file.
type FileSink struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFile opens path for appending, creating it and its directory with a
// header when missing.
func OpenFile(path string) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if fresh {
		header := fmt.Sprintf("Fleet Management System Log - Started at %s\n%s\n",
			time.Now().Format(fileTimeLayout), strings.Repeat("-", 80))
		if _, err := f.WriteString(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("write log header: %w", err)
		}
	}
	return &FileSink{f: f}, nil
}

func (s *FileSink) WriteEntries(entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := bufio.NewWriter(s.f)
	for _, e := range entries {
		fmt.Fprintf(w, "[%s] %s\n", e.Time.Format(fileTimeLayout), e.Message)
	}
	return w.Flush()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
