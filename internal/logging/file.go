package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	logFilePrefix = "mediawatch-"
	logFileSuffix = ".log"
	logDayLayout  = "2006-01-02"
)

// LogFilePattern matches the daily log files written by DailyFile.
const LogFilePattern = logFilePrefix + "*" + logFileSuffix

// DailyLogName returns the log file name used for the UTC day containing t.
func DailyLogName(t time.Time) string {
	return logFilePrefix + t.UTC().Format(logDayLayout) + logFileSuffix
}

// logFileDay parses the day out of a DailyLogName result.
func logFileDay(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
		return time.Time{}, false
	}
	day, err := time.Parse(logDayLayout, strings.TrimSuffix(strings.TrimPrefix(name, logFilePrefix), logFileSuffix))
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// DailyFile appends to one log file per UTC day inside a directory and
// switches files on the first write after midnight. It is safe for
// concurrent use.
type DailyFile struct {
	mu   sync.Mutex
	dir  string
	now  func() time.Time
	day  string
	file *os.File
}

// DailyFileOption configures a DailyFile.
type DailyFileOption func(*DailyFile)

// WithFileClock overrides the clock used to pick the current file.
func WithFileClock(now func() time.Time) DailyFileOption {
	return func(d *DailyFile) {
		if now != nil {
			d.now = now
		}
	}
}

// OpenDailyFile creates dir if needed and opens today's log file.
func OpenDailyFile(dir string, opts ...DailyFileOption) (*DailyFile, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("log directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure log directory: %w", err)
	}
	d := &DailyFile{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.rotateLocked(d.now()); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return 0, os.ErrClosed
	}
	now := d.now()
	if now.UTC().Format(logDayLayout) != d.day {
		if err := d.rotateLocked(now); err != nil {
			return 0, err
		}
	}
	return d.file.Write(p)
}

// Path returns the file currently being written.
func (d *DailyFile) Path() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return filepath.Join(d.dir, logFilePrefix+d.day+logFileSuffix)
}

// Close closes the current file. Later writes fail with os.ErrClosed.
func (d *DailyFile) Close() error {
	if d == nil {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

func (d *DailyFile) rotateLocked(now time.Time) error {
	path := filepath.Join(d.dir, DailyLogName(now))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return fmt.Errorf("open log file %s: %w", path, err)
	}
	if d.file != nil {
		_ = d.file.Close()
	}
	d.file = file
	d.day = now.UTC().Format(logDayLayout)
	return nil
}
