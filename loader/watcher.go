package loader

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Watcher polls a source directory and emits files that have stayed in place
// for longer than the settle time.
type Watcher struct {
	SourceDir  string
	ArchiveDir string
	BadDir     string
	Settle     time.Duration
	Interval   time.Duration

	mu         sync.Mutex
	firstSeen  map[string]time.Time
	processing map[string]bool
	now        func() time.Time
}

func NewWatcher(sourceDir, archiveDir, badDir string, settle time.Duration) (*Watcher, error) {
	for _, dir := range []string{sourceDir, archiveDir, badDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Watcher{
		SourceDir:  sourceDir,
		ArchiveDir: archiveDir,
		BadDir:     badDir,
		Settle:     settle,
		Interval:   time.Second,
		firstSeen:  make(map[string]time.Time),
		processing: make(map[string]bool),
		now:        time.Now,
	}, nil
}

// Watch blocks until ctx is done.
func (w *Watcher) Watch(ctx context.Context, files chan<- string) {
	log.Printf("[WATCHER] monitoring folder %s", w.SourceDir)
	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[WATCHER] stopped")
			return
		case <-ticker.C:
			for _, path := range w.Scan() {
				select {
				case files <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

// Scan runs one poll and returns the files ready for processing. Returned
// files are marked as in progress until Done is called.
func (w *Watcher) Scan() []string {
	entries, err := os.ReadDir(w.SourceDir)
	if err != nil {
		log.Printf("[WATCHER] read source directory: %v", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	current := make(map[string]bool, len(entries))
	var ready []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(w.SourceDir, e.Name())
		current[path] = true
		if w.processing[path] {
			continue
		}
		first, seen := w.firstSeen[path]
		if !seen {
			w.firstSeen[path] = now
			log.Printf("[WATCHER] new file detected: %s", path)
			continue
		}
		if now.Sub(first) > w.Settle {
			w.processing[path] = true
			ready = append(ready, path)
		}
	}

	for path := range w.firstSeen {
		if !current[path] {
			delete(w.firstSeen, path)
			delete(w.processing, path)
		}
	}
	return ready
}

// Done moves the file to the archive, or to the bad directory when failed
// is set, and stops tracking it.
func (w *Watcher) Done(path string, failed bool) (string, error) {
	defer func() {
		w.mu.Lock()
		delete(w.processing, path)
		delete(w.firstSeen, path)
		w.mu.Unlock()
	}()

	base := w.ArchiveDir
	if failed {
		base = w.BadDir
	}
	return moveFile(path, filepath.Join(base, w.now().Format("2006-01-02")))
}

func moveFile(path, destDir string) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, filepath.Base(path))
	ext := filepath.Ext(dest)
	stem := strings.TrimSuffix(filepath.Base(dest), ext)
	for n := 1; ; n++ {
		if _, err := os.Stat(dest); os.IsNotExist(err) {
			break
		}
		dest = filepath.Join(destDir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}

	if err := os.Rename(path, dest); err == nil {
		log.Printf("[WATCHER] file moved to %s", dest)
		return dest, nil
	}

	// Rename fails across devices; fall back to copy and remove.
	in, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return "", err
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	in.Close()
	if err := os.Remove(path); err != nil {
		return dest, err
	}
	log.Printf("[WATCHER] file moved to %s", dest)
	return dest, nil
}
