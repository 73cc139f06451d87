package render

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// shellFileName is the template looked up inside TEMPLATES_DIR.
const shellFileName = "report.html.tmpl"

// reloadDebounce coalesces the event bursts editors and atomic saves
// produce into a single reload.
const reloadDebounce = 500 * time.Millisecond

//go:embed templates/report.html.tmpl
var defaultShell string

// ShellData is what the report shell template is executed with. Body is
// already-rendered HTML and is inserted verbatim.
type ShellData struct {
	Title    string
	Subtitle string
	Client   string
	Date     string
	Body     template.HTML
	Meta     map[string]any
}

// Shell renders the document frame around a report body. With no
// directory configured it serves the embedded template; otherwise it
// parses <dir>/report.html.tmpl and, once Watch is called, re-parses it
// whenever the file changes on disk.
type Shell struct {
	dir    string
	logger *slog.Logger

	mu   sync.RWMutex
	tmpl *template.Template

	watcher  *fsnotify.Watcher
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewShell parses the shell template once. A parse failure at startup
// is fatal; failures during hot reload keep the previous template.
func NewShell(dir string, logger *slog.Logger) (*Shell, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Shell{
		dir:    dir,
		logger: logger,
		done:   make(chan struct{}),
	}
	if dir == "" {
		tmpl, err := template.New(shellFileName).Parse(defaultShell)
		if err != nil {
			return nil, fmt.Errorf("parse embedded shell template: %w", err)
		}
		s.tmpl = tmpl
		return s, nil
	}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Watch starts hot reload of the on-disk template. It is a no-op for
// the embedded template. The directory is watched rather than the file
// so that rename-over saves keep being seen.
func (s *Shell) Watch() error {
	if s.dir == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	if err := watcher.Add(s.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	s.watcher = watcher
	s.wg.Add(1)
	go s.loop()
	s.logger.Info("watching report template", "dir", s.dir)
	return nil
}

func (s *Shell) loop() {
	defer s.wg.Done()
	var pending <-chan time.Time
	for {
		select {
		case <-s.done:
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != shellFileName {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = time.After(reloadDebounce)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("template watcher error", "error", err)
		case <-pending:
			pending = nil
			if err := s.reload(); err != nil {
				s.logger.Error("template reload failed, keeping previous version", "error", err)
				continue
			}
			s.logger.Info("report template reloaded", "dir", s.dir)
		}
	}
}

func (s *Shell) reload() error {
	path := filepath.Join(s.dir, shellFileName)
	raw, err := os.ReadFile(path) //nolint:gosec // G304: path comes from operator config
	if err != nil {
		return fmt.Errorf("read shell template: %w", err)
	}
	tmpl, err := template.New(shellFileName).Parse(string(raw))
	if err != nil {
		return fmt.Errorf("parse shell template: %w", err)
	}
	s.mu.Lock()
	s.tmpl = tmpl
	s.mu.Unlock()
	return nil
}

// Render executes the current shell template.
func (s *Shell) Render(data ShellData) ([]byte, error) {
	s.mu.RLock()
	tmpl := s.tmpl
	s.mu.RUnlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, &RenderError{Stage: "template", Err: err}
	}
	return buf.Bytes(), nil
}

// Close stops the watcher, if any, and waits for the reload loop.
func (s *Shell) Close() error {
	s.stopOnce.Do(func() { close(s.done) })
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}
	s.wg.Wait()
	return err
}
