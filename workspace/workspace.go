// Package workspace manages the on-disk working area for an analysis run: the
// active dataset copy and the generated analysis scripts. All dataset loads go
// through a single working copy named "current_data" plus the original file
// extension, so prompts and generated code can refer to a stable path.
package workspace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/datalyze-ai/datalyze/core"
	"github.com/datalyze-ai/datalyze/logging"
)

// SupportedExtensions lists the dataset file extensions accepted by Load.
var SupportedExtensions = []string{".csv", ".xlsx", ".xls", ".json", ".parquet"}

// DefaultCodeFilename is used by SaveCode when no filename is given.
const DefaultCodeFilename = "analysis.py"

// Workspace owns two directories: dataDir holds the working copy of the active
// dataset, outputDir holds generated analysis code. A Workspace is safe for
// concurrent use.
type Workspace struct {
	dataDir   string
	outputDir string
	logger    logging.Logger

	mu      sync.Mutex
	current string // absolute path of the active dataset copy, "" if none
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithLogger sets the logger used for workspace operations.
func WithLogger(logger logging.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// New creates a Workspace rooted at the given directories. The directories are
// created lazily on first use, not here, so constructing a Workspace never
// touches the filesystem.
func New(dataDir, outputDir string, opts ...Option) *Workspace {
	w := &Workspace{
		dataDir:   dataDir,
		outputDir: outputDir,
		logger:    logging.NewNoOpLogger(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// DataDir returns the directory holding the active dataset copy.
func (w *Workspace) DataDir() string { return w.dataDir }

// OutputDir returns the directory holding generated analysis code.
func (w *Workspace) OutputDir() string { return w.outputDir }

// Load validates the dataset at path and copies it into the data directory as
// "current_data" plus the original extension. The source must exist before the
// extension is checked, so a missing file always yields a NotFoundError even
// when its extension is unsupported. Loading a second dataset replaces the
// working copy; the most recent load wins.
func (w *Workspace) Load(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", &core.NotFoundError{Path: path}
	}
	if info.IsDir() {
		return "", &core.InvalidInputError{Field: "path", Message: fmt.Sprintf("%s is a directory, not a dataset file", path)}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !isSupported(ext) {
		return "", &core.UnsupportedFormatError{Extension: ext, Supported: SupportedExtensions}
	}

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data dir: %w", err)
	}

	dest := filepath.Join(w.dataDir, "current_data"+ext)
	if err := copyFile(path, dest); err != nil {
		return "", fmt.Errorf("copy dataset: %w", err)
	}

	w.mu.Lock()
	w.current = dest
	w.mu.Unlock()

	w.logger.Info("workspace.dataset.loaded", "source", path, "dest", dest, "bytes", info.Size())

	return dest, nil
}

// CurrentDataset returns the path of the active dataset copy. The boolean is
// false when no dataset has been loaded.
func (w *Workspace) CurrentDataset() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current, w.current != ""
}

// SaveCode writes the given source code into the output directory and returns
// the saved path. A blank filename falls back to DefaultCodeFilename. The
// filename must be a bare name without path separators.
func (w *Workspace) SaveCode(code, filename string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", &core.InvalidInputError{Field: "code", Message: "code must not be empty"}
	}
	if filename == "" {
		filename = DefaultCodeFilename
	}
	if filepath.Base(filename) != filename || filename == "." || filename == ".." {
		return "", &core.InvalidInputError{Field: "filename", Message: fmt.Sprintf("%q must be a plain filename without path separators", filename)}
	}

	if err := os.MkdirAll(w.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	dest := filepath.Join(w.outputDir, filename)
	if err := os.WriteFile(dest, []byte(code), 0o644); err != nil {
		return "", fmt.Errorf("write code file: %w", err)
	}

	w.logger.Info("workspace.code.saved", "path", dest, "bytes", len(code))

	return dest, nil
}

// Cleanup removes both workspace directories and forgets the active dataset.
// It is idempotent: cleaning an already clean workspace succeeds.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	w.current = ""
	w.mu.Unlock()

	for _, dir := range []string{w.dataDir, w.outputDir} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}

	w.logger.Info("workspace.cleanup.done", "data_dir", w.dataDir, "output_dir", w.outputDir)

	return nil
}

func isSupported(ext string) bool {
	for _, s := range SupportedExtensions {
		if ext == s {
			return true
		}
	}
	return false
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
