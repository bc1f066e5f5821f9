// Package backup archives plan artifacts before guarded mutations and
// restores them on failure. Archives are tar.gz files tagged with a blake3
// content hash; a manifest in the backup directory records every archive.
package backup

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/planmerge/internal/errors"
	"github.com/felixgeelhaar/planmerge/internal/metrics"
)

// Extraction limits to guard against corrupt or hostile archives.
const (
	// MaxArchiveSize is the maximum total extracted size (1 GB)
	MaxArchiveSize = 1 * 1024 * 1024 * 1024
	// MaxFileCount is the maximum number of files in an archive
	MaxFileCount = 10000
)

// Backup describes one archive. Never mutated after creation; only
// superseded by newer backups and optionally pruned by retention policy.
type Backup struct {
	ID          string    `json:"id"`
	PhaseID     int       `json:"phase_id"`
	CreatedAt   time.Time `json:"created_at"`
	ContentHash string    `json:"content_hash"`
	ArchivePath string    `json:"archive_path"`
	FileCount   int       `json:"file_count"`
	SizeBytes   int64     `json:"size_bytes"`
	// Entries maps archive-internal names to the original paths they
	// restore to.
	Entries []Entry `json:"entries"`
}

// Entry maps one archived file back to its source location.
type Entry struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// RestoreResult summarizes a completed restoration.
type RestoreResult struct {
	BackupID      string `json:"backup_id"`
	FilesRestored int    `json:"files_restored"`
	BytesRestored int64  `json:"bytes_restored"`
}

// Manager creates, lists, restores, and prunes backups under one directory.
type Manager struct {
	dir     string
	metrics *metrics.Metrics
}

// NewManager creates a backup manager rooted at dir.
func NewManager(dir string) *Manager {
	return &Manager{dir: dir, metrics: metrics.GetDefault()}
}

// WithMetrics attaches a metrics instance (tests use private registries).
func (m *Manager) WithMetrics(mx *metrics.Metrics) *Manager {
	m.metrics = mx
	return m
}

// Create archives the given files into a single compressed artifact and
// records it in the manifest. Missing paths fail the backup; a guarded
// mutation must not proceed on a partial snapshot.
func (m *Manager) Create(phaseID int, paths []string) (*Backup, error) {
	if len(paths) == 0 {
		return nil, errors.New(errors.ErrCodeBackupFailed, "no paths given to back up")
	}
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(errors.ErrCodeBackupFailed,
				fmt.Sprintf("cannot back up %s", path), err)
		}
	}

	if err := os.MkdirAll(m.dir, 0755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeBackupFailed, "create backup directory", err)
	}

	now := time.Now().UTC()
	id := fmt.Sprintf("phase%d-%s-%s", phaseID, now.Format("20060102T150405Z"), uuid.NewString()[:8])
	archivePath := filepath.Join(m.dir, id+".tgz")

	entries, err := writeArchive(archivePath, paths)
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, errors.Wrap(errors.ErrCodeBackupFailed, "write archive", err)
	}

	hash, size, err := hashFile(archivePath)
	if err != nil {
		_ = os.Remove(archivePath)
		return nil, errors.Wrap(errors.ErrCodeBackupFailed, "hash archive", err)
	}

	b := &Backup{
		ID:          id,
		PhaseID:     phaseID,
		CreatedAt:   now,
		ContentHash: hash,
		ArchivePath: archivePath,
		FileCount:   len(entries),
		SizeBytes:   size,
		Entries:     entries,
	}

	if err := m.appendManifest(b); err != nil {
		_ = os.Remove(archivePath)
		return nil, err
	}
	if m.metrics != nil {
		m.metrics.Backups.WithLabelValues("true").Inc()
		m.metrics.BackupBytes.Observe(float64(size))
	}
	return b, nil
}

// Restore replaces the original paths with the archive contents. Extraction
// is staged into a temporary directory and verified before any target file
// is touched; a failure at any point leaves the targets as they were.
func (m *Manager) Restore(b *Backup) (*RestoreResult, error) {
	hash, _, err := hashFile(b.ArchivePath)
	if err != nil {
		return nil, errors.NewRestoreFailedError(b.ArchivePath, err)
	}
	if hash != b.ContentHash {
		return nil, errors.New(errors.ErrCodeBackupHashMismatch,
			fmt.Sprintf("archive %s content hash mismatch (expected %s, got %s)",
				b.ArchivePath, b.ContentHash, hash))
	}

	tempDir, err := os.MkdirTemp("", "planmerge-restore-*")
	if err != nil {
		return nil, errors.NewRestoreFailedError(b.ArchivePath, err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	if err := extractArchive(b.ArchivePath, tempDir); err != nil {
		return nil, errors.NewRestoreFailedError(b.ArchivePath, err)
	}

	// Verify the staging area holds every expected entry before touching
	// any target.
	var totalBytes int64
	for _, entry := range b.Entries {
		info, err := os.Stat(filepath.Join(tempDir, entry.Name))
		if err != nil {
			return nil, errors.NewRestoreFailedError(b.ArchivePath,
				fmt.Errorf("archive missing entry %s: %w", entry.Name, err))
		}
		totalBytes += info.Size()
	}

	for _, entry := range b.Entries {
		if err := replaceFile(filepath.Join(tempDir, entry.Name), entry.Path); err != nil {
			return nil, errors.NewRestoreFailedError(b.ArchivePath, err)
		}
	}

	return &RestoreResult{
		BackupID:      b.ID,
		FilesRestored: len(b.Entries),
		BytesRestored: totalBytes,
	}, nil
}

// List returns recorded backups, newest first. With a non-nil phaseID it
// filters to that phase.
func (m *Manager) List(phaseID *int) ([]Backup, error) {
	manifest, err := m.readManifest()
	if err != nil {
		return nil, err
	}

	out := make([]Backup, 0, len(manifest.Backups))
	for i := len(manifest.Backups) - 1; i >= 0; i-- {
		b := manifest.Backups[i]
		if phaseID != nil && b.PhaseID != *phaseID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

// Prune removes all but the newest keep backups for a phase, deleting their
// archives.
func (m *Manager) Prune(phaseID int, keep int) error {
	if keep < 0 {
		return fmt.Errorf("keep must be non-negative, got %d", keep)
	}

	manifest, err := m.readManifest()
	if err != nil {
		return err
	}

	var phaseBackups []Backup
	for _, b := range manifest.Backups {
		if b.PhaseID == phaseID {
			phaseBackups = append(phaseBackups, b)
		}
	}
	if len(phaseBackups) <= keep {
		return nil
	}

	// Manifest order is append order, so the oldest come first.
	drop := make(map[string]bool)
	for _, b := range phaseBackups[:len(phaseBackups)-keep] {
		drop[b.ID] = true
		if err := os.Remove(b.ArchivePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove archive %s: %w", b.ArchivePath, err)
		}
	}

	kept := manifest.Backups[:0]
	for _, b := range manifest.Backups {
		if !drop[b.ID] {
			kept = append(kept, b)
		}
	}
	manifest.Backups = kept
	return m.writeManifest(manifest)
}

// writeArchive creates a tar.gz of the given files. Archive-internal names
// are indexed to stay unique even when basenames collide.
func writeArchive(archivePath string, paths []string) (entries []Entry, err error) {
	outFile, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("create archive file: %w", err)
	}
	defer func() {
		if closeErr := outFile.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close archive file: %w", closeErr)
		}
	}()

	gzWriter := gzip.NewWriter(outFile)
	defer func() {
		if closeErr := gzWriter.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close gzip writer: %w", closeErr)
		}
	}()

	tarWriter := tar.NewWriter(gzWriter)
	defer func() {
		if closeErr := tarWriter.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close tar writer: %w", closeErr)
		}
	}()

	for i, path := range paths {
		name := fmt.Sprintf("%04d_%s", i, filepath.Base(path))
		if writeErr := writeFileToTar(tarWriter, path, name); writeErr != nil {
			return nil, writeErr
		}
		entries = append(entries, Entry{Name: name, Path: path})
	}
	return entries, nil
}

func writeFileToTar(tw *tar.Writer, path, name string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot archive directory %s; list files explicitly", path)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	header := &tar.Header{
		Name:    name,
		Mode:    int64(info.Mode().Perm()),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("write tar header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("write %s to archive: %w", path, err)
	}
	return nil
}

// extractArchive unpacks a tar.gz into destDir with size and count limits.
func extractArchive(archivePath, destDir string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = file.Close() }()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("create gzip reader: %w", err)
	}
	defer func() { _ = gzReader.Close() }()

	tarReader := tar.NewReader(gzReader)
	var totalSize int64
	var fileCount int

	for {
		header, readErr := tarReader.Next()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read tar: %w", readErr)
		}

		fileCount++
		if fileCount > MaxFileCount {
			return fmt.Errorf("archive exceeds %d files", MaxFileCount)
		}
		totalSize += header.Size
		if totalSize > MaxArchiveSize {
			return fmt.Errorf("archive exceeds %d bytes", MaxArchiveSize)
		}
		// Entry names are generated by writeArchive; reject anything that
		// would escape the staging directory.
		target := filepath.Join(destDir, filepath.Base(filepath.Clean(header.Name)))

		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode&0777))
		if err != nil {
			return fmt.Errorf("create %s: %w", target, err)
		}
		if _, err := io.CopyN(out, tarReader, header.Size); err != nil && err != io.EOF {
			_ = out.Close()
			return fmt.Errorf("extract %s: %w", header.Name, err)
		}
		if err := out.Close(); err != nil {
			return fmt.Errorf("close %s: %w", target, err)
		}
	}
	return nil
}

// replaceFile moves staged content over the target via rename, falling back
// to copy when the staging area is on another filesystem.
func replaceFile(staged, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	if err := os.Rename(staged, target); err == nil {
		return nil
	}

	in, err := os.Open(staged)
	if err != nil {
		return fmt.Errorf("open staged file: %w", err)
	}
	defer func() { _ = in.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("create target file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy to target: %w", err)
	}
	return out.Close()
}

// hashFile returns the blake3 hash and size of a file.
func hashFile(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = file.Close() }()

	hasher := blake3.New()
	size, err := io.Copy(hasher, file)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", hasher.Sum(nil)), size, nil
}
