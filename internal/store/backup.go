package store

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	kerrors "github.com/tawa-dev/tawa/internal/errors"
	"github.com/tawa-dev/tawa/internal/vault"
)

// Backup archives the store directory as a tar.gz: every variable set,
// history log, and the audit trail. Lock files and in-flight temporary
// files are left out. The key file lives outside the store directory, so
// the archive never contains it.
//
// Returns ErrValidation for a memory-backed store and ErrFileNotFound
// when the store has nothing to archive.
func (s *Store) Backup(ctx context.Context, opts BackupOptions) (*BackupResult, error) {
	actor := normalizeActor(opts.Actor)

	fail := func(err error) (*BackupResult, error) {
		s.recordFailure(vault.Scope{}, actor, vault.ActionBackup, "*", err, nil)
		return nil, err
	}

	if s.storeDir == "" {
		return fail(fmt.Errorf("%w: backup requires a file-backed store", kerrors.ErrValidation))
	}

	outputPath := opts.OutputPath
	if outputPath == "" {
		outputPath = fmt.Sprintf("tawa-store-%s.tar.gz", s.now().Format("2006-01-02"))
	}

	// Hold the audit lock so the archived trail is a complete snapshot.
	release, err := s.locks.Audit(ctx)
	if err != nil {
		return fail(err)
	}
	defer release()

	files, err := collectStoreFiles(s.storeDir)
	if err != nil {
		return fail(err)
	}
	if len(files) == 0 {
		return fail(fmt.Errorf("%w: nothing to back up under %s", kerrors.ErrFileNotFound, s.storeDir))
	}

	if err := writeTarGz(outputPath, s.storeDir, files); err != nil {
		return fail(err)
	}

	s.recordSuccess(vault.Scope{}, actor, vault.ActionBackup, "*", map[string]any{
		"archive": outputPath,
		"files":   len(files),
	})
	s.log.Infof("backed up %d files to %s", len(files), outputPath)

	return &BackupResult{OutputPath: outputPath, FileCount: len(files)}, nil
}

// Restore extracts a backup archive into the store directory, replacing
// any files both sides have. Files only in the store survive. Every
// scope the archive touches is locked exclusively for the duration.
//
// Returns ErrFileNotFound if the archive does not exist and
// ErrInvalidArchive if it contains paths outside the store layout.
func (s *Store) Restore(ctx context.Context, opts RestoreOptions) (*RestoreResult, error) {
	actor := normalizeActor(opts.Actor)

	fail := func(err error) (*RestoreResult, error) {
		s.recordFailure(vault.Scope{}, actor, vault.ActionRestore, "*", err, nil)
		return nil, err
	}

	if s.storeDir == "" {
		return fail(fmt.Errorf("%w: restore requires a file-backed store", kerrors.ErrValidation))
	}

	if _, err := os.Stat(opts.ArchivePath); os.IsNotExist(err) {
		return fail(fmt.Errorf("%w: %s", kerrors.ErrFileNotFound, opts.ArchivePath))
	}

	names, err := listArchive(opts.ArchivePath)
	if err != nil {
		return fail(err)
	}

	scopes, touchesAudit, err := classifyArchiveEntries(names)
	if err != nil {
		return fail(err)
	}

	// Lock every affected scope in sorted order, then the audit trail.
	releases := make([]func(), 0, len(scopes)+1)
	defer func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}()
	for _, scope := range scopes {
		release, err := s.locks.Exclusive(ctx, scope.Namespace, scope.Environment)
		if err != nil {
			return fail(err)
		}
		releases = append(releases, release)
	}
	if touchesAudit {
		release, err := s.locks.Audit(ctx)
		if err != nil {
			return fail(err)
		}
		releases = append(releases, release)
	}

	extracted, err := extractArchive(opts.ArchivePath, s.storeDir)
	if err != nil {
		return fail(err)
	}

	s.recordSuccess(vault.Scope{}, actor, vault.ActionRestore, "*", map[string]any{
		"archive": opts.ArchivePath,
		"files":   extracted,
	})
	s.log.Infof("restored %d files from %s", extracted, opts.ArchivePath)

	return &RestoreResult{ArchivePath: opts.ArchivePath, FileCount: extracted}, nil
}

// collectStoreFiles gathers every file under root worth archiving,
// skipping lock files and temporary files from interrupted writes.
func collectStoreFiles(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".lock") || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking store directory: %w", err)
	}
	return files, nil
}

// writeTarGz creates a gzip-compressed tar archive of files, with paths
// stored relative to root.
func writeTarGz(outputPath, root string, files []string) error {
	outFile, err := os.OpenFile(outputPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating archive file: %w", err)
	}
	defer outFile.Close()

	gzWriter := gzip.NewWriter(outFile)
	defer gzWriter.Close()

	tarWriter := tar.NewWriter(gzWriter)
	defer tarWriter.Close()

	for _, path := range files {
		if err := addFileToTar(tarWriter, root, path); err != nil {
			return fmt.Errorf("adding %s to archive: %w", path, err)
		}
	}

	return nil
}

func addFileToTar(tw *tar.Writer, root, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("creating tar header: %w", err)
	}

	relPath, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("getting relative path: %w", err)
	}
	header.Name = filepath.ToSlash(relPath)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("writing tar header: %w", err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("writing file contents: %w", err)
	}

	return nil
}

// listArchive returns the file paths in a tar.gz archive.
func listArchive(archivePath string) ([]string, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid gzip archive", kerrors.ErrInvalidArchive)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	var names []string
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", kerrors.ErrInvalidArchive, err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		names = append(names, header.Name)
	}

	return names, nil
}

// classifyArchiveEntries checks that every archive path fits the store
// layout and returns the scopes the archive touches, sorted.
func classifyArchiveEntries(names []string) ([]vault.Scope, bool, error) {
	seen := make(map[vault.Scope]bool)
	touchesAudit := false

	for _, name := range names {
		clean := filepath.ToSlash(filepath.Clean(name))
		if strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
			return nil, false, fmt.Errorf("%w: path escapes the store: %s", kerrors.ErrInvalidArchive, name)
		}

		switch {
		case clean == "audit/audit.jsonl":
			touchesAudit = true
		case strings.HasPrefix(clean, "data/"):
			parts := strings.Split(clean, "/")
			if len(parts) != 3 {
				return nil, false, fmt.Errorf("%w: unexpected path: %s", kerrors.ErrInvalidArchive, name)
			}
			environment := strings.TrimSuffix(strings.TrimSuffix(parts[2], ".vars.enc"), ".history.jsonl")
			if environment == parts[2] {
				return nil, false, fmt.Errorf("%w: unexpected file: %s", kerrors.ErrInvalidArchive, name)
			}
			seen[vault.Scope{Namespace: parts[1], Environment: environment}] = true
		default:
			return nil, false, fmt.Errorf("%w: unexpected path: %s", kerrors.ErrInvalidArchive, name)
		}
	}

	scopes := make([]vault.Scope, 0, len(seen))
	for scope := range seen {
		scopes = append(scopes, scope)
	}
	sort.Slice(scopes, func(i, j int) bool {
		if scopes[i].Namespace != scopes[j].Namespace {
			return scopes[i].Namespace < scopes[j].Namespace
		}
		return scopes[i].Environment < scopes[j].Environment
	})

	return scopes, touchesAudit, nil
}

// extractArchive writes every archive file under root, overwriting
// existing files. Paths are revalidated against root before writing.
func extractArchive(archivePath, root string) (int, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return 0, fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("%w: not a valid gzip archive", kerrors.ErrInvalidArchive)
	}
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)
	extracted := 0

	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return extracted, fmt.Errorf("%w: %v", kerrors.ErrInvalidArchive, err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}

		targetPath := filepath.Join(root, filepath.FromSlash(header.Name))
		if !strings.HasPrefix(filepath.Clean(targetPath), filepath.Clean(root)+string(os.PathSeparator)) {
			return extracted, fmt.Errorf("%w: path escapes the store: %s", kerrors.ErrInvalidArchive, header.Name)
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0700); err != nil {
			return extracted, fmt.Errorf("creating directory for %s: %w", header.Name, err)
		}

		out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
		if err != nil {
			return extracted, fmt.Errorf("creating %s: %w", header.Name, err)
		}
		if _, err := io.Copy(out, tarReader); err != nil {
			out.Close()
			return extracted, fmt.Errorf("extracting %s: %w", header.Name, err)
		}
		if err := out.Close(); err != nil {
			return extracted, fmt.Errorf("closing %s: %w", header.Name, err)
		}
		extracted++
	}

	return extracted, nil
}
