package services

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/appdraft/appdraft-backend/pkg/domain/entities"
)

// safeJoin resolves an archive entry name against the extraction root and
// fails when the result would escape it.
func safeJoin(root string, name string) (string, error) {
	cleaned := filepath.Clean(filepath.Join(root, name))
	rel, err := filepath.Rel(root, cleaned)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", entities.NewValidationError("archive entry %q escapes the project root", name)
	}
	return cleaned, nil
}

// scanArchive walks every entry of the tar stream and rejects the whole
// archive if any path would resolve outside root. Runs to completion
// before a single file is written.
func scanArchive(r io.Reader, root string) error {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return entities.NewIntegrityError("reading archive", err)
		}
		if _, err := safeJoin(root, header.Name); err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeLink, tar.TypeSymlink:
			// Link targets get the same containment check; a link
			// pointing outside the root defeats the path scan.
			target := header.Linkname
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(header.Name), target)
			}
			if _, err := safeJoin(root, target); err != nil {
				return entities.NewValidationError(
					"archive link %q targets %q outside the project root", header.Name, header.Linkname)
			}
		}
	}
}

// extractArchive materializes the tar stream under root, returning the
// number of regular files written. Callers must have scanned the stream
// first; the per-entry checks here are a second line, not the gate.
func extractArchive(r io.Reader, root string) (int, error) {
	tr := tar.NewReader(r)
	written := 0
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return written, nil
		}
		if err != nil {
			return written, entities.NewIntegrityError("reading archive", err)
		}
		dest, err := safeJoin(root, header.Name)
		if err != nil {
			return written, err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return written, fmt.Errorf("creating directory %s: %w", header.Name, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return written, fmt.Errorf("creating parent of %s: %w", header.Name, err)
			}
			if err := writeFile(dest, tr, os.FileMode(header.Mode)&0o777); err != nil {
				return written, fmt.Errorf("writing %s: %w", header.Name, err)
			}
			written++
		case tar.TypeSymlink:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return written, fmt.Errorf("creating parent of %s: %w", header.Name, err)
			}
			os.Remove(dest)
			if err := os.Symlink(header.Linkname, dest); err != nil {
				return written, fmt.Errorf("linking %s: %w", header.Name, err)
			}
		default:
			// device nodes, fifos and hard links have no place in a
			// web app artifact
			return written, entities.NewValidationError(
				"archive entry %q has unsupported type %d", header.Name, header.Typeflag)
		}
	}
}

func writeFile(dest string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
