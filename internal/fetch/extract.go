// SPDX-License-Identifier: MPL-2.0

package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

// Extract unpacks archive into dest, dropping strip leading path components
// from every entry. The format is chosen by file extension: .tar.gz/.tgz,
// .tar.xz/.txz, or .zip.
func Extract(archive, dest string, strip int) error {
	switch {
	case strings.HasSuffix(archive, ".tar.gz"), strings.HasSuffix(archive, ".tgz"):
		return ExtractTarGz(archive, dest, strip)
	case strings.HasSuffix(archive, ".tar.xz"), strings.HasSuffix(archive, ".txz"):
		return ExtractTarXz(archive, dest, strip)
	case strings.HasSuffix(archive, ".zip"):
		return ExtractZip(archive, dest, strip)
	default:
		return fmt.Errorf("fetch: unrecognized archive format: %s", filepath.Base(archive))
	}
}

// ExtractTarGz unpacks a gzip-compressed tar archive.
func ExtractTarGz(archive, dest string, strip int) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("fetch: open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("fetch: open gzip stream: %w", err)
	}
	defer gz.Close()

	return extractTar(tar.NewReader(gz), dest, strip)
}

// ExtractTarXz unpacks an xz-compressed tar archive. The xz stream is
// decompressed into memory first; the decoder does not expose a reader
// cheap enough to interleave with tar entry seeks.
func ExtractTarXz(archive, dest string, strip int) error {
	f, err := os.Open(archive)
	if err != nil {
		return fmt.Errorf("fetch: open archive: %w", err)
	}
	defer f.Close()

	xzr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("fetch: open xz stream: %w", err)
	}

	raw, err := io.ReadAll(xzr)
	if err != nil {
		return fmt.Errorf("fetch: decompress xz stream: %w", err)
	}

	return extractTar(tar.NewReader(bytes.NewReader(raw)), dest, strip)
}

// ExtractZip unpacks a zip archive, restoring POSIX permission bits stored
// in the entry headers (bun ships its binary in a zip with the executable
// bit set this way).
func ExtractZip(archive, dest string, strip int) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("fetch: open zip archive: %w", err)
	}
	defer zr.Close()

	for _, entry := range zr.File {
		rel, ok := stripComponents(entry.Name, strip)
		if !ok {
			continue
		}
		target, err := secureJoin(dest, rel)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("fetch: create directory: %w", err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("fetch: create directory: %w", err)
		}

		mode := entry.Mode().Perm()
		if mode == 0 {
			mode = 0o644
		}

		src, err := entry.Open()
		if err != nil {
			return fmt.Errorf("fetch: open zip entry %s: %w", entry.Name, err)
		}
		err = writeFile(target, src, mode)
		src.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func extractTar(tr *tar.Reader, dest string, strip int) error {
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch: read tar entry: %w", err)
		}

		rel, ok := stripComponents(hdr.Name, strip)
		if !ok {
			continue
		}
		target, err := secureJoin(dest, rel)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("fetch: create directory: %w", err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("fetch: create directory: %w", err)
			}
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			// Node archives link bin/npm into lib/node_modules; keep them.
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("fetch: create directory: %w", err)
			}
			os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return fmt.Errorf("fetch: create symlink %s: %w", rel, err)
			}
		default:
			// Hard links, char devices and pax headers never appear in
			// runtime distributions; skip quietly.
		}
	}
}

func writeFile(target string, src io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("fetch: create file: %w", err)
	}
	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("fetch: write file %s: %w", target, err)
	}
	return nil
}

// stripComponents drops the first n path segments. Entries shorter than n
// segments (typically the wrapping top-level directory itself) are skipped.
func stripComponents(name string, n int) (string, bool) {
	clean := filepath.ToSlash(filepath.Clean(name))
	parts := strings.Split(clean, "/")
	if len(parts) <= n {
		return "", false
	}
	rel := strings.Join(parts[n:], "/")
	if rel == "" || rel == "." {
		return "", false
	}
	return rel, true
}

// secureJoin joins rel under root and rejects entries that would escape it.
func secureJoin(root, rel string) (string, error) {
	target := filepath.Join(root, filepath.FromSlash(rel))
	if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("fetch: archive entry escapes destination: %s", rel)
	}
	return target, nil
}
