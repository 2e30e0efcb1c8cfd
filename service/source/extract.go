package source

import (
	"archive/tar"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
)

// Fetch downloads the build archive and extracts it into a new temporary directory
func Fetch(ctx context.Context, fs afs.Service, info *Info) (string, error) {
	if info == nil || info.ArchiveURL == "" {
		return "", fmt.Errorf("archive URL was empty")
	}
	data, err := fs.DownloadWithURL(ctx, info.ArchiveURL)
	if err != nil {
		return "", fmt.Errorf("failed to download %v: %w", info.ArchiveURL, err)
	}
	dir, err := os.MkdirTemp("", "batchtester_firefox")
	if err != nil {
		return "", fmt.Errorf("failed to create extraction dir: %w", err)
	}
	if err = Extract(bytes.NewReader(data), info.ArchiveURL, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

// Extract unpacks a tarball compressed as indicated by name (.tar.bz2, .tar.gz, .tgz or .tar) into dest
func Extract(reader io.Reader, name, dest string) error {
	var err error
	switch {
	case strings.HasSuffix(name, ".tar.bz2"), strings.HasSuffix(name, ".tbz2"):
		reader = bzip2.NewReader(reader)
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		var gz *gzip.Reader
		if gz, err = gzip.NewReader(reader); err != nil {
			return fmt.Errorf("failed to open %v: %w", name, err)
		}
		defer gz.Close()
		reader = gz
	case strings.HasSuffix(name, ".tar"):
	default:
		return fmt.Errorf("unsupported archive format: %v", name)
	}
	tarReader := tar.NewReader(reader)
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read %v: %w", name, err)
		}
		target, err := entryPath(dest, header.Name)
		if err != nil {
			return err
		}
		switch header.Typeflag {
		case tar.TypeDir:
			if err = os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err = writeEntry(tarReader, target, os.FileMode(header.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if err = os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err = os.Symlink(header.Linkname, target); err != nil {
				return err
			}
		}
	}
}

// entryPath maps an archive entry into dest, rejecting entries escaping it
func entryPath(dest, name string) (string, error) {
	target := filepath.Join(dest, filepath.FromSlash(name))
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("illegal archive entry: %v", name)
	}
	return target, nil
}

func writeEntry(reader io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if mode == 0 {
		mode = 0o644
	}
	writer, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err = io.Copy(writer, reader); err != nil {
		_ = writer.Close()
		return err
	}
	return writer.Close()
}
