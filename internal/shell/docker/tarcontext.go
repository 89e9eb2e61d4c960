package docker

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// tarBuildContext packages a build context directory into a tar archive
// suitable for the Docker image build endpoint. Paths inside the archive
// are relative to the context root with forward slashes.
func tarBuildContext(dir string) (io.ReadCloser, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, os.ErrInvalid
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	err = filepath.Walk(dir, func(path string, fi os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		// Version control metadata is never needed to build an image.
		if rel == ".git" || strings.HasPrefix(rel, ".git/") {
			if fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		// Sockets, devices and the like cannot be represented in an image
		// build context.
		mode := fi.Mode()
		if !mode.IsRegular() && !fi.IsDir() && mode&os.ModeSymlink == 0 {
			return nil
		}

		link := ""
		if mode&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		header, err := tar.FileInfoHeader(fi, link)
		if err != nil {
			return err
		}
		header.Name = rel
		if fi.IsDir() {
			header.Name += "/"
		}

		if err := tw.WriteHeader(header); err != nil {
			return err
		}

		if !fi.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		tw.Close()
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}

	return io.NopCloser(&buf), nil
}
