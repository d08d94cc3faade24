package core

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const archiveSuffix = ".tar.gz"

func modelName(fixedName string) string {
	if fixedName != "" {
		return strings.TrimSuffix(fixedName, archiveSuffix)
	}
	return time.Now().Format("20060102-150405")
}

// PackageModel publishes the model in trainDir to outputDir, either as a
// gzipped tarball or, when uncompressed is set, as a plain directory. It
// returns the path of the published model.
func PackageModel(trainDir, outputDir, fixedName string, uncompressed bool) (string, error) {
	if err := os.MkdirAll(outputDir, os.ModePerm); err != nil {
		return "", fmt.Errorf("error creating output directory %s: %w", outputDir, err)
	}

	name := modelName(fixedName)

	if uncompressed {
		dest := filepath.Join(outputDir, name)
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("error removing existing model %s: %w", dest, err)
		}
		if err := copyDir(trainDir, dest); err != nil {
			return "", fmt.Errorf("error storing uncompressed model: %w", err)
		}
		return dest, nil
	}

	dest := filepath.Join(outputDir, name+archiveSuffix)
	if err := createArchive(trainDir, dest); err != nil {
		return "", fmt.Errorf("error packaging model: %w", err)
	}
	return dest, nil
}

func createArchive(srcDir, dest string) (err error) {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	// Runs after the close below so a partial archive is never left behind.
	defer func() {
		if err != nil {
			os.Remove(dest)
		}
	}()
	defer func() {
		if cerr := file.Close(); err == nil {
			err = cerr
		}
	}()

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)

	err = filepath.WalkDir(srcDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(srcDir, path)
		if err != nil || rel == "." {
			return err
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if d.IsDir() {
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
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}

func copyDir(src, dest string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if d.IsDir() {
			return os.MkdirAll(target, os.ModePerm)
		}

		in, err := os.Open(path)
		if err != nil {
			return err
		}
		defer in.Close()

		out, err := os.Create(target)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, in); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	})
}

// LatestModel returns the most recently modified packaged model in dir, or an
// empty path if there is none. Uncompressed models count when they carry a
// fingerprint.
func LatestModel(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("error listing models in %s: %w", dir, err)
	}

	var latest string
	var latestTime time.Time
	for _, entry := range entries {
		if !isPackagedModel(dir, entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return "", err
		}
		if latest == "" || info.ModTime().After(latestTime) {
			latest = filepath.Join(dir, entry.Name())
			latestTime = info.ModTime()
		}
	}
	return latest, nil
}

func isPackagedModel(dir string, entry fs.DirEntry) bool {
	if !entry.IsDir() {
		return strings.HasSuffix(entry.Name(), archiveSuffix)
	}
	_, err := os.Stat(filepath.Join(dir, entry.Name(), fingerprintFile))
	return err == nil
}

// ReadFingerprint loads the fingerprint stored in a packaged model, which may
// be an archive or an uncompressed directory.
func ReadFingerprint(modelPath string) (Fingerprint, error) {
	var data []byte
	var err error
	if strings.HasSuffix(modelPath, archiveSuffix) {
		data, err = readArchiveFile(modelPath, fingerprintFile)
	} else {
		data, err = os.ReadFile(filepath.Join(modelPath, fingerprintFile))
	}
	if err != nil {
		return Fingerprint{}, fmt.Errorf("error reading fingerprint of %s: %w", modelPath, err)
	}

	var f Fingerprint
	if err := json.Unmarshal(data, &f); err != nil {
		return Fingerprint{}, fmt.Errorf("invalid fingerprint in %s: %w", modelPath, err)
	}
	return f, nil
}

func readArchiveFile(archive, name string) ([]byte, error) {
	file, err := os.Open(archive)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil, fmt.Errorf("%s not found in archive", name)
		}
		if err != nil {
			return nil, err
		}
		if header.Name == name {
			return io.ReadAll(tr)
		}
	}
}
