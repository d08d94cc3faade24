package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	fingerprintFile = "fingerprint.json"

	// ModelFormatVersion is bumped whenever packaged models stop being
	// compatible, so that old models are never reused.
	ModelFormatVersion = "1"
)

var (
	coreConfigKeys = []string{"policies"}
	nluConfigKeys  = []string{"language", "pipeline"}
)

// Fingerprint identifies the inputs a model was trained from.
type Fingerprint struct {
	Version       string `json:"version"`
	Domain        string `json:"domain"`
	ConfigCore    string `json:"config_core"`
	ConfigNlu     string `json:"config_nlu"`
	TrainingFiles string `json:"training_files"`
}

func ComputeFingerprint(domain, config string, trainingFiles []string) (Fingerprint, error) {
	domainHash, err := hashPaths([]string{domain})
	if err != nil {
		return Fingerprint{}, fmt.Errorf("error hashing domain: %w", err)
	}

	configCore, configNlu, err := hashConfig(config)
	if err != nil {
		return Fingerprint{}, err
	}

	filesHash, err := hashPaths(trainingFiles)
	if err != nil {
		return Fingerprint{}, fmt.Errorf("error hashing training files: %w", err)
	}

	return Fingerprint{
		Version:       ModelFormatVersion,
		Domain:        domainHash,
		ConfigCore:    configCore,
		ConfigNlu:     configNlu,
		TrainingFiles: filesHash,
	}, nil
}

func (f Fingerprint) Digest() string {
	data, _ := json.Marshal(f)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Changed returns the names of the sections that differ between f and other.
func (f Fingerprint) Changed(other Fingerprint) []string {
	var changed []string
	if f.Version != other.Version {
		changed = append(changed, "version")
	}
	if f.Domain != other.Domain {
		changed = append(changed, "domain")
	}
	if f.ConfigCore != other.ConfigCore {
		changed = append(changed, "config_core")
	}
	if f.ConfigNlu != other.ConfigNlu {
		changed = append(changed, "config_nlu")
	}
	if f.TrainingFiles != other.TrainingFiles {
		changed = append(changed, "training_files")
	}
	return changed
}

func writeFingerprint(dir string, f Fingerprint) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, fingerprintFile), data, 0644); err != nil {
		return fmt.Errorf("error writing fingerprint: %w", err)
	}
	return nil
}

// hashConfig hashes the core and nlu sections of a config file separately so a
// change to one does not look like a change to the other.
func hashConfig(path string) (string, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", fmt.Errorf("error reading config '%s': %w", path, err)
	}

	var config map[string]any
	if err := yaml.Unmarshal(data, &config); err != nil {
		return "", "", fmt.Errorf("error parsing config '%s': %w", path, err)
	}

	core, err := hashSection(config, coreConfigKeys)
	if err != nil {
		return "", "", err
	}
	nlu, err := hashSection(config, nluConfigKeys)
	if err != nil {
		return "", "", err
	}
	return core, nlu, nil
}

func hashSection(config map[string]any, keys []string) (string, error) {
	section := make(map[string]any, len(keys))
	for _, key := range keys {
		section[key] = config[key]
	}
	// encoding/json sorts map keys, which keeps the hash stable.
	data, err := json.Marshal(section)
	if err != nil {
		return "", fmt.Errorf("error hashing config section %v: %w", keys, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// hashPaths hashes the names and contents of all files under paths. Empty paths
// are skipped.
func hashPaths(paths []string) (string, error) {
	var files []string
	for _, root := range paths {
		if root == "" {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return "", err
		}
	}
	slices.Sort(files)

	h := sha256.New()
	for _, path := range files {
		if err := hashFile(h, path); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func hashFile(h io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	fmt.Fprintf(h, "%s\x00", filepath.ToSlash(path))
	_, err = io.Copy(h, file)
	return err
}
