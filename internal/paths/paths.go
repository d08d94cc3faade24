package paths

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// Default locations used when a path flag is not set.
const (
	DefaultDomainPath = "domain.yml"
	DefaultConfigPath = "config.yml"
	DefaultDataPath   = "data"
	DefaultModelsPath = "models"
)

var ErrPathNotFound = errors.New("path not found")

// ValidatePath resolves candidate to a path that exists on disk. If candidate is
// empty or missing, defaultPath is used when it exists. Otherwise an empty
// path is returned when noneIsValid is set, and an error wrapping
// ErrPathNotFound when it is not.
func ValidatePath(candidate, parameter, defaultPath string, noneIsValid bool) (string, error) {
	if candidate != "" && exists(candidate) {
		return candidate, nil
	}

	if defaultPath != "" && exists(defaultPath) {
		if candidate == "" {
			slog.Debug("parameter not set, using default location", "parameter", parameter, "default", defaultPath)
		} else {
			slog.Debug("path not found, using default location", "parameter", parameter, "path", candidate, "default", defaultPath)
		}
		return defaultPath, nil
	}

	if noneIsValid {
		return "", nil
	}

	if candidate == "" {
		return "", fmt.Errorf("%w: parameter '%s' not set and default location '%s' does not exist", ErrPathNotFound, parameter, defaultPath)
	}
	return "", fmt.Errorf("%w: %s '%s' does not exist and default location '%s' does not exist", ErrPathNotFound, parameter, candidate, defaultPath)
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
