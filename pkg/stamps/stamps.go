// Package stamps reads and writes the flat JSON stamp file the bootstrapper
// uses to remember completed installations.
package stamps

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// DefaultPath returns the stamp file location under the user's cache
// directory.
func DefaultPath() (string, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", eris.Wrap(err, "Failed to determine the user cache directory")
	}

	return filepath.Join(cacheDir, "goldminer", "bootstrap.stamps"), nil
}

// Load reads the stamp file at the given path. A missing file yields an
// empty map.
func Load(path string) (map[string]string, error) {
	result := map[string]string{}
	data, err := os.ReadFile(path)
	if err != nil {
		if eris.Is(err, os.ErrNotExist) {
			return result, nil
		}

		return nil, eris.Wrapf(err, "Failed to read stamps file %s", path)
	}

	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, eris.Wrapf(err, "Failed to parse JSON file %s", path)
	}

	return result, nil
}

// Save writes the given stamps to path, creating parent directories as
// needed.
func Save(path string, entries map[string]string) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return eris.Wrap(err, "Failed to serialize stamps")
	}

	err = os.MkdirAll(filepath.Dir(path), os.FileMode(0770))
	if err != nil {
		return eris.Wrapf(err, "Failed to create directory %s", filepath.Dir(path))
	}

	err = os.WriteFile(path, data, os.FileMode(0660))
	if err != nil {
		return eris.Wrapf(err, "Failed to write stamps file %s", path)
	}

	return nil
}
