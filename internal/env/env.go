package env

import (
	"os"
	"path/filepath"
)

// WorkDir returns the default workspace: <UserCacheDir>/.xarch.
func WorkDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userCacheDir, ".xarch"), nil
}

// FormulaPath returns <UserCacheDir>/.xarch/formulas without touching the
// file system.
func FormulaPath() (string, error) {
	workDir, err := WorkDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(workDir, "formulas"), nil
}

// FormulaDir returns FormulaPath, creating it with 0700 permissions when
// missing.
func FormulaDir() (string, error) {
	formulaDir, err := FormulaPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(formulaDir, 0700); err != nil {
		return "", err
	}
	return formulaDir, nil
}

// ConfigFile returns the default config path: <UserConfigDir>/xarch/config.yaml.
func ConfigFile() (string, error) {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(userConfigDir, "xarch", "config.yaml"), nil
}
