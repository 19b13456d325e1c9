package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	appName       = "neurodx"
	logFilePrefix = appName + "."
	logFileSuffix = ".zst"
	maxLogFiles   = 10
)

type Paths struct {
	HomeDir     string
	DataDir     string
	ConfigDir   string
	ConfigFile  string
	LogFile     string
	HistoryFile string
}

var defaultPaths *Paths

// NewPaths lays out the standard locations under homeDir. Nothing is created.
func NewPaths(homeDir string) *Paths {
	dataDir := filepath.Join(homeDir, ".local", "share", appName)
	configDir := filepath.Join(homeDir, ".config", appName)

	return &Paths{
		HomeDir:     homeDir,
		DataDir:     dataDir,
		ConfigDir:   configDir,
		ConfigFile:  filepath.Join(configDir, "config.yaml"),
		LogFile:     filepath.Join(dataDir, fmt.Sprintf("%s%d%s", logFilePrefix, os.Getpid(), logFileSuffix)),
		HistoryFile: filepath.Join(dataDir, "history.db"),
	}
}

func ensureDefaultPaths() {
	if defaultPaths == nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			panic(err)
		}

		defaultPaths = NewPaths(homeDir)

		err = os.MkdirAll(defaultPaths.DataDir, 0755)
		if err != nil {
			panic(err)
		}
	}
}

func HomeDir() string {
	ensureDefaultPaths()
	return defaultPaths.HomeDir
}

func DataDir() string {
	ensureDefaultPaths()
	return defaultPaths.DataDir
}

func ConfigFile() string {
	ensureDefaultPaths()
	return defaultPaths.ConfigFile
}

// LogFile is the log for this process: neurodx.<pid>.zst in the data dir.
func LogFile() string {
	ensureDefaultPaths()
	return defaultPaths.LogFile
}

func HistoryFile() string {
	ensureDefaultPaths()
	return defaultPaths.HistoryFile
}

func isLogFile(name string) bool {
	return strings.HasPrefix(name, logFilePrefix) && strings.HasSuffix(name, logFileSuffix)
}

// CleanLogFiles removes every neurodx.*.zst file in the data dir.
func CleanLogFiles() error {
	ensureDefaultPaths()

	entries, err := os.ReadDir(defaultPaths.DataDir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(defaultPaths.DataDir, entry.Name())); err != nil {
			return err
		}
	}

	return nil
}

// RotateLogFiles keeps the 10 most recently modified log files and removes
// the rest.
func RotateLogFiles() error {
	ensureDefaultPaths()

	entries, err := os.ReadDir(defaultPaths.DataDir)
	if err != nil {
		return err
	}

	var logFiles []logFileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isLogFile(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}

		logFiles = append(logFiles, logFileInfo{
			path:    filepath.Join(defaultPaths.DataDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(logFiles) <= maxLogFiles {
		return nil
	}

	// newest first
	sort.Slice(logFiles, func(i, j int) bool {
		return logFiles[i].modTime.After(logFiles[j].modTime)
	})

	for _, old := range logFiles[maxLogFiles:] {
		if err := os.Remove(old.path); err != nil {
			return err
		}
	}

	return nil
}

type logFileInfo struct {
	path    string
	modTime time.Time
}
