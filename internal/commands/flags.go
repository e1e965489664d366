package commands

import (
	"context"
	"os"
	"path/filepath"
	"runtime"

	"github.com/colonyops/erpsync/internal/core/config"
	"github.com/colonyops/erpsync/internal/desk"
)

type Flags struct {
	LogLevel   string
	LogFile    string
	ConfigPath string
	Token      string

	// Config is loaded in the Before hook and available to all commands
	Config *config.Config
}

// OpenApp builds the application for one command run. A token given on the
// command line or in the environment wins over the config file.
func (f *Flags) OpenApp(ctx context.Context, opts desk.Options) (*desk.App, error) {
	app, err := desk.New(ctx, f.Config, opts)
	if err != nil {
		return nil, err
	}
	if f.Token != "" {
		app.SetToken(f.Token)
	}
	return app, nil
}

// DefaultConfigPath returns the default config file path using XDG_CONFIG_HOME.
func DefaultConfigPath() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, _ := os.UserHomeDir()
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "erpsync", "config.yaml")
}

// DefaultLogFile returns the default log file path using the system's state directory.
// On macOS: ~/Library/Logs/erpsync/erpsync.log
// On Linux: $XDG_STATE_HOME/erpsync/erpsync.log (defaults to ~/.local/state/erpsync/erpsync.log)
func DefaultLogFile() string {
	stateHome := os.Getenv("XDG_STATE_HOME")
	if stateHome != "" {
		return filepath.Join(stateHome, "erpsync", "erpsync.log")
	}

	home, _ := os.UserHomeDir()

	if runtime.GOOS == "darwin" {
		return filepath.Join(home, "Library", "Logs", "erpsync", "erpsync.log")
	}

	return filepath.Join(home, ".local", "state", "erpsync", "erpsync.log")
}
