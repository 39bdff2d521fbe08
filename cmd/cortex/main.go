// Command cortex runs the local orchestration kernel and ships a small
// client for talking to a running instance.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yaya56vv/cortex/internal/config"
	"github.com/yaya56vv/cortex/internal/storage"
)

// Exit codes: 0 clean, 1 fatal configuration error, 2 unrecoverable storage
// corruption.
const (
	exitOK      = 0
	exitConfig  = 1
	exitStorage = 2
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "cortex",
		Short:         "Local multi-agent orchestration kernel",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.cortex/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newOrchestrateCmd(),
		newConfigCmd(),
		newDoctorCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cortex:", err)
		os.Exit(exitCodeFor(err))
	}
	os.Exit(exitOK)
}

func exitCodeFor(err error) int {
	if storage.IsCorrupt(err) {
		return exitStorage
	}
	var verr *config.VersionError
	if errors.As(err, &verr) {
		return exitConfig
	}
	var cerr *configError
	if errors.As(err, &cerr) {
		return exitConfig
	}
	return exitConfig
}

// configError marks failures that trace back to configuration.
type configError struct{ err error }

func (e *configError) Error() string { return e.err.Error() }
func (e *configError) Unwrap() error { return e.err }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, &configError{err: err}
	}
	return cfg, nil
}
