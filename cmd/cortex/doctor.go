package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yaya56vv/cortex/internal/storage"
	"github.com/yaya56vv/cortex/internal/toolclient"
)

// newDoctorCmd checks the local setup without starting the kernel: the
// config parses, the database opens and migrates, and the configured tool
// services answer their health probes.
func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local setup",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := false

			cfg, err := loadConfig()
			if err != nil {
				fmt.Fprintf(out, "config: FAIL (%v)\n", err)
				return err
			}
			fmt.Fprintln(out, "config: ok")

			db, err := storage.Open(storage.Config{
				Driver:          cfg.Storage.Driver,
				Path:            cfg.Storage.Path,
				DSN:             cfg.Storage.DSN,
				MaxConnections:  cfg.Storage.MaxConnections,
				ConnMaxLifetime: cfg.Storage.ConnMaxLifetime,
			})
			if err != nil {
				fmt.Fprintf(out, "storage: FAIL (%v)\n", err)
				if storage.IsCorrupt(err) {
					return err
				}
				failed = true
			} else {
				fmt.Fprintf(out, "storage: ok (%s)\n", cfg.Storage.Driver)
				db.Close()
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()
			for name, svc := range cfg.Tools.Services {
				client, err := toolclient.NewHTTPClient(toolclient.HTTPConfig{
					Tool:    name,
					BaseURL: svc.URL,
					Timeout: 5 * time.Second,
				})
				if err != nil {
					fmt.Fprintf(out, "tool %s: FAIL (%v)\n", name, err)
					failed = true
					continue
				}
				if h := client.Health(ctx); h.OK {
					fmt.Fprintf(out, "tool %s: ok (%s)\n", name, svc.URL)
				} else {
					fmt.Fprintf(out, "tool %s: unreachable (%s)\n", name, svc.URL)
					failed = true
				}
			}
			if len(cfg.Tools.Services) == 0 {
				fmt.Fprintln(out, "tools: none configured (in-process rag, memory and llm only)")
			}

			for role, rc := range cfg.LLM.Roles {
				fmt.Fprintf(out, "llm role %s: %s/%s\n", role, rc.Provider, rc.Model)
			}

			if failed {
				return fmt.Errorf("doctor found problems")
			}
			fmt.Fprintln(out, "all checks passed")
			return nil
		},
	}
}
