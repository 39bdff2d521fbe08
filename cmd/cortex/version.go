package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/yaya56vv/cortex/internal/kernel"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cortex %s (%s %s/%s)\n",
				kernel.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
