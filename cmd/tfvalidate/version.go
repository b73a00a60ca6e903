package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/tfvalidate/internal/version"
)

func newVersionCmd(out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(out, "tfvalidate version %s\n", version.Full())
		},
	}
}
