package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:          "menagerie",
		Short:        "zoo terrain, area and pathfinding server",
		SilenceUsage: true,
	}
	root.AddCommand(
		ServeCmd(),
		SchemaCmd(),
		CheckCmd(),
	)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
