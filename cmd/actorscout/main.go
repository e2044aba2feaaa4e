package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "actorscout",
		Short: "Discover, score and validate hosted actors for a user intent",
	}

	root.AddCommand(discoverCMD(), serveCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
