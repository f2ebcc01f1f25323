// The warpserver command runs the session server and its related tools.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dcrodman/warpserver/internal/core"
)

var (
	ConfigFlag      string
	NoConsoleFlag   bool
	WatchConfigFlag bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "warpserver",
		Short:   "Multiplayer session server and related tools",
		Version: core.Version,
		RunE:    ServerCommand,
	}
	rootCmd.PersistentFlags().StringVarP(&ConfigFlag, "config", "c", "./", "Path to the directory containing the server config file")
	rootCmd.Flags().BoolVar(&NoConsoleFlag, "no-console", false, "Do not read operator commands from stdin")
	rootCmd.Flags().BoolVar(&WatchConfigFlag, "watch", true, "Reload the config file when it changes")

	sniffCmd.Flags().IntVarP(&PortFlag, "port", "p", 8800, "Port the server was listening on when the capture was taken")
	rootCmd.AddCommand(sniffCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
