package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/gomanhole/internal/version"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "manholed",
	Short: "Interactive console server for live process inspection",
	Long: `manholed serves an interactive JavaScript console over a TCP or
UNIX-domain socket. Connect with any line client (nc, socat) and get a
REPL for inspecting and mutating in-process state.

Executed code is fully trusted: bind to loopback or a permission-guarded
socket path. For consoles into your own application, embed the
gomanhole package instead of running this daemon.`,
}

func init() {
	rootCmd.Version = version.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf("manholed %s\n", version.String()))
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML config file (env MANHOLE_* also applies)")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
