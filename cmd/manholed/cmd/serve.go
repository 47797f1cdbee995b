package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/itsmostafa/gomanhole"
	"github.com/itsmostafa/gomanhole/internal/config"
	"github.com/itsmostafa/gomanhole/internal/version"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

var (
	addr       string
	socketPath string
	banner     string
	threaded   bool
	timeout    time.Duration
	shared     bool
	exitPolicy string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the console server",
	Long: `Start the console server and run until interrupted. Flags override
values from --config and the MANHOLE_* environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Explicit flags win over file and environment.
		if cmd.Flags().Changed("addr") {
			cfg.Addr = addr
		}
		if cmd.Flags().Changed("socket") {
			cfg.SocketPath = socketPath
		}
		if cmd.Flags().Changed("banner") {
			cfg.Banner = banner
		}
		if cmd.Flags().Changed("threaded") {
			cfg.Threaded = threaded
		}
		if cmd.Flags().Changed("timeout") {
			cfg.Timeout = config.Duration(timeout)
		}
		if cmd.Flags().Changed("shared") {
			cfg.Shared = shared
		}
		if cmd.Flags().Changed("exit-policy") {
			cfg.ExitPolicy = exitPolicy
		}

		srv, err := gomanhole.Start(gomanhole.Options{
			Addr:      cfg.Addr,
			Path:      cfg.SocketPath,
			Banner:    cfg.Banner,
			Threaded:  cfg.Threaded,
			Timeout:   cfg.Timeout.Std(),
			Shared:    cfg.Shared,
			OnExit:    gomanhole.ExitPolicy(cfg.ExitPolicy),
			Namespace: map[string]any{"version": version.String()},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = srv.Close()
		}()

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, titleStyle.Render("manholed "+version.Version))
		if cfg.Addr != "" {
			fmt.Fprintln(out, dimStyle.Render("listening on tcp "+srv.Addr().String()))
		}
		if cfg.SocketPath != "" {
			fmt.Fprintln(out, dimStyle.Render("listening on unix "+cfg.SocketPath))
		}
		mode := "inline (a runaway statement blocks its session)"
		if cfg.Threaded {
			mode = fmt.Sprintf("threaded, timeout %s (timed-out workers are abandoned, not killed)", cfg.Timeout)
		}
		fmt.Fprintln(out, warnStyle.Render("execution: "+mode))

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case <-sigCh:
			fmt.Fprintln(out, dimStyle.Render("shutting down..."))
		case <-srv.Done():
			fmt.Fprintln(out, dimStyle.Render("server stopped by console exit()"))
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&addr, "addr", "127.0.0.1:9999", "TCP listen address (empty to disable)")
	serveCmd.Flags().StringVar(&socketPath, "socket", "", "UNIX-domain socket path (empty to disable)")
	serveCmd.Flags().StringVar(&banner, "banner", "", "banner sent to clients at connect")
	serveCmd.Flags().BoolVar(&threaded, "threaded", false, "run statements on worker goroutines with a bounded wait")
	serveCmd.Flags().DurationVar(&timeout, "timeout", gomanhole.DefaultTimeout, "threaded statement timeout (0 waits forever)")
	serveCmd.Flags().BoolVar(&shared, "shared", false, "share one namespace across all connections")
	serveCmd.Flags().StringVar(&exitPolicy, "exit-policy", "session", "what exit() tears down: session or server")
	rootCmd.AddCommand(serveCmd)
}
