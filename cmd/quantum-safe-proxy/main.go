// Command quantum-safe-proxy runs the transparent TCP/TLS termination proxy.
// Subcommands mirror cmd/caddy's shape: `run` starts the data plane,
// `reload` does not contact a running instance itself but fails with an error
// naming the admin API request (POST <admin-url>/config/reload) to send
// instead, `validate-config` checks a
// config file without starting anything, and `version` prints build info.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jerryr7/quantum-safe-proxy/admin"
	"github.com/jerryr7/quantum-safe-proxy/config"
	qsp "github.com/jerryr7/quantum-safe-proxy"
	"github.com/jerryr7/quantum-safe-proxy/qserrors"
	"github.com/jerryr7/quantum-safe-proxy/tlsstrategy"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
)

// version is overwritten at build time via -ldflags.
var version = "dev"

var flags struct {
	adminListen string
	auditLog    string
}

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "quantum-safe-proxy",
		Short: "Transparent TCP/TLS termination proxy with PQC-capable certificate selection",
	}
	root.PersistentFlags().StringVar(&flags.adminListen, "admin-listen", "127.0.0.1:2020", "admin API listen address")
	root.PersistentFlags().StringVar(&flags.auditLog, "audit-log", "", "path to the append-only audit log (disabled if empty)")
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(newRunCommand())
	root.AddCommand(newReloadCommand())
	root.AddCommand(newValidateConfigCommand())
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("quantum-safe-proxy", version)
			return nil
		},
	}
}

func newValidateConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-config",
		Short: "Validate a configuration without starting the proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := buildConfig(cmd)
			if err != nil {
				return err
			}
			fmt.Printf("configuration valid: listen=%s target=%s strategy=%s\n",
				pc.ListenAddr(), pc.TargetAddr(), tlsstrategy.Derive(pc).Kind)
			return nil
		},
	}
}

func newReloadCommand() *cobra.Command {
	var target string
	var path string
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Name the admin API request that reloads a running instance (sends nothing)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("reload is an admin-API client operation (POST %s/config/reload); use curl or a dedicated client", target)
		},
	}
	cmd.Flags().StringVar(&target, "admin-url", "http://127.0.0.1:2020", "admin API base URL")
	cmd.Flags().StringVar(&path, "path", "", "config file path for the reload request; this command does not send it")
	return cmd
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the proxy in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProxy(cmd)
		},
	}
}

func buildConfig(cmd *cobra.Command) (*config.ProxyConfig, error) {
	filePath, _ := cmd.Flags().GetString("config-file")
	if filePath == "" {
		filePath = os.Getenv(config.EnvPrefix + "CONFIG_FILE")
	}
	return config.BuildDefault(filePath, cmd.Flags()).Build()
}

func runProxy(cmd *cobra.Command) error {
	undo, err := maxprocs.Set()
	if err != nil {
		return qserrors.Other("set GOMAXPROCS", err)
	}
	defer undo()

	pc, err := buildConfig(cmd)
	if err != nil {
		return qserrors.Configuration("build startup configuration", err)
	}

	log, err := newLogger(pc.LogLevel())
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return qsp.Run(ctx, qsp.Config{
		CV:        pc,
		Admin:     &admin.Config{ListenAddr: flags.adminListen},
		AuditPath: flags.auditLog,
		Log:       log,
	})
}

func newLogger(level string) (*zap.Logger, error) {
	zapLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		zapLevel = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zapLevel
	return cfg.Build()
}
