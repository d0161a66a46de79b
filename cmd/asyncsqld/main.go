// Command asyncsqld runs the async SQL engine as a standalone service and
// offers a one-shot exec mode for trying queries against it.
package main

import (
	"fmt"
	"os"
	"strings"

	"asyncsql/internal/config"
	"asyncsql/internal/domain/ports/adapter"
	"asyncsql/internal/infra/db/mysql"
	"asyncsql/internal/infra/db/postgres"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

var (
	cfgPath string
	devMode bool
)

var rootCmd = &cobra.Command{
	Use:           "asyncsqld",
	Short:         "Non-blocking SQL query engine",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&devMode, "dev", false, "enable developer mode (unredacted query logs)")
	rootCmd.AddCommand(serveCmd, execCmd)
	rootCmd.Version = fmt.Sprintf("%s (%s)", version, commit)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newDialer(db config.DatabaseConfig) (adapter.Dialer, error) {
	switch strings.ToLower(db.Driver) {
	case "postgres":
		return postgres.NewDialer(db.ConnectTimeout), nil
	case "mysql":
		return mysql.NewDialer(db.ConnectTimeout), nil
	default:
		return nil, fmt.Errorf("unsupported driver %q", db.Driver)
	}
}

func connParams(db config.DatabaseConfig) adapter.ConnParams {
	return adapter.ConnParams{
		Host:     db.Host,
		User:     db.User,
		Password: db.Password,
		Database: db.Name,
		Port:     db.Port,
	}
}
