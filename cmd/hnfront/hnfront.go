package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rtemka/hnfront/pkg/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	_ = godotenv.Load() // загружаем переменные окружения
	if err := newCommand(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCommand возвращает корневую команду. Флаги имеют приоритет
// над переменными окружения и файлом настроек.
func newCommand(v *viper.Viper) *cobra.Command {
	root := &cobra.Command{
		Use:           "hnfront",
		Short:         "Hacker News front end",
		Long:          "Server-rendered web interface for the Hacker News clone REST API",
		Example:       fmt.Sprintf("  %s serve --addr :8080 --api-url http://localhost:8000", os.Args[0]),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("session-db", "", "session store: empty for memory, sqlite file or postgres:// URL")
	root.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	_ = v.BindPFlag(config.SessionDBKey, root.PersistentFlags().Lookup("session-db"))
	_ = v.BindPFlag(config.LogLevelKey, root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(serveCommand(v))
	root.AddCommand(sessionsCommand(v))

	return root
}

func serveCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), c)
		},
	}

	cmd.Flags().String("addr", ":8080", "address to listen on")
	cmd.Flags().String("api-url", "http://localhost:8000", "REST API base URL")
	cmd.Flags().String("api-proxy-url", "", "optional proxy for REST API calls, e.g. socks5://host:1080")
	cmd.Flags().Bool("cookie-secure", false, "set the Secure attribute on session cookies")
	_ = v.BindPFlag(config.WebAddrKey, cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag(config.APIURLKey, cmd.Flags().Lookup("api-url"))
	_ = v.BindPFlag(config.APIProxyURLKey, cmd.Flags().Lookup("api-proxy-url"))
	_ = v.BindPFlag(config.CookieSecureKey, cmd.Flags().Lookup("cookie-secure"))

	return cmd
}

func sessionsCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Commands for the session store",
	}

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Deletes expired sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(v)
			if err != nil {
				return err
			}
			n, err := purgeSessions(cmd.Context(), c)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d expired sessions deleted\n", n)
			return nil
		},
	}

	cmd.AddCommand(purge)
	return cmd
}
