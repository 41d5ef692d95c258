// Package cli builds the freename command line: flags, config file and
// FREENAME_* environment variables resolved through viper into an app.Config.
package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/raysh454/freename/internal/app"
	"github.com/raysh454/freename/internal/webclient"
)

const envPrefix = "FREENAME"

// NewCmd returns the root command. The resolved configuration is decoded into
// cfg before the run starts; opts are passed through to app.New.
func NewCmd(cfg *app.Config, vip *viper.Viper, opts ...app.Option) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "freename",
		Short: "Find unregistered usernames from a wordlist",
		Long: `freename requests a profile page for every name in a wordlist and reports
the names whose page says the profile does not exist. Rate limited requests
are retried after a fixed sleep.`,
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return ReadConfig(cmd, vip)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := Decode(vip, cfg); err != nil {
				return err
			}
			return run(cmd, cfg, opts)
		},
	}

	defaults := app.DefaultConfig()
	flags := cmd.Flags()
	flags.StringP("config", "c", "", "config file (default freename.yaml)")
	flags.StringP("wordlist", "w", defaults.WordlistPath, "newline-delimited list of usernames to check")
	flags.String("url-template", defaults.URLTemplate, "profile lookup URL, {} is replaced by the username")
	flags.String("marker", defaults.Marker, "text on the lookup page that means the username is free")
	flags.Duration("rate-limit-sleep", defaults.RateLimitSleep, "wait after a 429 before retrying")
	flags.Int("max-attempts", defaults.MaxAttempts, "give up on a username after this many rate limited attempts (0 retries forever)")
	flags.Duration("request-timeout", defaults.RequestTimeout, "timeout for a single request")
	flags.String("backend", defaults.Backend, "http backend, one of: nethttp, chromedp")
	flags.String("log-level", defaults.Log.Level, "log level, one of: debug, info, warn, error")
	flags.String("metrics-addr", defaults.Metrics.Addr, "serve prometheus metrics on this address, e.g. :9090")
	flags.StringP("output", "o", defaults.Output, "write free usernames to this file")

	bind := map[string]string{
		"wordlist_path":    "wordlist",
		"url_template":     "url-template",
		"marker":           "marker",
		"rate_limit_sleep": "rate-limit-sleep",
		"max_attempts":     "max-attempts",
		"request_timeout":  "request-timeout",
		"backend":          "backend",
		"log.level":        "log-level",
		"metrics.addr":     "metrics-addr",
		"output":           "output",
	}
	for key, flag := range bind {
		_ = vip.BindPFlag(key, flags.Lookup(flag))
	}

	// keys without a flag
	vip.SetDefault("marker_selector", defaults.MarkerSelector)
	vip.SetDefault("breaker.enabled", defaults.Breaker.Enabled)
	vip.SetDefault("breaker.consecutive_failures", defaults.Breaker.ConsecutiveFailures)
	vip.SetDefault("breaker.open_timeout", defaults.Breaker.OpenTimeout)
	vip.SetDefault("chromedp.headless", defaults.Chromedp.Headless)
	vip.SetDefault("chromedp.idle_after", defaults.Chromedp.IdleAfter)

	cmd.AddCommand(newBackendsCmd())
	return cmd
}

// ReadConfig points vip at the config file and the environment.
func ReadConfig(cmd *cobra.Command, vip *viper.Viper) error {
	if file, _ := cmd.Flags().GetString("config"); file != "" {
		vip.SetConfigFile(file)
	} else {
		vip.SetConfigName("freename")
		vip.AddConfigPath(".")
		vip.AddConfigPath("$HOME")
	}

	vip.SetEnvPrefix(envPrefix)
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vip.AutomaticEnv()

	if err := vip.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// Decode resolves vip into cfg.
func Decode(vip *viper.Viper, cfg *app.Config) error {
	hooks := mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := vip.Unmarshal(cfg, viper.DecodeHook(hooks)); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	return nil
}

func run(cmd *cobra.Command, cfg *app.Config, opts []app.Option) error {
	a, err := app.New(cfg, opts...)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = a.Run(ctx)
	return err
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the available http backends",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			webclient.RegisterDefaultBackends()
			for _, name := range webclient.ListBackends() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

// Execute runs the command line against os.Args and returns the exit code.
func Execute() int {
	if err := NewCmd(&app.Config{}, viper.New()).Execute(); err != nil {
		return 1
	}
	return 0
}
