package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose     bool
	noBanner    bool
	catalogDir  string
	redisAddr   string
	metricsAddr string
)

const banner = `
   _____ _______ _____  ______          __  __    _____  _____ _____            _____  ______ _____
  / ____|__   __|  __ \|  ____|   /\   |  \/  |  / ____|/ ____|  __ \     /\   |  __ \|  ____|  __ \
 | (___    | |  | |__) | |__     /  \  | \  / | | (___ | |    | |__) |   /  \  | |__) | |__  | |__) |
  \___ \   | |  |  _  /|  __|   / /\ \ | |\/| |  \___ \| |    |  _  /   / /\ \ |  ___/|  __| |  _  /
  ____) |  | |  | | \ \| |____ / ____ \| |  | |  ____) | |____| | \ \  / ____ \| |    | |____| | \ \
 |_____/   |_|  |_|  \_\______/_/    \_\_|  |_| |_____/ \_____|_|  \_\/_/    \_\_|    |______|_|  \_\
`

// usageError marks argument mistakes so Execute can exit with code 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func setupLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(h))
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "stream-scraper",
	Short: "A host-scoped, rate-limited web scraping engine",
	Long: `Stream-scraper queues URLs for a single host in an embedded catalog and
fetches them at a controlled rate, either locally with resumable cursor
semantics or cooperatively through a shared Redis stream.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if !noBanner {
			color.New(color.FgGreen).Fprint(os.Stderr, banner+"\n")
		}
		setupLogging(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if _, ok := err.(*usageError); ok {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noBanner, "no-banner", false, "Suppress the startup banner")
	rootCmd.PersistentFlags().StringVar(&catalogDir, "catalog-dir", "", "Embedded catalog location (default ./.rocksdb)")
	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis-addr", "", "Redis address for distributed mode and remote backends")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
}
