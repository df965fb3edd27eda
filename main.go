package main

import (
	"fmt"
	"os"

	"sheet2frames/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	cfg    *config.Config
	logger *logrus.Logger

	verbose   bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "sheet2frames",
	Short: "Split sprite sheets into transparent frames with a preview animation",
	Long: `sheet2frames removes the background of sprite sheets (a solid color or a
segmentation model), cuts each sheet into numbered frame PNGs in row-major order
and assembles a looping preview (gif, apng or mp4).

Defaults can be set in a .env file (or the file named by ENV_FILE).`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		format := logFormat
		if !cmd.Flags().Changed("log-format") {
			format = cfg.LogFormat
		}
		logger, err = initLogger(verbose, format)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging (disables the progress bar)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initLogger initializes the logger with appropriate level
func initLogger(debugMode bool, format string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	switch format {
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05",
		})
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", format)
	}

	if debugMode {
		logger.SetLevel(logrus.DebugLevel)
		logger.Debug("Debug logging enabled")
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
	return logger, nil
}
