package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/config"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/home"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/output"
	"github.com/MdYeasinSamadArnob/vLLM-Display/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
	logLevel     string
	logFormat    string
)

var rootCmd = &cobra.Command{
	Use:   "idscan",
	Short: "Identity document OCR pipeline",
	Long: `idscan extracts text and structured fields from photographed identity
documents using vision-language OCR models.

Each image is cut into overlapping views, every view is read by the primary
OCR model in parallel, and the results are merged into one text. In schema
mode the text is mapped onto the requested fields and a second model checks
the draft against the image.

Jobs arrive on a Redis stream and results are kept for 24 hours.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.idscan/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "idscan home directory (default: ~/.idscan)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "info", "log level: debug, info, warn or error",
	)
	rootCmd.PersistentFlags().StringVar(
		&logFormat, "log-format", "text", "log format: text or json",
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := output.ParseFormat(outputFormat); err != nil {
			return err
		}
		_, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
		return err
	}

	rootCmd.AddCommand(versionCmd)
}

// newLogger builds the process logger. Logs go to w so stdout carries only
// command output.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q (want text or json)", format)
	}
}

// logger returns the logger for cmd. Flags were validated in PersistentPreRunE.
func logger(cmd *cobra.Command) *slog.Logger {
	l, err := newLogger(cmd.ErrOrStderr(), logLevel, logFormat)
	if err != nil {
		return slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return l
}

func printer(cmd *cobra.Command) output.Printer {
	f, _ := output.ParseFormat(outputFormat)
	return output.Printer{W: cmd.OutOrStdout(), Format: f}
}

func getHome() (*home.Dir, error) {
	return home.New(homeDir)
}

// loadConfig reads configuration. Without --config the home directory's
// config.yaml is used when present.
func loadConfig(l *slog.Logger) (*config.Manager, error) {
	path := cfgFile
	if path == "" {
		h, err := getHome()
		if err != nil {
			return nil, err
		}
		if h.ConfigExists() {
			path = h.ConfigPath()
		}
	}
	return config.NewManager(path, l)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
