package main

import (
	"fmt"
	"os"
	"path/filepath"

	"azul/internal/app"
	"azul/internal/config"
	"azul/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	version     = "0.1.0"
	cfgFile     string
	model       string
	provider    string
	preset      string
	logLevel    string
	autoApprove bool
	noRAG       bool
	noColor     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "azul [dir]",
		Short: "Local coding assistant that reads, edits and runs your project",
		Long: `Azul is a terminal coding assistant backed by a local Ollama model or Gemini.
It answers requests by calling tools on your project: reading and writing
files, applying diffs, running commands. Every change goes through an
approval prompt unless you opt out.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runApp,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/azul/config.yaml)")
	rootCmd.Flags().StringVar(&model, "model", "", "model to use")
	rootCmd.Flags().StringVar(&provider, "provider", "", "model provider: ollama or gemini")
	rootCmd.Flags().StringVar(&preset, "preset", "", "model preset (local, local-small, gemini-flash, gemini-pro)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().BoolVar(&autoApprove, "auto-approve", false, "apply changes without asking")
	rootCmd.Flags().BoolVar(&noRAG, "no-rag", false, "disable code retrieval")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colors and markdown rendering")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("azul version %s\n", version)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runApp(cmd *cobra.Command, args []string) error {
	// .env is optional
	_ = godotenv.Load()

	path := cfgFile
	if path == "" {
		path = config.GetConfigPath()
	}
	cfg, err := config.LoadFrom(path)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg.Version = version

	if preset != "" {
		cfg.Model.Preset = preset
	}
	if model != "" {
		// an explicit model wins over the preset's
		cfg.Model.Preset = ""
		cfg.Model.Name = model
		if provider == "" {
			cfg.Model.Provider = config.DetectProvider(model)
		}
	}
	if provider != "" {
		cfg.Model.Provider = provider
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if cmd.Flags().Changed("auto-approve") {
		cfg.Permission.AutoApprove = autoApprove
	}
	if noRAG {
		cfg.RAG.Enabled = false
	}
	if noColor {
		cfg.UI.Color = false
	}

	if err := config.NormalizeConfig(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logging.EnableFileLogging(config.ConfigDir(), logging.ParseLevel(cfg.Logging.Level)); err != nil {
		fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
	}
	defer logging.Close()

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}
	if len(args) == 1 {
		workDir, err = filepath.Abs(args[0])
		if err != nil {
			return err
		}
	}

	application, err := app.New(cfg, workDir, app.Options{
		In:      os.Stdin,
		Out:     os.Stdout,
		Color:   term.IsTerminal(int(os.Stdout.Fd())),
		Version: version,
	})
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	return application.Run()
}
