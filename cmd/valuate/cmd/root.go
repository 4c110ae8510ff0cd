package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"FinValue/internal/di"
	"FinValue/pkg/config"
)

var (
	cfgFile  string
	envFile  string
	asJSON   bool
	xlsxPath string
)

var rootCmd = &cobra.Command{
	Use:           "valuate",
	Short:         "Comparable company and discounted cash flow valuations",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file")
	rootCmd.PersistentFlags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	rootCmd.PersistentFlags().StringVar(&xlsxPath, "xlsx", "", "also write the report to this Excel file")

	rootCmd.AddCommand(compsCmd)
	rootCmd.AddCommand(dcfCmd)
}

// valuators loads configuration and builds the use cases.
func valuators() (*di.Valuators, error) {
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("dotenv: %w", err)
	}
	cfg, err := config.LoadWithEnv(cfgFile)
	if err != nil {
		return nil, err
	}
	// keep stdout for the report
	cfg.Log.Output = "stderr"
	cfg.Log.Format = "console"
	return di.InitializeValuators(cfg)
}

// output prints the report as text or JSON and optionally exports it.
func output(w io.Writer, rep any, render func(io.Writer) error, export func(io.Writer) error) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return err
		}
	} else if err := render(w); err != nil {
		return err
	}

	if xlsxPath == "" {
		return nil
	}
	f, err := os.Create(xlsxPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", xlsxPath, err)
	}
	if err := export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("export %s: %w", xlsxPath, err)
	}
	return f.Close()
}

// tickerArg resolves the ticker from the positional argument or the --ticker flag.
func tickerArg(args []string, flag string) (string, error) {
	if len(args) == 0 {
		return flag, nil
	}
	if flag != "" && !strings.EqualFold(flag, args[0]) {
		return "", fmt.Errorf("ticker given twice: %s and --ticker %s", args[0], flag)
	}
	return args[0], nil
}
