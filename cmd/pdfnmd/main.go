// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the pdfnmd CLI, a client for a remote
// PDF/Markdown conversion service.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/pdfnmd/internal/config"
	"github.com/pdiddy/pdfnmd/internal/logging"
	"github.com/pdiddy/pdfnmd/internal/secrets"
	"github.com/pdiddy/pdfnmd/internal/transport"
	"github.com/pdiddy/pdfnmd/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	// cfg is the validated configuration, loaded before any subcommand runs.
	cfg types.ClientConfig
	log = logging.NewDefaultCLILogger()
)

var rootCmd = &cobra.Command{
	Use:   "pdfnmd",
	Short: "Convert PDF to Markdown and back through the pdfnmd service",
	Long: `pdfnmd uploads documents to the conversion service, follows each task
until it finishes, and downloads the results.

Files are validated locally against the configured count and size limits
before anything is uploaded. Uploads run in small batches; every uploaded
file is then polled until it completes, fails or times out.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		logging.SetVerbose(verbose)

		secretsDir, _ := cmd.Flags().GetString("secrets-dir")
		token, err := secrets.APIToken(secretsDir, log)
		if err != nil {
			return err
		}
		if token != "" && viper.GetString("api_token") == "" {
			viper.Set("api_token", token)
			log.Debugf("loaded API token from %s", secretsDir)
		}

		cfg, err = config.Load(viper.GetViper())
		return err
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./pdfnmd.yaml or ~/.config/pdfnmd/pdfnmd.yaml)")
	pf.String("secrets-dir", secrets.DefaultDir, "directory holding the api-token file")
	pf.String("api-url", "", "service base URL including /api")
	pf.String("mode", "", "conversion mode: pdf-to-md or md-to-pdf")
	pf.String("language", "", "Accept-Language sent to the service")
	pf.BoolP("verbose", "v", false, "debug logging")

	_ = viper.BindPFlag("api_url", pf.Lookup("api-url"))
	_ = viper.BindPFlag("mode", pf.Lookup("mode"))
	_ = viper.BindPFlag("language", pf.Lookup("language"))
}

func initConfig() {
	// A .env file only seeds the environment; real variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "warning: reading .env:", err)
	}

	config.SetDefaults(viper.GetViper(), "pdfnmd/"+version)

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("pdfnmd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "pdfnmd"))
		}
	}

	viper.SetEnvPrefix("PDFNMD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// newClient builds the service client from cfg.
func newClient() (*transport.Client, error) {
	return transport.NewClient(cfg, nil, log)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
