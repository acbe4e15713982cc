// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the paperfetch CLI.
// Implements: prd001-resolve, prd002-sources, prd003-escalation,
//             prd004-sessions, prd005-batch, prd006-ledger (CLI surface).
// See docs/ARCHITECTURE § Pipeline Interface, § Project Structure.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfetch/internal/secrets"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds API keys loaded from .secrets/ at startup.
var loadedSecrets map[string]string

// secretDefault returns the secret value for key if it exists, or fallback otherwise.
func secretDefault(key, fallback string) string {
	if fallback != "" {
		return fallback
	}
	if v, ok := loadedSecrets[key]; ok {
		return v
	}
	return ""
}

// rootCmd is the base command for the paperfetch CLI.
var rootCmd = &cobra.Command{
	Use:   "paperfetch",
	Short: "Resolve scholarly identifiers to PDFs on disk",
	Long: `paperfetch turns paper identifiers (DOIs, arXiv IDs, PubMed IDs, bare
titles, direct URLs) into verified PDF files. Each identifier is tried
against open-access registries first, then preprint servers, then
institutional proxy or VPN access, escalating from plain HTTP to a real
browser only when a source demands it.

Retrieval is a subcommand: fetch downloads papers, login records an
institutional session for paywalled sources, and report inspects the
acquisition ledger from past runs.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", keys)
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./paperfetch.yaml or ~/.config/paperfetch/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("paperfetch")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "paperfetch"))
		}
	}

	viper.SetEnvPrefix("PAPERFETCH")
	viper.AutomaticEnv()

	// Escalation and headless mode are opt-out; everything else defaults
	// to zero values that the consuming packages resolve themselves.
	viper.SetDefault("browser.enabled", true)
	viper.SetDefault("browser.headless", true)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
