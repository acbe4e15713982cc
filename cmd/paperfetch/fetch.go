// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/paperfetch/internal/download"
	"github.com/pdiddy/paperfetch/internal/ledger"
	"github.com/pdiddy/paperfetch/internal/ratelimit"
	"github.com/pdiddy/paperfetch/internal/resolver"
	"github.com/pdiddy/paperfetch/internal/session"
	"github.com/pdiddy/paperfetch/internal/source"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [identifiers...]",
	Short: "Download papers by DOI, arXiv ID, PubMed ID, URL, or title",
	Long: `Fetch resolves paper identifiers to PDF files. Each identifier is
classified, then offered to the configured sources in priority order:
open-access registries, preprint servers, and finally institutional
access when a proxy or VPN is set up. Retrieved PDFs land in
<output>/raw/ with a YAML metadata sidecar in <output>/metadata/.

Identifiers come from the command line, from --input (a plain list or a
YAML file with an "identifiers:" key), or both. A batch keeps going past
individual failures and prints a summary at the end.`,
	RunE: runFetch,
}

func init() {
	fetchCmd.Flags().String("input", "", "file of identifiers (plain lines or YAML list)")
	fetchCmd.Flags().String("output", "papers", "base directory for papers (contains raw/, metadata/)")
	fetchCmd.Flags().Int("concurrency", 0, "maximum in-flight retrievals (default 3)")
	fetchCmd.Flags().Bool("skip-existing", false, "skip identifiers whose PDF is already on disk")
	fetchCmd.Flags().Duration("timeout", 0, "HTTP request timeout (default 60s)")
	fetchCmd.Flags().Bool("no-browser", false, "disable browser escalation for challenged hosts")
	fetchCmd.Flags().String("ledger", "", "sqlite ledger recording every outcome (empty disables)")

	viper.BindPFlag("acquisition.papers_dir", fetchCmd.Flags().Lookup("output"))
	viper.BindPFlag("acquisition.concurrency", fetchCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("acquisition.skip_existing", fetchCmd.Flags().Lookup("skip-existing"))
	viper.BindPFlag("acquisition.timeout", fetchCmd.Flags().Lookup("timeout"))
	viper.BindPFlag("ledger.path", fetchCmd.Flags().Lookup("ledger"))

	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	raws := append([]string(nil), args...)
	if inputPath, _ := cmd.Flags().GetString("input"); inputPath != "" {
		fromFile, err := readIdentifierFile(inputPath)
		if err != nil {
			return err
		}
		raws = append(raws, fromFile...)
	}
	if len(raws) == 0 {
		return fmt.Errorf("provide one or more identifiers (DOIs, arXiv IDs, PubMed IDs, URLs, or titles) or --input")
	}

	cfg := buildConfig()
	if noBrowser, _ := cmd.Flags().GetBool("no-browser"); noBrowser {
		cfg.Browser.Enabled = false
	}

	store, err := session.NewStore(cfg.Session.Path)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: cfg.Acquisition.Timeout}
	deps := source.Deps{
		HTTP:       client,
		Limiter:    ratelimit.NewRegistry(cfg.Sources.RequestInterval),
		Downloader: download.NewDownloader(client, store, cfg.Browser, cfg.Acquisition.DeepValidate),
		Session:    store,
		UserAgent:  cfg.Acquisition.UserAgent,
	}
	r := resolver.New(source.DefaultClients(cfg, deps), cfg.Acquisition)

	ctx := context.Background()
	var rec resolver.Recorder
	var run *ledger.Run
	if cfg.Ledger.Path != "" {
		led, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			return err
		}
		defer led.Close()
		run, err = led.BeginRun(ctx)
		if err != nil {
			return err
		}
		rec = run
	}

	report := r.RetrieveBatch(ctx, raws, rec, cmd.OutOrStdout())

	if run != nil {
		if err := run.Finish(ctx, report); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: finishing ledger run: %v\n", err)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Ledger run %s recorded in %s\n", run.ID, cfg.Ledger.Path)
		}
	}

	if report.Failed > 0 {
		return fmt.Errorf("%d paper(s) failed retrieval", report.Failed)
	}
	return nil
}

// identifierFile is the YAML shape accepted by --input.
type identifierFile struct {
	Identifiers []string `yaml:"identifiers"`
}

// readIdentifierFile loads identifiers from a file. YAML files carry an
// "identifiers:" list; anything else is one identifier per line with
// blank lines and #-comments ignored.
func readIdentifierFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading identifier file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		var f identifierFile
		if err := yaml.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return f.Identifiers, nil
	}

	var raws []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raws = append(raws, line)
	}
	return raws, nil
}
