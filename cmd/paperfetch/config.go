// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pdiddy/paperfetch/pkg/types"
)

const (
	defaultTimeout  = 60 * time.Second
	defaultAPIAgent = "paperfetch/0.1"
)

// buildConfig assembles the full configuration from viper, which layers
// bound flags over environment variables over the config file. Zero
// values for pacing and timeouts are left for the consuming packages to
// resolve; only the settings the commands need directly get defaults
// here.
func buildConfig() types.Config {
	cfg := types.Config{
		Acquisition: types.AcquisitionConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("acquisition.timeout"),
				UserAgent: viper.GetString("acquisition.user_agent"),
			},
			PapersDir:    viper.GetString("acquisition.papers_dir"),
			SkipExisting: viper.GetBool("acquisition.skip_existing"),
			Concurrency:  viper.GetInt("acquisition.concurrency"),
			DeepValidate: viper.GetBool("acquisition.deep_validate"),
		},
		Sources: types.SourceConfig{
			ContactEmail:          secretDefault("unpaywall-email", viper.GetString("sources.contact_email")),
			SemanticScholarAPIKey: secretDefault("semantic-scholar-api-key", viper.GetString("sources.semantic_scholar_api_key")),
			RequestInterval:       viper.GetDuration("sources.request_interval"),
			Disabled:              viper.GetStringSlice("sources.disabled"),
		},
		Institutional: types.InstitutionalConfig{
			ProxyURL:       viper.GetString("institutional.proxy_url"),
			VPNMode:        viper.GetBool("institutional.vpn_mode"),
			LoginTestURL:   viper.GetString("institutional.login_test_url"),
			PublisherHosts: viper.GetStringSlice("institutional.publisher_hosts"),
			AuthTimeout:    viper.GetDuration("institutional.auth_timeout"),
			PollInterval:   viper.GetDuration("institutional.poll_interval"),
		},
		Browser: types.BrowserConfig{
			Enabled:         viper.GetBool("browser.enabled"),
			Headless:        viper.GetBool("browser.headless"),
			DownloadDir:     viper.GetString("browser.download_dir"),
			UserAgent:       viper.GetString("browser.user_agent"),
			ChallengeDelay:  viper.GetDuration("browser.challenge_delay"),
			DownloadTimeout: viper.GetDuration("browser.download_timeout"),
			ChallengeHosts:  viper.GetStringSlice("browser.challenge_hosts"),
		},
		Session: types.SessionConfig{
			Path: viper.GetString("session.path"),
		},
		Ledger: types.LedgerConfig{
			Path: viper.GetString("ledger.path"),
		},
	}

	if cfg.Acquisition.Timeout == 0 {
		cfg.Acquisition.Timeout = defaultTimeout
	}
	if cfg.Acquisition.PapersDir == "" {
		cfg.Acquisition.PapersDir = "papers"
	}
	if cfg.Acquisition.UserAgent == "" {
		// Polite-pool registries want a contact in the agent string.
		if cfg.Sources.ContactEmail != "" {
			cfg.Acquisition.UserAgent = fmt.Sprintf("%s (mailto:%s)", defaultAPIAgent, cfg.Sources.ContactEmail)
		} else {
			cfg.Acquisition.UserAgent = defaultAPIAgent
		}
	}
	cfg.Session.Path = expandHome(cfg.Session.Path)
	if cfg.Session.Path == "" {
		cfg.Session.Path = defaultSessionPath()
	}
	cfg.Ledger.Path = expandHome(cfg.Ledger.Path)
	return cfg
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".paperfetch", "session.json")
	}
	return filepath.Join(home, ".paperfetch", "session.json")
}

// expandHome resolves a leading ~/ against the user's home directory so
// config files can use the conventional spelling.
func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
