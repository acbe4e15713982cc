package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with registry API requests
	// (e.g. "paperfetch/0.1"). Per prd002-sources R5.2.
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AcquisitionConfig holds settings for the retrieval pipeline.
// Per prd001-resolve R4.1-R4.3, prd005-batch R2.1-R2.3.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	// PapersDir is the base directory for papers (contains raw/, metadata/).
	PapersDir string `json:"papers_dir" yaml:"papers_dir"`

	// SkipExisting short-circuits identifiers whose PDF is already on disk.
	SkipExisting bool `json:"skip_existing" yaml:"skip_existing"`

	// Concurrency is the maximum number of in-flight retrievals in a batch (default 3).
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// DeepValidate runs a full structural validation pass on each stored PDF
	// in addition to the magic-byte check.
	DeepValidate bool `json:"deep_validate" yaml:"deep_validate"`
}

// SourceConfig holds settings shared by the registry-backed source clients.
// Per prd002-sources R5.1-R5.4.
type SourceConfig struct {
	// ContactEmail identifies the operator to polite-pool APIs (Unpaywall
	// requires it; others include it in the User-Agent).
	ContactEmail string `json:"contact_email,omitempty" yaml:"contact_email,omitempty"`

	// SemanticScholarAPIKey is an optional API key for higher rate limits.
	SemanticScholarAPIKey string `json:"semantic_scholar_api_key,omitempty" yaml:"semantic_scholar_api_key,omitempty"`

	// RequestInterval is the minimum delay between consecutive requests to
	// any one source (default 1s).
	RequestInterval time.Duration `json:"request_interval" yaml:"request_interval"`

	// Disabled lists source names excluded from resolution.
	Disabled []string `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// InstitutionalConfig holds settings for proxy- or VPN-based access to
// paywalled publishers. Per prd003-escalation R4.1-R4.6.
type InstitutionalConfig struct {
	// ProxyURL is the EZProxy base URL (e.g. "https://login.ezproxy.example.edu").
	// Empty disables proxy routing.
	ProxyURL string `json:"proxy_url,omitempty" yaml:"proxy_url,omitempty"`

	// VPNMode marks publisher sites as directly reachable through an
	// institutional VPN the operator manages outside this tool.
	VPNMode bool `json:"vpn_mode" yaml:"vpn_mode"`

	// LoginTestURL is the publisher page requested through the proxy to
	// drive the interactive login. Empty selects a built-in default.
	LoginTestURL string `json:"login_test_url,omitempty" yaml:"login_test_url,omitempty"`

	// PublisherHosts lists host substrings recognized as publisher landing
	// pages when deciding whether an interactive login has completed.
	// Empty selects a built-in default list; treat the list as policy, not
	// as a complete registry of publishers.
	PublisherHosts []string `json:"publisher_hosts,omitempty" yaml:"publisher_hosts,omitempty"`

	// AuthTimeout caps the interactive login wait (default 300s).
	AuthTimeout time.Duration `json:"auth_timeout" yaml:"auth_timeout"`

	// PollInterval is the login progress poll cadence (default 2s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// BrowserConfig holds settings for the browser escalation tier.
// Per prd003-escalation R2.1-R2.5.
type BrowserConfig struct {
	// Enabled controls whether escalation to a real browser may run (default true).
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Headless runs the browser without a visible window (default true).
	// Interactive logins always run headful regardless.
	Headless bool `json:"headless" yaml:"headless"`

	// DownloadDir overrides the managed download directory. Empty means a
	// temporary directory next to the output path.
	DownloadDir string `json:"download_dir,omitempty" yaml:"download_dir,omitempty"`

	// UserAgent is the desktop User-Agent presented on direct PDF fetches
	// and browser navigation. Empty selects a built-in desktop string.
	UserAgent string `json:"user_agent,omitempty" yaml:"user_agent,omitempty"`

	// ChallengeDelay is how long a navigated page is given to settle
	// anti-automation challenges before harvesting (default 10s).
	ChallengeDelay time.Duration `json:"challenge_delay" yaml:"challenge_delay"`

	// DownloadTimeout caps the wait for a browser-initiated download to
	// land in the download directory (default 30s).
	DownloadTimeout time.Duration `json:"download_timeout" yaml:"download_timeout"`

	// ChallengeHosts lists host suffixes known to block plain HTTP clients;
	// candidates on these hosts skip the direct tier entirely.
	ChallengeHosts []string `json:"challenge_hosts,omitempty" yaml:"challenge_hosts,omitempty"`
}

// SessionConfig holds settings for the on-disk session store.
// Per prd004-sessions R1.1-R1.3.
type SessionConfig struct {
	// Path is the session file location (e.g. "~/.paperfetch/session.json").
	Path string `json:"path" yaml:"path"`
}

// LedgerConfig holds settings for the retrieval ledger.
// Per prd006-ledger R1.1-R1.2.
type LedgerConfig struct {
	// Path is the sqlite database location. Empty disables recording.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Config groups all paperfetch configuration.
type Config struct {
	Acquisition   AcquisitionConfig   `json:"acquisition" yaml:"acquisition"`
	Sources       SourceConfig        `json:"sources" yaml:"sources"`
	Institutional InstitutionalConfig `json:"institutional" yaml:"institutional"`
	Browser       BrowserConfig       `json:"browser" yaml:"browser"`
	Session       SessionConfig       `json:"session" yaml:"session"`
	Ledger        LedgerConfig        `json:"ledger" yaml:"ledger"`
}
