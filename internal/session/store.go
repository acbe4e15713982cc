// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session persists authentication state between an interactive
// proxy login and later batch runs. The on-disk file is versioned JSON;
// files written by older releases held a bare cookie name/value map and
// still load.
// Implements: prd004-sessions (R1-R3); docs/ARCHITECTURE § Sessions.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

// formatVersion is the current on-disk schema version. Version 1 files
// carried a flat name->value map with no envelope.
const formatVersion = 2

type sessionFile struct {
	Version       int               `json:"version"`
	Cookies       []types.Cookie    `json:"cookies,omitempty"`
	SimpleCookies map[string]string `json:"simple_cookies,omitempty"`
	Authenticated bool              `json:"authenticated,omitempty"`
	VPNConnected  bool              `json:"vpn_connected,omitempty"`
}

// Store owns the session file. State is read once at construction and
// held in memory; writes replace the file atomically and are serialized
// so concurrent batch workers cannot interleave partial writes.
type Store struct {
	path string

	mu    sync.Mutex
	state types.SessionState
}

// NewStore loads the session file at path. A missing file is not an
// error; it yields an empty, unauthenticated state.
func NewStore(path string) (*Store, error) {
	state, err := load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, state: state}, nil
}

func load(path string) (types.SessionState, error) {
	var state types.SessionState
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("reading session file: %w", err)
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err == nil && f.Version >= formatVersion {
		return types.SessionState{
			Cookies:       f.Cookies,
			SimpleCookies: f.SimpleCookies,
			Authenticated: f.Authenticated,
			VPNConnected:  f.VPNConnected,
		}, nil
	}

	// Older releases wrote a flat name->value map. Treat a loadable map
	// as manual cookies from an unauthenticated session.
	var legacy map[string]string
	if err := json.Unmarshal(data, &legacy); err != nil {
		return state, fmt.Errorf("parsing session file %s: %w", path, err)
	}
	state.SimpleCookies = legacy
	return state, nil
}

// Path returns the location of the session file.
func (s *Store) Path() string {
	return s.path
}

// State returns a copy of the current session state. Mutating the copy
// does not affect the store.
func (s *Store) State() types.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyState(s.state)
}

// Authenticated reports whether an interactive proxy login has been
// recorded. It is never cleared implicitly; stale sessions surface as
// download failures and the operator re-runs login.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Authenticated
}

// VPNConnected reports whether the operator attested to an active
// institutional VPN.
func (s *Store) VPNConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.VPNConnected
}

// Save replaces the session state on disk and in memory. The file is
// written to a temporary name and renamed into place so a crash mid-write
// never leaves a truncated session file.
func (s *Store) Save(state types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f := sessionFile{
		Version:       formatVersion,
		Cookies:       state.Cookies,
		SimpleCookies: state.SimpleCookies,
		Authenticated: state.Authenticated,
		VPNConnected:  state.VPNConnected,
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing session file: %w", err)
	}
	// Cookies are credentials; keep the file owner-only.
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("restricting session file mode: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing session file: %w", err)
	}

	s.state = copyState(state)
	return nil
}

func copyState(state types.SessionState) types.SessionState {
	out := state
	if state.Cookies != nil {
		out.Cookies = append([]types.Cookie(nil), state.Cookies...)
	}
	if state.SimpleCookies != nil {
		out.SimpleCookies = make(map[string]string, len(state.SimpleCookies))
		for k, v := range state.SimpleCookies {
			out.SimpleCookies[k] = v
		}
	}
	return out
}

// CookieHeader renders the Cookie request header for host from the given
// state. Full cookie records are filtered by domain suffix and expiry;
// manual name/value cookies have no domain scope and always apply. The
// result is empty when nothing matches.
func CookieHeader(state types.SessionState, host string) string {
	now := time.Now().Unix()
	var pairs []string
	seen := make(map[string]bool)
	for _, c := range state.Cookies {
		if c.Expires > 0 && c.Expires < now {
			continue
		}
		if !domainMatches(host, c.Domain) {
			continue
		}
		if seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		pairs = append(pairs, c.Name+"="+c.Value)
	}

	names := make([]string, 0, len(state.SimpleCookies))
	for name := range state.SimpleCookies {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		pairs = append(pairs, name+"="+state.SimpleCookies[name])
	}
	return strings.Join(pairs, "; ")
}

// domainMatches implements cookie domain scoping: an empty domain applies
// everywhere, otherwise the host must equal the domain or be a subdomain
// of it.
func domainMatches(host, domain string) bool {
	if domain == "" {
		return true
	}
	domain = strings.TrimPrefix(domain, ".")
	host = strings.ToLower(host)
	domain = strings.ToLower(domain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}
