// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Cookie is a browser cookie captured during an interactive login.
// Mirrors the subset of CDP cookie fields the downloader needs to
// replay authenticated requests.
type Cookie struct {
	Name     string `json:"name" yaml:"name"`
	Value    string `json:"value" yaml:"value"`
	Domain   string `json:"domain" yaml:"domain"`
	Path     string `json:"path" yaml:"path"`
	Expires  int64  `json:"expires" yaml:"expires"` // unix seconds; 0 = session cookie
	Secure   bool   `json:"secure" yaml:"secure"`
	HTTPOnly bool   `json:"http_only" yaml:"http_only"`
}

// SessionState is the persistent authentication state shared between
// interactive logins and later batch runs.
type SessionState struct {
	// Cookies holds full cookie records harvested from the browser.
	Cookies []Cookie `json:"cookies" yaml:"cookies"`

	// SimpleCookies holds name/value pairs supplied manually, e.g.
	// pasted from a browser's developer tools.
	SimpleCookies map[string]string `json:"simple_cookies,omitempty" yaml:"simple_cookies,omitempty"`

	// Authenticated records that an interactive proxy login completed.
	Authenticated bool `json:"authenticated" yaml:"authenticated"`

	// VPNConnected records that the operator attested to an active
	// institutional VPN, making publisher sites directly reachable.
	VPNConnected bool `json:"vpn_connected" yaml:"vpn_connected"`
}
