// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package browser launches a real browser for pages that defeat plain
// HTTP clients: bot-challenge interstitials, download-only landing pages,
// and interactive proxy logins.
// Implements: prd003-escalation (R2.1-R2.5, R4.1-R4.6);
// docs/ARCHITECTURE § Browser Escalation.
package browser

import (
	"fmt"
	"os/exec"
)

const (
	engineChrome  = "chrome"
	engineEdge    = "edge"
	engineFirefox = "firefox"
)

// Engine is a browser family and the binary names it installs under.
type Engine struct {
	Name     string
	binaries []string
}

// engines lists supported browsers in preference order. Chrome and Edge
// speak the DevTools protocol; Firefox is still detected so the operator
// gets a precise message about why it cannot be driven.
var engines = []Engine{
	{Name: engineChrome, binaries: []string{"google-chrome", "google-chrome-stable", "chromium", "chromium-browser", "chrome"}},
	{Name: engineEdge, binaries: []string{"microsoft-edge", "microsoft-edge-stable", "msedge"}},
	{Name: engineFirefox, binaries: []string{"firefox"}},
}

// executor abstracts binary lookup for testing.
type executor interface {
	LookPath(file string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

var defaultExec executor = &osExecutor{}

// Detected pairs an engine with the binary path it resolved to.
type Detected struct {
	Engine Engine
	Path   string
}

// DetectAll returns every installed engine in preference order. Each
// engine appears at most once, under the first of its binary names found
// on PATH.
func DetectAll() []Detected {
	return detectAll(defaultExec)
}

func detectAll(exec executor) []Detected {
	var found []Detected
	for _, eng := range engines {
		for _, bin := range eng.binaries {
			path, err := exec.LookPath(bin)
			if err != nil {
				continue
			}
			found = append(found, Detected{Engine: eng, Path: path})
			break
		}
	}
	return found
}

// Detect returns the preferred installed engine. Returns an error when
// none of the known binaries is on PATH.
func Detect() (Detected, error) {
	return detect(defaultExec)
}

func detect(exec executor) (Detected, error) {
	found := detectAll(exec)
	if len(found) == 0 {
		return Detected{}, fmt.Errorf(
			"no supported browser found: none of %s, %s, %s is installed",
			engineChrome, engineEdge, engineFirefox,
		)
	}
	return found[0], nil
}
