// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pdiddy/paperfetch/internal/download"
	"github.com/pdiddy/paperfetch/internal/ratelimit"
	"github.com/pdiddy/paperfetch/internal/session"
	"github.com/pdiddy/paperfetch/internal/source"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Record an institutional session for paywalled sources",
	Long: `Login opens a visible browser on the institutional proxy's login page
and waits for you to complete authentication, including any multi-factor
steps. Once a publisher page loads through the proxy, the session
cookies are harvested and saved for later fetch runs.

With --vpn no browser is involved: the command records your attestation
that an institutional VPN is active, which routes paywalled DOIs
directly instead of through the proxy.`,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().Bool("vpn", false, "record an active institutional VPN instead of a proxy login")

	rootCmd.AddCommand(loginCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg := buildConfig()

	store, err := session.NewStore(cfg.Session.Path)
	if err != nil {
		return err
	}

	if vpn, _ := cmd.Flags().GetBool("vpn"); vpn {
		state := store.State()
		state.VPNConnected = true
		if err := store.Save(state); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "VPN attestation recorded in %s; paywalled DOIs resolve directly\n", store.Path())
		return nil
	}

	client := &http.Client{Timeout: cfg.Acquisition.Timeout}
	deps := source.Deps{
		HTTP:       client,
		Limiter:    ratelimit.NewRegistry(cfg.Sources.RequestInterval),
		Downloader: download.NewDownloader(client, store, cfg.Browser, false),
		Session:    store,
		UserAgent:  cfg.Acquisition.UserAgent,
	}
	inst := source.NewInstitutional(deps, cfg.Institutional, cfg.Browser)

	if !inst.AuthenticateInteractive(context.Background(), cmd.OutOrStdout()) {
		return fmt.Errorf("institutional login did not complete")
	}
	return nil
}
