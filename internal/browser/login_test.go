// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package browser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/paperfetch/pkg/types"
)

func TestHostMatches(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		hosts []string
		want  bool
	}{
		{
			name:  "direct publisher host",
			url:   "https://www.sciencedirect.com/science/article/pii/S0140673620312345",
			hosts: []string{"sciencedirect"},
			want:  true,
		},
		{
			name:  "proxy-rewritten host",
			url:   "https://www-sciencedirect-com.proxy.example.edu/science/article",
			hosts: []string{"sciencedirect"},
			want:  true,
		},
		{
			name:  "dotted fragment matches hyphenated rewrite",
			url:   "https://dl-acm-org.proxy.example.edu/doi/10.1145/1234567",
			hosts: []string{"acm.org"},
			want:  true,
		},
		{
			name:  "case insensitive",
			url:   "https://LINK.SPRINGER.COM/article/10.1007/xyz",
			hosts: []string{"springer"},
			want:  true,
		},
		{
			name:  "login page is not a publisher",
			url:   "https://login.proxy.example.edu/login?url=https://www.sciencedirect.com/",
			hosts: []string{"wiley"},
			want:  false,
		},
		{
			name:  "empty host list never matches",
			url:   "https://www.sciencedirect.com/",
			hosts: nil,
			want:  false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hostMatches(tt.url, tt.hosts); got != tt.want {
				t.Errorf("hostMatches(%q, %v) = %v, want %v", tt.url, tt.hosts, got, tt.want)
			}
		})
	}
}

func TestPollLoginSucceedsWhenPublisherReached(t *testing.T) {
	urls := []string{
		"https://login.proxy.example.edu/login",
		"https://login.proxy.example.edu/menu",
		"https://www-sciencedirect-com.proxy.example.edu/",
	}
	var calls int
	currentURL := func() (string, error) {
		u := urls[calls]
		if calls < len(urls)-1 {
			calls++
		}
		return u, nil
	}

	ok, err := pollLogin(context.Background(), currentURL, []string{"sciencedirect"}, time.Millisecond, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected login to be detected")
	}
	if calls < 2 {
		t.Errorf("expected at least 3 polls, got %d", calls+1)
	}
}

func TestPollLoginTimesOut(t *testing.T) {
	currentURL := func() (string, error) {
		return "https://login.proxy.example.edu/login", nil
	}

	ok, err := pollLogin(context.Background(), currentURL, []string{"sciencedirect"}, time.Millisecond, 20*time.Millisecond)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected timeout to report not-logged-in")
	}
}

func TestPollLoginPropagatesURLError(t *testing.T) {
	currentURL := func() (string, error) {
		return "", errors.New("tab closed")
	}

	_, err := pollLogin(context.Background(), currentURL, []string{"sciencedirect"}, time.Millisecond, time.Second)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "login progress") {
		t.Errorf("error should wrap the URL read failure, got: %v", err)
	}
}

func TestPollLoginContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	currentURL := func() (string, error) {
		return "https://login.proxy.example.edu/login", nil
	}

	_, err := pollLogin(ctx, currentURL, []string{"sciencedirect"}, time.Hour, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoginRequiresProxyURL(t *testing.T) {
	_, err := Login(context.Background(), types.InstitutionalConfig{}, types.BrowserConfig{}, new(strings.Builder))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "proxy_url") {
		t.Errorf("error should point at the missing setting, got: %v", err)
	}
}
