// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// urlRule describes what a service URL setting may contain.
type urlRule struct {
	env string

	// allowPath permits a path prefix, e.g. "/api/v3" on GitHub Enterprise.
	allowPath bool
}

// check parses raw as an http(s) URL with a host and no query or fragment.
func (r urlRule) check(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is not a valid URL: %w", r.env, err)
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return fmt.Errorf("%s scheme must be http or https, got %q", r.env, u.Scheme)
	case u.Host == "":
		return fmt.Errorf("%s host is required", r.env)
	case u.RawQuery != "" || u.Fragment != "":
		return fmt.Errorf("%s must not contain a query or fragment", r.env)
	case !r.allowPath && strings.Trim(u.Path, "/") != "":
		return fmt.Errorf("%s should be a base URL only, remove path %q", r.env, u.Path)
	}
	return nil
}
