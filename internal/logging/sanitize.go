// GitHub Invite Plus - Invitation Tracking and Branch Code Search
// Copyright 2026 SuperSonnix71
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/SuperSonnix71/github-invite-plus

package logging

import (
	"fmt"
	"strings"
)

// maxLoggedValueLen bounds attacker-controlled strings (webhook refs, repo
// names) before they reach the log stream.
const maxLoggedValueLen = 256

// SanitizeValue escapes control characters so that values received from
// webhooks cannot forge log lines, and truncates overly long input.
func SanitizeValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		if i >= maxLoggedValueLen {
			b.WriteString("...")
			break
		}
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
