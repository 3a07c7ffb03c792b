// Package device derives a coarse client platform label from User-Agent
// strings, for audit-trail context. Raw user agents are never persisted.
package device

import (
	"strings"

	"github.com/mssola/useragent"
)

// Platform summarizes the retrieving client as "<browser>-<form factor>",
// e.g. "chrome-desktop". Unknown agents collapse to "unknown" rather than
// leaking the raw string into audit rows.
func Platform(userAgentString string) string {
	if userAgentString == "" {
		return ""
	}

	ua := useragent.New(userAgentString)

	browser, _ := ua.Browser()
	browser = strings.ToLower(strings.TrimSpace(browser))
	if browser == "" {
		if ua.Bot() {
			return "bot"
		}
		return "unknown"
	}

	form := "desktop"
	if ua.Mobile() {
		form = "mobile"
	}
	return browser + "-" + form
}
