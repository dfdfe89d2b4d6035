// Package localization renders user-facing notices and chat line formats from
// string-keyed templates with {placeholder} substitution. Built-in defaults
// can be overridden from configuration or from a JSON file.
package localization

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
)

// DefaultMessages are the notice templates used when no override is configured.
var DefaultMessages = map[string]string{
	"self-whisper-error":         "You cannot whisper yourself!",
	"dm-start":                   "DM started with {target}",
	"dm-switch":                  "Switched DM to {target}",
	"no-dm-sessions":             "No DM sessions found.",
	"invalid-dm-target":          "Invalid DM target.",
	"no-active-dms":              "No active DMs.",
	"dm-list-header":             "Active DMs:",
	"dm-list-item":               "{target}",
	"not-in-dm":                  "You are not in a DM.",
	"dm-left":                    "Left DM with {target}",
	"cannot-leave-group-with-dm": "Use /dm group leave to leave groups",
	"no-reply-target":            "No reply target found.",
	"target-offline":             "Target is offline.",
	"session-expired":            "Your DM session with {player} has expired due to inactivity.",
	"group-created":              "Created group: {group} (Expires in {lifetime})",
	"cannot-create-group":        "Cannot create group",
	"group-left":                 "Left group",
	"not-in-group":               "Not in a group",
	"group-deleted":              "Deleted group {group}",
	"cannot-delete-group":        "Cannot delete group",
	"group-joined":               "Joined group {group}",
	"cannot-join-group":          "Cannot join group",
	"group-dm-switched":          "Now chatting in group: {group}",
	"group-gone":                 "Your group conversation {group} is no longer available.",
	"group-disbanded":            "Group {group} has been deleted due to: {reason}",
	"group-reason-expired":       "expired",
	"group-reason-deleted":       "deleted by {owner}",
	"group-members":              "Group: {group}",
	"group-owner":                "Owner: {owner}",
	"group-no-members":           "No other members",
	"group-members-list":         "Members:",
	"group-member":               "- {member}",
	"unknown-command":            "Unknown command. Try /dm help",
	"usage":                      "Usage: {usage}",
}

// DefaultFormats are the chat line templates keyed by message kind.
var DefaultFormats = map[string]string{
	"dm":      "[{type}] {sender} -> {receiver}: {message}",
	"whisper": "[{type}] {sender} -> {receiver}: {message}",
	"reply":   "[{type}] {sender} -> {receiver}: {message}",
	"group":   "[{group}] {sender}: {message}",
	"public":  "{sender}: {message}",
}

// DefaultHelp is printed by "dm help".
var DefaultHelp = []string{
	"/dm start <player> - start a DM",
	"/dm switch <player> - focus an earlier DM",
	"/dm list - list your online DM partners",
	"/dm leave - leave the focused DM",
	"/w <player> <message> - whisper once",
	"/r <message> - reply to the last whisper",
	"/dm group create|join <name>|switch <name>|leave|delete <name>|list-current",
}

// Localizer holds the active templates.
type Localizer struct {
	messages map[string]string
	formats  map[string]string
	help     []string
	mu       sync.RWMutex
}

// NewLocalizer returns a Localizer seeded with the defaults and the given
// overrides. Nil or empty overrides keep the defaults.
func NewLocalizer(messages, formats map[string]string, help []string) *Localizer {
	l := &Localizer{
		messages: make(map[string]string, len(DefaultMessages)),
		formats:  make(map[string]string, len(DefaultFormats)),
		help:     DefaultHelp,
	}
	for k, v := range DefaultMessages {
		l.messages[k] = v
	}
	for k, v := range DefaultFormats {
		l.formats[k] = v
	}
	l.Merge(messages, formats)
	if len(help) > 0 {
		l.help = help
	}
	return l
}

// Merge overlays message and format templates.
func (l *Localizer) Merge(messages, formats map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for k, v := range messages {
		l.messages[k] = v
	}
	for k, v := range formats {
		l.formats[k] = v
	}
}

// LoadJSON overlays message templates from a JSON object of key -> template.
func (l *Localizer) LoadJSON(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read localization file %s: %w", path, err)
	}

	var messages map[string]string
	if err := json.Unmarshal(data, &messages); err != nil {
		return fmt.Errorf("failed to parse localization file %s: %w", path, err)
	}

	l.Merge(messages, nil)
	return nil
}

// Message renders the notice template for key. pairs are placeholder/value
// pairs without braces, e.g. Message("dm-start", "target", "Bob").
// An unknown key renders as the key itself.
func (l *Localizer) Message(key string, pairs ...string) string {
	l.mu.RLock()
	tmpl, ok := l.messages[key]
	l.mu.RUnlock()

	if !ok {
		tmpl = key
	}
	return Render(tmpl, pairs...)
}

// Format renders the chat line template for a message kind.
func (l *Localizer) Format(kind string, pairs ...string) string {
	l.mu.RLock()
	tmpl, ok := l.formats[kind]
	l.mu.RUnlock()

	if !ok {
		tmpl = "{sender}: {message}"
	}
	return Render(tmpl, pairs...)
}

// Help returns the help lines.
func (l *Localizer) Help() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]string(nil), l.help...)
}

// Render substitutes every {placeholder} named in pairs. Substitution is a
// single pass, so values containing braces are never expanded again.
func Render(tmpl string, pairs ...string) string {
	if len(pairs) < 2 {
		return tmpl
	}
	args := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		args = append(args, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(args...).Replace(tmpl)
}
