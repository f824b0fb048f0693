package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// PIILevel controls how much personal data reaches logs and traces.
type PIILevel string

const (
	// PIILevelNone redacts free text entirely
	PIILevelNone PIILevel = "none"
	// PIILevelHashed replaces detected personal data with salted hashes
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull logs values untouched; development only
	PIILevelFull PIILevel = "full"
)

// ParsePIILevel maps configuration input to a level, defaulting to hashed.
func ParsePIILevel(raw string) PIILevel {
	switch PIILevel(strings.ToLower(strings.TrimSpace(raw))) {
	case PIILevelNone:
		return PIILevelNone
	case PIILevelFull:
		return PIILevelFull
	default:
		return PIILevelHashed
	}
}

const redacted = "[REDACTED]"

type rule struct {
	label   string
	pattern *regexp.Regexp
	hashed  bool
}

// Sanitizer removes patient and clinician personal data before it is logged.
// A nil Sanitizer redacts everything.
type Sanitizer struct {
	level PIILevel
	salt  string
	rules []rule
}

// NewSanitizer creates a sanitizer whose hashes are salted with salt.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level: level,
		salt:  salt,
		rules: []rule{
			{label: "EMAIL", pattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), hashed: true},
			{label: "MRN", pattern: regexp.MustCompile(`(?i)\bMRN[-:\s]?\d{4,}\b`)},
			{label: "DOB", pattern: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`)},
			{label: "PHONE", pattern: regexp.MustCompile(`\+?\b\d{1,3}?[-.\s]?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`), hashed: true},
			{label: "IP", pattern: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), hashed: true},
		},
	}
}

// Level reports the configured level.
func (s *Sanitizer) Level() PIILevel {
	if s == nil {
		return PIILevelNone
	}
	return s.level
}

// SanitizeText cleans free text such as chat messages or notes.
func (s *Sanitizer) SanitizeText(input string) string {
	if input == "" {
		return ""
	}
	switch s.Level() {
	case PIILevelFull:
		return input
	case PIILevelNone:
		return redacted
	default:
		return s.scrub(input)
	}
}

// SanitizeEmail keeps the domain and hashes the mailbox.
func (s *Sanitizer) SanitizeEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return ""
	}
	switch s.Level() {
	case PIILevelFull:
		return email
	case PIILevelNone:
		return redacted
	}
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return s.hash(email)
	}
	return s.hash(email[:at]) + "@" + email[at+1:]
}

// SanitizeIdentifier hashes stable identifiers such as phone numbers.
func (s *Sanitizer) SanitizeIdentifier(value string) string {
	if value == "" {
		return ""
	}
	switch s.Level() {
	case PIILevelFull:
		return value
	case PIILevelNone:
		return redacted
	default:
		return s.hash(value)
	}
}

func (s *Sanitizer) scrub(input string) string {
	result := input
	for _, r := range s.rules {
		label := r.label
		if r.hashed {
			result = r.pattern.ReplaceAllStringFunc(result, func(match string) string {
				return "[" + label + ":" + s.hash(match) + "]"
			})
			continue
		}
		result = r.pattern.ReplaceAllString(result, "["+label+":REDACTED]")
	}
	return result
}

// hash returns the first 8 hex chars of a salted SHA-256.
func (s *Sanitizer) hash(data string) string {
	sum := sha256.Sum256([]byte(s.salt + "|" + strings.ToLower(data)))
	return hex.EncodeToString(sum[:])[:8]
}
