// Package secrets detects and redacts credentials before they reach the
// event log, the live subscriber or any other run output.
//
// Two detectors are available: a regexp Scrubber built from Rules (always on)
// and an optional gitleaks-backed detector for deeper scanning. RedactValue
// applies a Scrubber recursively to nested maps and slices.
package secrets
