// Package language normalizes language codes, names and legacy labels to
// ISO 639 codes and English display names using golang.org/x/text.
package language
