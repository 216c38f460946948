package config

import "time"

// Overlay helpers copy a source value only when it is set, so a partial
// source never blanks out what an earlier layer provided.

func setString(dst *string, src string) {
	if src != "" {
		*dst = src
	}
}

func setInt(dst *int, src int) {
	if src != 0 {
		*dst = src
	}
}

func setDuration(dst *time.Duration, src time.Duration) {
	if src != 0 {
		*dst = src
	}
}

func setStrings(dst *[]string, src []string) {
	if len(src) != 0 {
		*dst = src
	}
}
