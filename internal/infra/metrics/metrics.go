// Package metrics holds the Prometheus collectors of the bot. Each file
// enqueues its collectors from init(); MustRegister registers them once.
package metrics

import (
	"strconv"
	"strings"
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func boolLabel(b bool) string { return strconv.FormatBool(b) }
