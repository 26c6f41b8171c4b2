package report

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// DefaultTrustedPrefix is the folder raw exports are promoted into.
const DefaultTrustedPrefix = "trusted/"

// DefaultDateLayout formats the date segment of the destination key.
const DefaultDateLayout = "2006-01-02"

// ErrInvalidKey is returned for keys without company and machine segments.
var ErrInvalidKey = errors.New("report: invalid key")

// Identity names the machine a report belongs to.
type Identity struct {
	Company string
	Machine string
}

// ParseKey extracts company and machine from the first two segments of key,
// after removing trustedPrefix if present.
func ParseKey(key, trustedPrefix string) (Identity, error) {
	rel := strings.TrimPrefix(key, "/")
	if trustedPrefix != "" {
		rel = strings.TrimPrefix(rel, trustedPrefix)
	}
	parts := strings.Split(rel, "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return Identity{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return Identity{Company: parts[0], Machine: parts[1]}, nil
}

// AlternateKey toggles trustedPrefix on key: it is removed when present and
// added otherwise.
func AlternateKey(key, trustedPrefix string) string {
	if trustedPrefix == "" {
		return key
	}
	if strings.HasPrefix(key, trustedPrefix) {
		return strings.TrimPrefix(key, trustedPrefix)
	}
	return trustedPrefix + key
}

// DestinationKey returns [prefix/]company/<maxTS in layout>/machine.json.
func DestinationKey(prefix string, id Identity, maxTS time.Time, layout string) string {
	if layout == "" {
		layout = DefaultDateLayout
	}
	return ReportKey(prefix, id, maxTS.Format(layout))
}

// ReportKey returns [prefix/]company/date/machine.json for an already
// formatted date.
func ReportKey(prefix string, id Identity, date string) string {
	return path.Join(prefix, id.Company, date, id.Machine+".json")
}
