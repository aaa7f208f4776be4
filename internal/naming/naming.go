// Package naming builds, bounds, and parses the identifiers remedyd assigns
// to corrective jobs. Names must fit Kubernetes-style limits (63 chars) and
// survive a round trip: the task ID and alert type embedded in a job name are
// recovered later to route job outcomes back to their units.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// DefaultMaxLength is the DNS label bound most schedulers enforce.
const DefaultMaxLength = 63

const (
	sep        = "-"
	taskMarker = "task"
	uidLen     = 8
)

// Config holds codec settings.
type Config struct {
	// Prefix is the fixed leading segment of every generated name.
	Prefix string

	// MaxLength bounds generated names. Zero means DefaultMaxLength.
	MaxLength int
}

// Fields are the values recovered from a generated name.
type Fields struct {
	Prefix    string
	TaskID    int
	AlertType string
	UID       string
}

// Codec generates and parses job names of the form
//
//	{prefix}-task{N}-{alertType}-{uid}
//
// where alertType is a single letter followed by digits (a2, a7, ...) and
// uid is 8 hex characters.
type Codec struct {
	prefix    string
	maxLength int
}

// NewCodec validates settings and returns a codec. A non-positive explicit
// MaxLength or an empty prefix is a setup error.
func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Prefix == "" {
		return nil, fmt.Errorf("naming prefix is required")
	}
	if strings.HasSuffix(cfg.Prefix, sep) {
		return nil, fmt.Errorf("naming prefix must not end with %q", sep)
	}
	maxLen := cfg.MaxLength
	if maxLen == 0 {
		maxLen = DefaultMaxLength
	}
	if maxLen < 0 {
		return nil, fmt.Errorf("naming max length must be > 0, got %d", maxLen)
	}
	// The prefix, shortest possible middle, and uid must fit
	minimal := len(cfg.Prefix) + len(sep) + len(taskMarker) + 1 + len(sep) + 2 + len(sep) + uidLen
	if maxLen < minimal {
		return nil, fmt.Errorf("naming max length %d too small for prefix %q (need >= %d)", maxLen, cfg.Prefix, minimal)
	}
	return &Codec{prefix: cfg.Prefix, maxLength: maxLen}, nil
}

// Build generates a bounded job name for the given task and alert type,
// appending a fresh 8-char uid.
func (c *Codec) Build(taskID int, alertType string) (string, error) {
	uid := strings.ReplaceAll(uuid.New().String(), "-", "")[:uidLen]
	return c.BuildWithUID(taskID, alertType, uid)
}

// BuildWithUID is Build with a caller-chosen uid. Deterministic.
func (c *Codec) BuildWithUID(taskID int, alertType, uid string) (string, error) {
	if taskID < 0 {
		return "", fmt.Errorf("task id must be >= 0, got %d", taskID)
	}
	if !validAlertType(alertType) {
		return "", fmt.Errorf("alert type must be a letter followed by digits, got %q", alertType)
	}
	if len(uid) != uidLen || !isLowerHex(uid) {
		return "", fmt.Errorf("uid must be %d lowercase hex chars, got %q", uidLen, uid)
	}

	name := strings.Join([]string{
		c.prefix,
		taskMarker + strconv.Itoa(taskID),
		alertType,
		uid,
	}, sep)

	return c.truncate(name), nil
}

// truncate bounds a generated name. Unlike the generic Truncate, the codec's
// whole configured prefix is the fixed leading part, so a multi-segment
// prefix survives and the uid stays verbatim; only the task and alert
// segments in between are shortened.
func (c *Codec) truncate(name string) string {
	if len(name) <= c.maxLength {
		return name
	}

	rest, ok := strings.CutPrefix(name, c.prefix+sep)
	if !ok {
		return Truncate(name, c.maxLength)
	}
	i := strings.LastIndex(rest, sep)
	if i < 0 {
		return Truncate(name, c.maxLength)
	}
	middle, uid := rest[:i], rest[i+1:]

	budget := c.maxLength - len(c.prefix) - len(uid) - 2*len(sep)
	if budget > 0 {
		if len(middle) > budget {
			middle = strings.TrimRight(middle[:budget], sep)
		}
		if middle != "" {
			return c.prefix + sep + middle + sep + uid
		}
	}
	if len(c.prefix)+len(sep)+len(uid) <= c.maxLength {
		return c.prefix + sep + uid
	}
	return strings.TrimRight(name[:c.maxLength], sep)
}

// Parse recovers the embedded fields from a generated name. It returns false
// on any input that does not match the expected segment layout; it never
// guesses.
func (c *Codec) Parse(name string) (Fields, bool) {
	rest, ok := strings.CutPrefix(name, c.prefix+sep)
	if !ok {
		return Fields{}, false
	}

	segs := strings.Split(rest, sep)
	if len(segs) != 3 {
		return Fields{}, false
	}

	taskSeg, alertSeg, uidSeg := segs[0], segs[1], segs[2]

	numPart, ok := strings.CutPrefix(taskSeg, taskMarker)
	if !ok {
		return Fields{}, false
	}
	taskID, err := strconv.Atoi(numPart)
	if err != nil || taskID < 0 {
		return Fields{}, false
	}

	if !validAlertType(alertSeg) {
		return Fields{}, false
	}

	if len(uidSeg) != uidLen || !isLowerHex(uidSeg) {
		return Fields{}, false
	}

	return Fields{
		Prefix:    c.prefix,
		TaskID:    taskID,
		AlertType: alertSeg,
		UID:       uidSeg,
	}, true
}

// Truncate bounds name to maxLen. The leading segment and the final segment
// are kept verbatim; only the middle is shortened, and the result never ends
// in a separator. When even prefix+suffix exceed maxLen the whole string is
// hard-truncated with trailing separators stripped.
func Truncate(name string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(name) <= maxLen {
		return name
	}

	segs := strings.Split(name, sep)
	if len(segs) >= 3 {
		prefix := segs[0]
		suffix := segs[len(segs)-1]
		middle := strings.Join(segs[1:len(segs)-1], sep)

		// Room for the middle once prefix, suffix, and their separators are set
		budget := maxLen - len(prefix) - len(suffix) - 2*len(sep)
		if budget > 0 {
			if len(middle) > budget {
				middle = strings.TrimRight(middle[:budget], sep)
			}
			if middle != "" {
				return prefix + sep + middle + sep + suffix
			}
		}
		// Middle gone; try prefix + suffix alone
		if len(prefix)+len(sep)+len(suffix) <= maxLen {
			return prefix + sep + suffix
		}
	}

	return strings.TrimRight(name[:maxLen], sep)
}

// SanitizeLabel clamps v to a label-safe value: alphanumerics, '-', '_' and
// '.' only, at most 63 chars, starting and ending alphanumeric. Everything
// else becomes '-'.
func SanitizeLabel(v string) string {
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}

	s := b.String()
	if len(s) > DefaultMaxLength {
		s = s[:DefaultMaxLength]
	}
	s = strings.TrimLeft(s, "-_.")
	s = strings.TrimRight(s, "-_.")
	return s
}

// validAlertType reports whether s is a single letter followed by one or
// more digits.
func validAlertType(s string) bool {
	if len(s) < 2 {
		return false
	}
	first := s[0]
	if (first < 'a' || first > 'z') && (first < 'A' || first > 'Z') {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
