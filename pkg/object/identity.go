package object

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Identity is an author, committer, or tagger line:
//
//	Name <email> 1700000000 +0100
type Identity struct {
	Name  string
	Email string
	When  time.Time
}

// NewIdentity stamps name and email with when, truncated to whole seconds.
func NewIdentity(name, email string, when time.Time) Identity {
	return Identity{Name: name, Email: email, When: when.Truncate(time.Second)}
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Name == "" && id.Email == "" && id.When.IsZero()
}

func (id Identity) String() string {
	return fmt.Sprintf("%s <%s> %d %s", id.Name, id.Email, id.When.Unix(), formatTimezoneOffset(id.When))
}

// ParseIdentity parses the serialized form produced by Identity.String.
func ParseIdentity(s string) (Identity, error) {
	open := strings.IndexByte(s, '<')
	closing := strings.LastIndexByte(s, '>')
	if open < 0 || closing < open {
		return Identity{}, fmt.Errorf("identity %q: missing <email>", s)
	}
	id := Identity{
		Name:  strings.TrimSpace(s[:open]),
		Email: s[open+1 : closing],
	}

	fields := strings.Fields(s[closing+1:])
	if len(fields) != 2 {
		return Identity{}, fmt.Errorf("identity %q: want timestamp and timezone after email", s)
	}
	ts, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Identity{}, fmt.Errorf("identity %q: bad timestamp: %w", s, err)
	}
	offset, err := parseTimezoneOffset(fields[1])
	if err != nil {
		return Identity{}, fmt.Errorf("identity %q: %w", s, err)
	}
	id.When = time.Unix(ts, 0).In(time.FixedZone("", offset))
	return id, nil
}

func formatTimezoneOffset(t time.Time) string {
	_, offset := t.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	hours := offset / 3600
	minutes := (offset % 3600) / 60
	return fmt.Sprintf("%s%02d%02d", sign, hours, minutes)
}

func parseTimezoneOffset(tz string) (int, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return 0, fmt.Errorf("bad timezone %q", tz)
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return 0, fmt.Errorf("bad timezone %q", tz)
	}
	minutes, err := strconv.Atoi(tz[3:5])
	if err != nil || minutes >= 60 {
		return 0, fmt.Errorf("bad timezone %q", tz)
	}
	offset := hours*3600 + minutes*60
	if tz[0] == '-' {
		offset = -offset
	}
	return offset, nil
}
