// Package object decodes and encodes the four Git object kinds (commit,
// tree, blob, tag) from/to the raw bytes an ObjectLoader yields, and
// implements tag peeling. Object bytes are otherwise treated as opaque
// by the rest of the module, per the data model.
package object

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Signature is a commit/tag author or committer identity and timestamp.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Decode parses a header line value of the form
// "Name <email> unixtime +zzzz" into s.
func (s *Signature) Decode(b []byte) {
	open := bytes.LastIndexByte(b, '<')
	close := bytes.LastIndexByte(b, '>')
	if open < 0 || close < 0 || close < open {
		s.Name = strings.TrimSpace(string(b))
		return
	}

	s.Name = strings.TrimSpace(string(b[:open]))
	s.Email = string(b[open+1 : close])

	rest := strings.TrimSpace(string(b[close+1:]))
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return
	}

	secs, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return
	}

	loc := time.UTC
	if len(fields) > 1 {
		if l, err := parseTZ(fields[1]); err == nil {
			loc = l
		}
	}
	s.When = time.Unix(secs, 0).In(loc)
}

func parseTZ(tz string) (*time.Location, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return nil, fmt.Errorf("malformed timezone %q", tz)
	}
	hours, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return nil, err
	}
	mins, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return nil, err
	}
	offset := hours*3600 + mins*60
	if tz[0] == '-' {
		offset = -offset
	}
	return time.FixedZone(tz, offset), nil
}

// Encode renders s back to its header-line textual form.
func (s *Signature) Encode() []byte {
	_, offset := s.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	return []byte(fmt.Sprintf("%s <%s> %d %s%02d%02d",
		s.Name, s.Email, s.When.Unix(), sign, offset/3600, (offset%3600)/60))
}
