package plumbing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ReflogEntry is one line of a ref's reflog: the transition from Old to
// New, who committed it, when, and why (§3 Reflog entry).
type ReflogEntry struct {
	Old       ObjectID
	New       ObjectID
	Name      string
	Email     string
	When      time.Time
	Message   string
}

// checkoutRE matches messages of the form "checkout: moving from X to Y"
// written by a checkout-style ref update.
var checkoutRE = regexp.MustCompile(`^checkout: moving from (\S+) to (\S+)$`)

// CheckoutEntry is the parsed form of a reflog entry recording a
// checkout, used by the "@{-N}" revision suffix.
type CheckoutEntry struct {
	From, To string
}

// ParseCheckout attempts to interpret e's message as a checkout entry.
// ok is false if the message isn't in the recognised form.
func (e *ReflogEntry) ParseCheckout() (CheckoutEntry, bool) {
	m := checkoutRE.FindStringSubmatch(e.Message)
	if m == nil {
		return CheckoutEntry{}, false
	}
	return CheckoutEntry{From: m[1], To: m[2]}, true
}

// Format renders the entry in the on-disk reflog line format:
// "<old> <new> <name> <email> <unix> <tz>\t<message>\n".
func (e *ReflogEntry) Format() string {
	_, offset := e.When.Zone()
	sign := "+"
	if offset < 0 {
		sign = "-"
		offset = -offset
	}
	tz := fmt.Sprintf("%s%02d%02d", sign, offset/3600, (offset%3600)/60)

	return fmt.Sprintf("%s %s %s <%s> %d %s\t%s\n",
		e.Old, e.New, e.Name, e.Email, e.When.Unix(), tz, e.Message)
}

// ParseReflogLine parses a single on-disk reflog line back into an entry.
func ParseReflogLine(line string) (*ReflogEntry, error) {
	line = strings.TrimSuffix(line, "\n")
	tabIdx := strings.IndexByte(line, '\t')
	if tabIdx < 0 {
		return nil, fmt.Errorf("%w: missing message separator", ErrCorruptObject)
	}

	header := line[:tabIdx]
	message := line[tabIdx+1:]

	fields := strings.Fields(header)
	if len(fields) < 5 {
		return nil, fmt.Errorf("%w: malformed reflog header %q", ErrCorruptObject, header)
	}

	oldID, ok := FromHex(fields[0])
	if !ok {
		return nil, fmt.Errorf("%w: malformed old id %q", ErrCorruptObject, fields[0])
	}
	newID, ok := FromHex(fields[1])
	if !ok {
		return nil, fmt.Errorf("%w: malformed new id %q", ErrCorruptObject, fields[1])
	}

	// fields[2..] is "Name <email> unix tz"; email is the bracketed field.
	emailIdx := -1
	for i, f := range fields[2:] {
		if strings.HasPrefix(f, "<") {
			emailIdx = i + 2
			break
		}
	}
	if emailIdx < 0 || emailIdx+2 >= len(fields) {
		return nil, fmt.Errorf("%w: malformed reflog identity %q", ErrCorruptObject, header)
	}

	name := strings.Join(fields[2:emailIdx], " ")
	email := strings.Trim(fields[emailIdx], "<>")

	unix, err := strconv.ParseInt(fields[emailIdx+1], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed timestamp %q", ErrCorruptObject, fields[emailIdx+1])
	}

	return &ReflogEntry{
		Old:     oldID,
		New:     newID,
		Name:    name,
		Email:   email,
		When:    time.Unix(unix, 0),
		Message: message,
	}, nil
}
