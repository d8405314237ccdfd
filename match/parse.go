package match

import (
	"fmt"
	"strconv"
)

// ParsePerson parses the compact "A3"/"B12" identifier form.
func ParsePerson(s string) (Person, error) {
	if len(s) < 2 {
		return Person{}, fmt.Errorf("match: malformed person id %q", s)
	}
	cat := Category(s[:1])
	if cat != CategoryA && cat != CategoryB {
		return Person{}, fmt.Errorf("match: unknown category in person id %q", s)
	}
	ord, err := strconv.Atoi(s[1:])
	if err != nil || ord < 1 {
		return Person{}, fmt.Errorf("match: bad ordinal in person id %q", s)
	}
	return Person{Category: cat, Ordinal: ord}, nil
}

// MarshalText encodes the person as its compact identifier, so JSON
// partitions serialize as arrays of "A1"-style strings.
func (p Person) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText parses the compact identifier form.
func (p *Person) UnmarshalText(text []byte) error {
	parsed, err := ParsePerson(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
