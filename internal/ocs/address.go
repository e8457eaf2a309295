package ocs

import (
	"fmt"
	"strings"
)

// Address identifies one agent instance on the router. The textual
// form is the address root (which may itself be dotted, e.g.
// "observatory") followed by the instance id:
//
//	observatory.thermo-1
//	lab.site.pdu-rack3
//
// Operation endpoints hang off the instance under ".ops.".
type Address struct {
	Root     string
	Instance string
}

// ParseAddress splits a dotted agent address into root and instance.
// The instance is the final segment; everything before it is root.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return Address{}, fmt.Errorf("invalid agent address %q (want root.instance)", s)
	}
	return Address{Root: s[:i], Instance: s[i+1:]}, nil
}

// MustAddress is ParseAddress for addresses known valid at compile
// time (tests, defaults).
func MustAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

func (a Address) String() string {
	return a.Root + "." + a.Instance
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a.Root == "" && a.Instance == ""
}

// OpURI returns the router endpoint for one operation on this agent.
func (a Address) OpURI(op string) string {
	return a.String() + ".ops." + op
}
