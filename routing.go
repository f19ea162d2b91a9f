package manetsim

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrUnknownProtocol is returned when a routing protocol selector does not
// name one of the supported protocols.
var ErrUnknownProtocol = errors.New("no such protocol")

// A RoutingProtocol selects the routing protocol installed on every node.
type RoutingProtocol int

// RoutingProtocol constants. The values match the numeric codes accepted on
// the command line.
const (
	OLSR RoutingProtocol = iota + 1
	AODV
	DSDV
	DSR
)

// RoutingProtocols lists every supported protocol in code order.
var RoutingProtocols = []RoutingProtocol{OLSR, AODV, DSDV, DSR}

// String returns the label used in the CSV output.
func (p RoutingProtocol) String() string {
	switch p {
	case OLSR:
		return "OLSR"
	case AODV:
		return "AODV"
	case DSDV:
		return "DSDV"
	case DSR:
		return "DSR"
	default:
		return "protocol(" + strconv.Itoa(int(p)) + ")"
	}
}

// Valid reports whether p is one of the supported protocols.
func (p RoutingProtocol) Valid() bool {
	return p >= OLSR && p <= DSR
}

// ParseRoutingProtocol parses either a protocol name (case insensitive) or
// its numeric code.
func ParseRoutingProtocol(s string) (RoutingProtocol, error) {
	s = strings.TrimSpace(s)

	if code, err := strconv.Atoi(s); err == nil {
		p := RoutingProtocol(code)
		if !p.Valid() {
			return 0, fmt.Errorf("%w: %d", ErrUnknownProtocol, code)
		}
		return p, nil
	}

	for _, p := range RoutingProtocols {
		if strings.EqualFold(p.String(), s) {
			return p, nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownProtocol, s)
}

// UnmarshalYAML decodes a protocol given as a name or a code.
func (p *RoutingProtocol) UnmarshalYAML(n *yaml.Node) error {
	parsed, err := ParseRoutingProtocol(n.Value)
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// MarshalYAML encodes the protocol by name.
func (p RoutingProtocol) MarshalYAML() (interface{}, error) {
	return p.String(), nil
}
