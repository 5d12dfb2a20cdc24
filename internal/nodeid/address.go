package nodeid

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// NoInstance marks an address that names an operator rather than one of its
// processor instances.
const NoInstance = -1

// Address is the structured representation of a processor identifier.
type Address struct {
	Kind     string
	Name     string
	Instance int
}

// segmentRegex is used to parse a single segment, e.g. `name` or `name[1]`.
var segmentRegex = regexp.MustCompile(`^([a-zA-Z0-9_-]+)(?:\[(\d+)\])?$`)

// New returns the address of instance i of operator kind.name.
func New(kind, name string, i int) Address {
	return Address{Kind: kind, Name: name, Instance: i}
}

// Operator returns the address of the operator, without an instance index.
func Operator(kind, name string) Address {
	return Address{Kind: kind, Name: name, Instance: NoInstance}
}

// HasInstance returns true if the address points to a single instance.
func (a Address) HasInstance() bool {
	return a.Instance != NoInstance
}

// OperatorKey returns the `kind.name` part of the address.
func (a Address) OperatorKey() string {
	return a.Kind + "." + a.Name
}

// String serializes the Address into its canonical string representation.
func (a Address) String() string {
	if a.Kind == "" && a.Name == "" {
		return ""
	}
	if !a.HasInstance() {
		return a.OperatorKey()
	}
	return fmt.Sprintf("%s.%s[%d]", a.Kind, a.Name, a.Instance)
}

// Parse creates an Address by parsing its canonical string representation.
// The kind segment never carries an index; the name segment may.
func Parse(raw string) (Address, error) {
	if raw == "" {
		return Address{}, fmt.Errorf("identifier cannot be empty")
	}

	parts := strings.Split(raw, ".")
	if len(parts) != 2 {
		return Address{}, fmt.Errorf("identifier %q must have the form kind.name[instance]", raw)
	}
	for _, p := range parts {
		if p == "" {
			return Address{}, fmt.Errorf("identifier %q contains empty segment", raw)
		}
	}

	kind := segmentRegex.FindStringSubmatch(parts[0])
	if kind == nil || kind[2] != "" {
		return Address{}, fmt.Errorf("invalid kind segment: %q", parts[0])
	}
	if !isValidSegmentName(kind[1]) {
		return Address{}, fmt.Errorf("invalid segment name: %q", kind[1])
	}

	name := segmentRegex.FindStringSubmatch(parts[1])
	if name == nil {
		return Address{}, fmt.Errorf("invalid name segment: %q", parts[1])
	}
	if !isValidSegmentName(name[1]) {
		return Address{}, fmt.Errorf("invalid segment name: %q", name[1])
	}

	addr := Operator(kind[1], name[1])
	if name[2] != "" {
		i, err := strconv.Atoi(name[2])
		if err != nil {
			// Unreachable due to regex `\d+`
			return Address{}, fmt.Errorf("internal error parsing instance: %w", err)
		}
		addr.Instance = i
	}
	return addr, nil
}

// isValidSegmentName checks for undesirable but technically valid names.
func isValidSegmentName(name string) bool {
	return name != "-" && name != "_"
}
