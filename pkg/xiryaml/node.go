package xiryaml

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DecodeError is a schema violation at a line of the input.
type DecodeError struct {
	Line int
	Msg  string
}

func (e *DecodeError) Error() string {
	if e.Line == 0 {
		return e.Msg
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func errorf(n *yaml.Node, format string, args ...any) error {
	line := 0
	if n != nil {
		line = n.Line
	}
	return &DecodeError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func kindName(n *yaml.Node) string {
	switch n.Kind {
	case yaml.ScalarNode:
		return "scalar"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.AliasNode:
		return "alias"
	default:
		return "document"
	}
}

// deref follows aliases so anchors can be reused for common types
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

func expect(n *yaml.Node, kind yaml.Kind, what string) error {
	if n.Kind != kind {
		return errorf(n, "%s: expected a %s, got a %s", what, kindName(&yaml.Node{Kind: kind}), kindName(n))
	}
	return nil
}

// pairs returns the key/value pairs of a mapping node in order
func pairs(n *yaml.Node) [][2]*yaml.Node {
	out := make([][2]*yaml.Node, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		out = append(out, [2]*yaml.Node{n.Content[i], deref(n.Content[i+1])})
	}
	return out
}

// field returns the value of key in a mapping, or nil
func field(n *yaml.Node, key string) *yaml.Node {
	for _, p := range pairs(n) {
		if p[0].Value == key {
			return p[1]
		}
	}
	return nil
}

// checkKeys rejects keys outside allowed so typos do not pass silently
func checkKeys(n *yaml.Node, what string, allowed ...string) error {
	if err := expect(n, yaml.MappingNode, what); err != nil {
		return err
	}
	for _, p := range pairs(n) {
		if !slices.Contains(allowed, p[0].Value) {
			return errorf(p[0], "%s: unknown key %q", what, p[0].Value)
		}
	}
	return nil
}

func required(n *yaml.Node, key, what string) (*yaml.Node, error) {
	v := field(n, key)
	if v == nil {
		return nil, errorf(n, "%s: missing %q", what, key)
	}
	return v, nil
}

func str(n *yaml.Node, what string) (string, error) {
	if err := expect(n, yaml.ScalarNode, what); err != nil {
		return "", err
	}
	return n.Value, nil
}

func boolean(n *yaml.Node, what string) (bool, error) {
	s, err := str(n, what)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, errorf(n, "%s: %q is not a boolean", what, s)
	}
	return b, nil
}

func optBool(n *yaml.Node, key, what string) (bool, error) {
	v := field(n, key)
	if v == nil {
		return false, nil
	}
	return boolean(v, what+"."+key)
}

func uintN(n *yaml.Node, bits int, what string) (uint64, error) {
	s, err := str(n, what)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, errorf(n, "%s: %q is not an unsigned %d-bit integer", what, s, bits)
	}
	return v, nil
}

func u32(n *yaml.Node, what string) (uint32, error) {
	v, err := uintN(n, 32, what)
	return uint32(v), err
}

func u16(n *yaml.Node, what string) (uint16, error) {
	v, err := uintN(n, 16, what)
	return uint16(v), err
}

// bits parses an integer constant. Negative values are stored in two's
// complement.
func bits(n *yaml.Node, what string) (uint64, error) {
	s, err := str(n, what)
	if err != nil {
		return 0, err
	}
	if strings.HasPrefix(s, "-") {
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return 0, errorf(n, "%s: %q is not an integer", what, s)
		}
		return uint64(v), nil
	}
	v, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, errorf(n, "%s: %q is not an integer", what, s)
	}
	return v, nil
}

func int64Ptr(n *yaml.Node, what string) (*int64, error) {
	if n == nil {
		return nil, nil
	}
	s, err := str(n, what)
	if err != nil {
		return nil, err
	}
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return nil, errorf(n, "%s: %q is not an integer", what, s)
	}
	return &v, nil
}

// single splits a one-key mapping, the shape of every tagged variant
func single(n *yaml.Node, what string) (string, *yaml.Node, error) {
	if err := expect(n, yaml.MappingNode, what); err != nil {
		return "", nil, err
	}
	if len(n.Content) != 2 {
		return "", nil, errorf(n, "%s: expected exactly one key, got %d", what, len(n.Content)/2)
	}
	return n.Content[0].Value, deref(n.Content[1]), nil
}

func seq(n *yaml.Node, what string) ([]*yaml.Node, error) {
	if err := expect(n, yaml.SequenceNode, what); err != nil {
		return nil, err
	}
	out := make([]*yaml.Node, len(n.Content))
	for i, c := range n.Content {
		out[i] = deref(c)
	}
	return out, nil
}
