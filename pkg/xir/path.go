package xir

import (
	"strconv"
	"strings"
)

// PathComponentKind distinguishes the three kinds of path segments
type PathComponentKind int

const (
	Root PathComponentKind = iota
	Text
	Special
)

// PathComponent is one segment of a Path
type PathComponent struct {
	Kind PathComponentKind
	Text string
}

// Path identifies a global symbol. Paths compare structurally; use Key when
// a Path has to index a map.
type Path struct {
	Components []PathComponent
}

// ParsePath parses the textual form produced by Path.String:
// "::a::b" is rooted, "a::b" is relative, and a segment written as "#x"
// is a special component.
func ParsePath(s string) Path {
	var p Path
	if strings.HasPrefix(s, "::") {
		p.Components = append(p.Components, PathComponent{Kind: Root})
		s = s[2:]
	}
	if s == "" {
		return p
	}
	for _, seg := range strings.Split(s, "::") {
		if strings.HasPrefix(seg, "#") {
			p.Components = append(p.Components, PathComponent{Kind: Special, Text: seg[1:]})
		} else {
			p.Components = append(p.Components, PathComponent{Kind: Text, Text: seg})
		}
	}
	return p
}

// Equal reports whether two paths have the same components
func (p Path) Equal(o Path) bool {
	if len(p.Components) != len(o.Components) {
		return false
	}
	for i := range p.Components {
		if p.Components[i] != o.Components[i] {
			return false
		}
	}
	return true
}

// Key returns an unambiguous string usable as a map key. Each component is
// written as its kind, the length of its text and the text.
func (p Path) Key() string {
	var sb strings.Builder
	for _, c := range p.Components {
		switch c.Kind {
		case Root:
			sb.WriteByte('r')
		case Text:
			sb.WriteByte('t')
		case Special:
			sb.WriteByte('s')
		}
		sb.WriteString(strconv.Itoa(len(c.Text)))
		sb.WriteByte(':')
		sb.WriteString(c.Text)
	}
	return sb.String()
}

// Join appends the components of child to p. A leading root marker on child
// is dropped.
func (p Path) Join(child Path) Path {
	comps := make([]PathComponent, 0, len(p.Components)+len(child.Components))
	comps = append(comps, p.Components...)
	for i, c := range child.Components {
		if i == 0 && c.Kind == Root {
			continue
		}
		comps = append(comps, c)
	}
	return Path{Components: comps}
}

func (p Path) String() string {
	var sb strings.Builder
	for i, c := range p.Components {
		switch c.Kind {
		case Root:
			sb.WriteString("::")
			continue
		case Special:
			if i > 0 && p.Components[i-1].Kind != Root {
				sb.WriteString("::")
			}
			sb.WriteString("#" + c.Text)
		case Text:
			if i > 0 && p.Components[i-1].Kind != Root {
				sb.WriteString("::")
			}
			sb.WriteString(c.Text)
		}
	}
	return sb.String()
}
