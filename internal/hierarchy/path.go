package hierarchy

import "strings"

// Separator joins the segments of a display path.
const Separator = " > "

// Segment is one level of a resolved hierarchical path, carrying the
// level type and the node's display name.
type Segment struct {
	Type LocationType `json:"type"`
	Name string       `json:"name"`
}

// Path is the ordered ancestor chain of a storage location from room
// to leaf.  A path built for an assignment may end with the position
// coordinate as its final segment.
type Path []Segment

// Build assembles a Path from ancestor segments ordered coarse to
// fine, followed by an optional position coordinate.  Segments with an
// empty name are skipped so that assignments made at a coarser
// granularity (for example directly at shelf level, with no box) never
// produce empty path elements.
func Build(segments []Segment, coordinate string) Path {
	p := make(Path, 0, len(segments)+1)
	for _, s := range segments {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		p = append(p, Segment{Type: s.Type, Name: s.Name})
	}
	if c := strings.TrimSpace(coordinate); c != "" {
		p = append(p, Segment{Type: TypePosition, Name: c})
	}
	return p
}

// Display renders the path as a single string joined by " > ".  An
// empty path renders as the empty string; there is never a leading,
// trailing or doubled separator.
func (p Path) Display() string {
	names := make([]string, 0, len(p))
	for _, s := range p {
		names = append(names, s.Name)
	}
	return strings.Join(names, Separator)
}
