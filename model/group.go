package model

// TriState models a setting that can inherit its effective value from an
// ancestor group rather than being explicitly on or off.
type TriState int

const (
	Inherit TriState = iota
	Enable
	Disable
)

// Group is one node of the group/entry tree.
//
// Parent is a weak, non-owning back-reference: the parent's Groups slice
// is the owning reference; the tree is never duplicated.
type Group struct {
	UUID           ID
	Name           string
	Notes          string
	IconID         int32
	CustomIconUUID ID

	Times TimeInfo

	IsExpanded              bool
	DefaultAutoTypeSequence string
	EnableAutoType          TriState
	EnableSearching         TriState

	LastTopVisibleEntry ID
	PreviousParentGroup ID

	CustomData *CustomData

	Groups  []*Group
	Entries []*Entry

	Parent *Group
}

// NewGroup returns a new Group with a fresh UUID and default TimeInfo.
func NewGroup(name string, times TimeInfo) *Group {
	return &Group{
		UUID:       NewID(),
		Name:       name,
		Times:      times,
		IsExpanded: true,
		CustomData: NewCustomData(),
	}
}

// AddGroup attaches child as a subgroup, detaching it from any previous
// parent first.
func (g *Group) AddGroup(child *Group) {
	child.detach()
	child.Parent = g
	g.Groups = append(g.Groups, child)
}

// AddEntry attaches e to this group, detaching it from any previous
// parent first.
func (g *Group) AddEntry(e *Entry) {
	e.detach()
	e.Parent = g
	g.Entries = append(g.Entries, e)
}

func (g *Group) detach() {
	if g.Parent == nil {
		return
	}
	siblings := g.Parent.Groups
	for i, s := range siblings {
		if s == g {
			g.Parent.Groups = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	g.Parent = nil
}

// Walk visits g and every descendant group, depth-first, in child order.
func (g *Group) Walk(visit func(*Group)) {
	visit(g)
	for _, c := range g.Groups {
		c.Walk(visit)
	}
}

// AllEntries returns every entry in g and its descendant groups, in
// the document order the XML writer must reproduce.
func (g *Group) AllEntries() []*Entry {
	var out []*Entry
	g.Walk(func(grp *Group) {
		out = append(out, grp.Entries...)
	})
	return out
}
