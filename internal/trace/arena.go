package trace

import "errors"

// ErrUnknownNode is returned when a node id does not exist in the arena.
var ErrUnknownNode = errors.New("unknown node id")

// NodeID indexes a node inside an Arena.
type NodeID int

// NoParent marks a root node.
const NoParent NodeID = -1

// Node is one call-tree entry. A node is either a primitive (the selection
// root) or a placed child occurrence with its own location and time span.
type Node struct {
	ID       NodeID
	Parent   NodeID
	Name     string
	NodeID   string
	Location string
	Enter    float64
	Leave    float64
	Children []NodeID
	// Util caches the per-bin utilization series once computed.
	Util Series
}

// Series is a per-bin utilization series together with the domain it was
// binned over. Values holds one entry per bin.
type Series struct {
	Begin  float64
	End    float64
	Values []float64
}

// Fits reports whether s was binned as count buckets over [begin, end].
func (s Series) Fits(begin, end float64, count int) bool {
	return count > 0 && len(s.Values) == count && s.Begin == begin && s.End == end
}

// Arena stores a primitive hierarchy as a flat slice indexed by NodeID.
// Children are id lists, so the tree holds no pointer cycles.
type Arena struct {
	nodes []Node
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// AddRoot adds a parentless primitive node and returns its id.
func (a *Arena) AddRoot(name, nodeID string) NodeID {
	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, Node{ID: id, Parent: NoParent, Name: name, NodeID: nodeID})

	return id
}

// AddChild appends a placed child occurrence under parent.
func (a *Arena) AddChild(parent NodeID, name, location string, enter, leave float64, util Series) (NodeID, error) {
	if !a.valid(parent) {
		return 0, ErrUnknownNode
	}

	id := NodeID(len(a.nodes))
	a.nodes = append(a.nodes, Node{
		ID:       id,
		Parent:   parent,
		Name:     name,
		Location: location,
		Enter:    enter,
		Leave:    leave,
		Util:     util,
	})
	a.nodes[parent].Children = append(a.nodes[parent].Children, id)

	return id, nil
}

// Node returns a copy of the node with the given id.
func (a *Arena) Node(id NodeID) (Node, bool) {
	if !a.valid(id) {
		return Node{}, false
	}

	return a.nodes[id], true
}

// Children returns copies of the direct children of id in insertion order.
func (a *Arena) Children(id NodeID) []Node {
	if !a.valid(id) {
		return nil
	}

	kids := a.nodes[id].Children
	out := make([]Node, len(kids))

	for i, kid := range kids {
		out[i] = a.nodes[kid]
	}

	return out
}

// SetUtil caches a computed utilization series on a node.
func (a *Arena) SetUtil(id NodeID, util Series) error {
	if !a.valid(id) {
		return ErrUnknownNode
	}

	a.nodes[id].Util = util

	return nil
}

// Len returns the number of nodes.
func (a *Arena) Len() int {
	return len(a.nodes)
}

// Locations returns the distinct child locations under id, in first-seen order.
func (a *Arena) Locations(id NodeID) []string {
	seen := make(map[string]struct{})

	var locs []string

	for _, kid := range a.Children(id) {
		if _, ok := seen[kid.Location]; ok {
			continue
		}

		seen[kid.Location] = struct{}{}
		locs = append(locs, kid.Location)
	}

	return locs
}

func (a *Arena) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(a.nodes)
}
