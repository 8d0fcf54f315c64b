package engine

import (
	"fmt"
)

// Node type constants
const (
	NodeTypeInput     = "input"
	NodeTypeLLM       = "llm"
	NodeTypeCondition = "condition"
	NodeTypeTransform = "transform"
	NodeTypeOutput    = "output"
)

// Definition is the immutable workflow description submitted by callers.
// The wire format matches the flow editor's export: nodes carry their
// canvas position and a data envelope with the label and config.
type Definition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node is one typed unit of work in the workflow
type Node struct {
	ID       string   `json:"id"`
	Type     string   `json:"type"`
	Position Position `json:"position,omitempty"`
	Data     NodeData `json:"data"`
}

// Position is the node's canvas location; carried through untouched
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NodeData wraps the node's label and free-form config
type NodeData struct {
	Label  string                 `json:"label,omitempty"`
	Config map[string]interface{} `json:"config,omitempty"`
}

// Edge is a directed connection between two nodes
type Edge struct {
	ID           string `json:"id,omitempty"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
	Label        string `json:"label,omitempty"`
}

// ValidateShape checks the structural invariants enforced at submission:
// node ids present and unique, types present. Graph-level problems
// (unknown edge endpoints, cycles) are the engine's to reject and fail the
// run instead.
func (d *Definition) ValidateShape() error {
	seen := make(map[string]bool, len(d.Nodes))
	for i, node := range d.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node %d has no id", i)
		}
		if node.Type == "" {
			return fmt.Errorf("node %s has no type", node.ID)
		}
		if seen[node.ID] {
			return fmt.Errorf("duplicate node id: %s", node.ID)
		}
		seen[node.ID] = true
	}

	for i, edge := range d.Edges {
		if edge.Source == "" || edge.Target == "" {
			return fmt.Errorf("edge %d is missing an endpoint", i)
		}
	}

	return nil
}

// NodeByID returns the node with the given id, or nil
func (d *Definition) NodeByID(id string) *Node {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i]
		}
	}
	return nil
}
