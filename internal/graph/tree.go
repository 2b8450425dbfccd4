// Package graph maintains the materialized tree view over the Thing DAG and
// its fractional sibling ordering.
package graph

import (
	"sort"

	"github.com/ideate-ai/platform/internal/model"
)

// TreeNode is one node of the materialized tree view.
type TreeNode struct {
	ID       string      `json:"id"`
	Label    string      `json:"label"`
	Type     string      `json:"type,omitempty"`
	Icon     string      `json:"icon,omitempty"`
	Color    string      `json:"color,omitempty"`
	Order    float64     `json:"order"`
	Children []*TreeNode `json:"children,omitempty"`
}

// BuildTree materializes the tree rooted at the Things with no parents.
func BuildTree(things []model.Thing) []*TreeNode {
	return BuildTreeNodes(things, "", make(map[string]struct{}))
}

// BuildTreeNodes selects the children of parentID (roots when parentID is
// empty) and recurses. Each call carries the visited set of its traversal
// path; a node already on the path is skipped, so a cyclic or malformed
// parent graph still yields a finite tree.
func BuildTreeNodes(things []model.Thing, parentID string, visited map[string]struct{}) []*TreeNode {
	var nodes []*TreeNode

	for i := range things {
		t := &things[i]

		if parentID == "" {
			if len(t.ParentIDs) != 0 {
				continue
			}
		} else if !t.HasParent(parentID) {
			continue
		}

		if _, seen := visited[t.ID]; seen {
			continue
		}

		childVisited := make(map[string]struct{}, len(visited)+1)
		for id := range visited {
			childVisited[id] = struct{}{}
		}
		childVisited[t.ID] = struct{}{}

		nodes = append(nodes, &TreeNode{
			ID:       t.ID,
			Label:    t.Name,
			Type:     t.Type,
			Icon:     t.Icon,
			Color:    t.Color,
			Order:    t.Order,
			Children: BuildTreeNodes(things, t.ID, childVisited),
		})
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Order < nodes[j].Order
	})

	return nodes
}

// InsertNodeAfterTarget locates targetID at any depth and splices newNode
// immediately after it in that level's child slice. Returns false when the
// target is absent so the caller can fall back to end-of-list insertion.
func InsertNodeAfterTarget(nodes *[]*TreeNode, targetID string, newNode *TreeNode) bool {
	for i, n := range *nodes {
		if n.ID == targetID {
			*nodes = append(*nodes, nil)
			copy((*nodes)[i+2:], (*nodes)[i+1:])
			(*nodes)[i+1] = newNode
			return true
		}
		if InsertNodeAfterTarget(&n.Children, targetID, newNode) {
			return true
		}
	}
	return false
}

// InsertNodeIntoParent locates parentID at any depth and inserts newNode into
// its children, after afterSiblingID when given, else at the end. Returns
// false when the parent is absent.
func InsertNodeIntoParent(nodes []*TreeNode, parentID string, newNode *TreeNode, afterSiblingID string) bool {
	for _, n := range nodes {
		if n.ID == parentID {
			if afterSiblingID != "" && InsertNodeAfterTarget(&n.Children, afterSiblingID, newNode) {
				return true
			}
			n.Children = append(n.Children, newNode)
			return true
		}
		if InsertNodeIntoParent(n.Children, parentID, newNode, afterSiblingID) {
			return true
		}
	}
	return false
}

// FindNode returns the node with the given id at any depth, or nil.
func FindNode(nodes []*TreeNode, id string) *TreeNode {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
		if found := FindNode(n.Children, id); found != nil {
			return found
		}
	}
	return nil
}

// RemoveNode removes the node with the given id at any depth, returning it
// and its index within the sibling slice it was removed from. The returned
// siblings slice is the level the node lived on, after removal.
func RemoveNode(nodes *[]*TreeNode, id string) (removed *TreeNode, siblings []*TreeNode, index int) {
	for i, n := range *nodes {
		if n.ID == id {
			*nodes = append((*nodes)[:i], (*nodes)[i+1:]...)
			return n, *nodes, i
		}
		if r, sibs, idx := RemoveNode(&n.Children, id); r != nil {
			return r, sibs, idx
		}
	}
	return nil, nil, -1
}
