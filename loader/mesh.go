package loader

import (
	"errors"

	"github.com/qmuntal/gltf"
)

// ErrNoMesh is returned when a scene graph contains no renderable mesh.
var ErrNoMesh = errors.New("no mesh found")

// FirstMesh walks the default scene depth-first, starting from its root
// nodes in order and descending into children before siblings, and returns
// the index of the first node that carries a mesh. Documents without a
// default scene are walked from scene 0, or from every node when no scene
// is declared. Cycles in malformed documents are tolerated.
func FirstMesh(doc *gltf.Document) (int, error) {
	if doc == nil {
		return -1, ErrNoMesh
	}

	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		roots = make([]int, len(doc.Nodes))
		for i := range roots {
			roots[i] = i
		}
	}

	visited := make(map[int]bool, len(doc.Nodes))
	var walk func(idx int) (int, bool)
	walk = func(idx int) (int, bool) {
		if idx < 0 || idx >= len(doc.Nodes) || visited[idx] {
			return -1, false
		}
		visited[idx] = true
		node := doc.Nodes[idx]
		if node == nil {
			return -1, false
		}
		if node.Mesh != nil && *node.Mesh >= 0 && *node.Mesh < len(doc.Meshes) {
			return idx, true
		}
		for _, child := range node.Children {
			if found, ok := walk(child); ok {
				return found, true
			}
		}
		return -1, false
	}

	for _, root := range roots {
		if found, ok := walk(root); ok {
			return found, nil
		}
	}
	return -1, ErrNoMesh
}
