package doc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	TypeDoc   = "doc"
	TypeImage = "image"

	AttrID            = "id"
	AttrSrc           = "src"
	AttrMediaID       = "mediaId"
	AttrCorrelationID = "correlationId"
)

var ErrNotADocument = errors.New("body is not a structured document")

// Node is one block or inline node of the structured body. The JSON shape
// follows the editor's document schema.
type Node struct {
	Type    string                 `json:"type"`
	Attrs   map[string]interface{} `json:"attrs,omitempty"`
	Content []Node                 `json:"content,omitempty"`
	Text    string                 `json:"text,omitempty"`
	Marks   []Mark                 `json:"marks,omitempty"`
}

type Mark struct {
	Type  string                 `json:"type"`
	Attrs map[string]interface{} `json:"attrs,omitempty"`
}

func Empty() Node {
	return Node{Type: TypeDoc, Content: []Node{{Type: "paragraph"}}}
}

// Parse decodes a serialized body. An empty string is the empty document.
func Parse(raw string) (Node, error) {
	if strings.TrimSpace(raw) == "" {
		return Empty(), nil
	}
	var root Node
	if err := json.Unmarshal([]byte(raw), &root); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrNotADocument, err)
	}
	if root.Type != TypeDoc {
		return Node{}, fmt.Errorf("%w: root type %q", ErrNotADocument, root.Type)
	}
	return root, nil
}

func (n Node) Marshal() (string, error) {
	raw, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(raw), nil
}

func (n Node) attr(key string) string {
	if n.Attrs == nil {
		return ""
	}
	s, _ := n.Attrs[key].(string)
	return strings.TrimSpace(s)
}

func (n Node) clone() Node {
	out := n
	if n.Attrs != nil {
		out.Attrs = make(map[string]interface{}, len(n.Attrs))
		for k, v := range n.Attrs {
			out.Attrs[k] = v
		}
	}
	if n.Content != nil {
		out.Content = make([]Node, len(n.Content))
		for i, c := range n.Content {
			out.Content[i] = c.clone()
		}
	}
	if n.Marks != nil {
		out.Marks = make([]Mark, len(n.Marks))
		copy(out.Marks, n.Marks)
	}
	return out
}

// ImageRef describes one image node.
type ImageRef struct {
	NodeID        string
	Src           string
	MediaID       string
	CorrelationID string
}

func Images(root Node) []ImageRef {
	var out []ImageRef
	walk(root, func(n Node) {
		if n.Type != TypeImage {
			return
		}
		out = append(out, ImageRef{
			NodeID:        n.attr(AttrID),
			Src:           n.attr(AttrSrc),
			MediaID:       n.attr(AttrMediaID),
			CorrelationID: n.attr(AttrCorrelationID),
		})
	})
	return out
}

func walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.Content {
		walk(c, fn)
	}
}

// AssignImageIDs returns a copy of root where every image node has a stable id.
func AssignImageIDs(root Node) Node {
	out := root.clone()
	assignIDs(&out)
	return out
}

func assignIDs(n *Node) {
	if n.Type == TypeImage && n.attr(AttrID) == "" {
		if n.Attrs == nil {
			n.Attrs = map[string]interface{}{}
		}
		n.Attrs[AttrID] = uuid.NewString()
	}
	for i := range n.Content {
		assignIDs(&n.Content[i])
	}
}

// Target locates image nodes: every node carrying CorrelationID, or the
// node with NodeID when none does.
type Target struct {
	CorrelationID string
	NodeID        string
}

// PatchImage rewrites the targeted image nodes to point at a stored asset
// and drops their correlation id. found is false when no node matches.
func PatchImage(root Node, t Target, src, mediaID string) (Node, bool) {
	rewrite := func(n *Node) {
		if n.Attrs == nil {
			n.Attrs = map[string]interface{}{}
		}
		n.Attrs[AttrSrc] = src
		n.Attrs[AttrMediaID] = mediaID
		delete(n.Attrs, AttrCorrelationID)
	}
	out := root.clone()
	if t.CorrelationID != "" && patch(&out, AttrCorrelationID, t.CorrelationID, rewrite) {
		return out, true
	}
	if t.NodeID != "" && patch(&out, AttrID, t.NodeID, rewrite) {
		return out, true
	}
	return root, false
}

// patch applies fn to every image node whose attr key equals value.
func patch(n *Node, key, value string, fn func(*Node)) bool {
	found := false
	if n.Type == TypeImage && n.attr(key) == value {
		fn(n)
		found = true
	}
	for i := range n.Content {
		if patch(&n.Content[i], key, value, fn) {
			found = true
		}
	}
	return found
}

// ImageSources lists the distinct image sources in document order.
func ImageSources(root Node) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, img := range Images(root) {
		if img.Src == "" {
			continue
		}
		if _, ok := seen[img.Src]; ok {
			continue
		}
		seen[img.Src] = struct{}{}
		out = append(out, img.Src)
	}
	return out
}

// DiffSources returns the image sources only in before and only in after.
func DiffSources(before, after Node) (removed, added []string) {
	b := ImageSources(before)
	a := ImageSources(after)
	inAfter := make(map[string]struct{}, len(a))
	for _, s := range a {
		inAfter[s] = struct{}{}
	}
	inBefore := make(map[string]struct{}, len(b))
	for _, s := range b {
		inBefore[s] = struct{}{}
		if _, ok := inAfter[s]; !ok {
			removed = append(removed, s)
		}
	}
	for _, s := range a {
		if _, ok := inBefore[s]; !ok {
			added = append(added, s)
		}
	}
	return removed, added
}
