// Package descriptor defines the durable, portable shape of a captured
// selection. A Descriptor holds plain snapshots only: never live nodes.
package descriptor

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the serialised selection. Field names are the wire contract.
type Descriptor struct {
	ID      string  `json:"id"`
	Text    string  `json:"text"`
	Type    string  `json:"type"`
	Restore Restore `json:"restore"`
}

// Restore holds the independent locating layers, most precise first.
type Restore struct {
	Anchors         *Anchors         `json:"anchors,omitempty"`
	Paths           *Paths           `json:"paths,omitempty"`
	MultipleAnchors *MultipleAnchors `json:"multipleAnchors,omitempty"`
	Fingerprint     *Fingerprint     `json:"fingerprint,omitempty"`
	Context         *Context         `json:"context,omitempty"`
}

// Anchors identifies the boundary containers by id plus text offsets.
type Anchors struct {
	StartID       string `json:"startId"`
	EndID         string `json:"endId"`
	StartOffset   int    `json:"startOffset"`
	EndOffset     int    `json:"endOffset"`
	StartCustomID string `json:"startCustomId,omitempty"`
	EndCustomID   string `json:"endCustomId,omitempty"`
}

// Paths locates the boundary elements structurally from the root.
type Paths struct {
	StartPath       string `json:"startPath"`
	EndPath         string `json:"endPath"`
	StartOffset     int    `json:"startOffset"`
	EndOffset       int    `json:"endOffset"`
	StartTextOffset int    `json:"startTextOffset"`
	EndTextOffset   int    `json:"endTextOffset"`
}

// ElementShape describes an element without referencing it.
type ElementShape struct {
	TagName    string            `json:"tagName"`
	ClassName  string            `json:"className"`
	ID         string            `json:"id"`
	Attributes map[string]string `json:"attributes"`
}

// SiblingInfo places an element among its same-tag siblings.
type SiblingInfo struct {
	Index      int    `json:"index"`
	Total      int    `json:"total"`
	TagPattern string `json:"tagPattern"`
}

// MultipleAnchors describes each boundary element independently.
type MultipleAnchors struct {
	StartAnchors ElementShape `json:"startAnchors"`
	EndAnchors   ElementShape `json:"endAnchors"`
	CommonParent string       `json:"commonParent"`
	SiblingInfo  SiblingInfo  `json:"siblingInfo"`
}

// ChainLink is one ancestor level of a fingerprint, outward from the node.
type ChainLink struct {
	TagName   string `json:"tagName"`
	ClassName string `json:"className"`
	ID        string `json:"id"`
}

// SiblingPattern describes the element siblings around a node.
type SiblingPattern struct {
	Position   int      `json:"position"`
	Total      int      `json:"total"`
	BeforeTags []string `json:"beforeTags"`
	AfterTags  []string `json:"afterTags"`
}

// Fingerprint is the structural signature of the node expected to contain
// the selection.
type Fingerprint struct {
	TagName        string            `json:"tagName"`
	ClassName      string            `json:"className"`
	Attributes     map[string]string `json:"attributes"`
	TextLength     int               `json:"textLength"`
	ChildCount     int               `json:"childCount"`
	Depth          int               `json:"depth"`
	ParentChain    []ChainLink       `json:"parentChain"`
	SiblingPattern SiblingPattern    `json:"siblingPattern"`
}

// TextPosition is the selection span inside Context.ParentText.
type TextPosition struct {
	Start       int `json:"start"`
	End         int `json:"end"`
	TotalLength int `json:"totalLength"`
}

// Context is the last-resort layer: the enclosing paragraph text and fixed
// windows around the selection.
type Context struct {
	PrecedingText string       `json:"precedingText"`
	FollowingText string       `json:"followingText"`
	ParentText    string       `json:"parentText"`
	TextPosition  TextPosition `json:"textPosition"`
}

// Marshal encodes a descriptor.
func (d *Descriptor) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// Unmarshal validates raw against the wire schema, then decodes it.
func Unmarshal(raw []byte) (*Descriptor, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	var d Descriptor
	if err := json.Unmarshal(raw, &d); err != nil {
		return nil, fmt.Errorf("descriptor: decode: %w", err)
	}
	return &d, nil
}
