package graph

import (
	"encoding/json"
	"fmt"
	"slices"
)

// NodeType discriminates the node variants supported by the editor.
type NodeType string

// Node types.
const (
	TypeText     NodeType = "text"
	TypeLink     NodeType = "link"
	TypeImage    NodeType = "image"
	TypeAudio    NodeType = "audio"
	TypeEmbed    NodeType = "media-embed"
	TypeSocial   NodeType = "social"
	TypeSubMap   NodeType = "sub-map"
	TypePlaylist NodeType = "playlist"
)

// NodeTypes lists every supported node type in palette order.
var NodeTypes = []NodeType{
	TypeText, TypeLink, TypeImage, TypeAudio,
	TypeEmbed, TypeSocial, TypeSubMap, TypePlaylist,
}

// Valid reports whether t is one of the supported node types.
func (t NodeType) Valid() bool { return slices.Contains(NodeTypes, t) }

// Payload is the type-specific content of a node. The set of implementations
// is closed; every site that inspects a payload switches over all of them.
type Payload interface {
	// NodeType returns the node type this payload belongs to.
	NodeType() NodeType
	// Title returns the human-readable text used for search and labels.
	Title() string

	isPayload()
}

// TextData is the payload of a plain text node.
type TextData struct {
	Label string `json:"label"`
}

// LinkData is the payload of a hyperlink node.
type LinkData struct {
	URL         string `json:"url"`
	DisplayText string `json:"displayText,omitempty"`
}

// ImageData is the payload of an image node.
type ImageData struct {
	ImageURL string `json:"imageUrl"`
	Caption  string `json:"caption,omitempty"`
}

// AudioData is the payload of an audio clip node.
type AudioData struct {
	AudioURL string `json:"audioUrl"`
	Label    string `json:"label,omitempty"`
}

// EmbedData is the payload of an embedded media node (video, podcast, ...).
type EmbedData struct {
	EmbedURL string `json:"embedUrl"`
	Provider string `json:"provider,omitempty"`
}

// SocialData is the payload of a social media profile node.
type SocialData struct {
	Platform string `json:"platform"`
	Username string `json:"username"`
	URL      string `json:"url,omitempty"`
}

// SubMapData links a node to another mind map document.
type SubMapData struct {
	MapID string `json:"mapId"`
	Label string `json:"label,omitempty"`
}

// PlaylistItem is one track of a playlist node.
type PlaylistItem struct {
	Title    string `json:"title"`
	MediaURL string `json:"mediaUrl"`
}

// PlaylistData is the payload of a playlist node.
type PlaylistData struct {
	Label string         `json:"label,omitempty"`
	Items []PlaylistItem `json:"items,omitempty"`
}

func (TextData) NodeType() NodeType     { return TypeText }
func (LinkData) NodeType() NodeType     { return TypeLink }
func (ImageData) NodeType() NodeType    { return TypeImage }
func (AudioData) NodeType() NodeType    { return TypeAudio }
func (EmbedData) NodeType() NodeType    { return TypeEmbed }
func (SocialData) NodeType() NodeType   { return TypeSocial }
func (SubMapData) NodeType() NodeType   { return TypeSubMap }
func (PlaylistData) NodeType() NodeType { return TypePlaylist }

func (d TextData) Title() string  { return d.Label }
func (d ImageData) Title() string { return d.Caption }
func (d AudioData) Title() string { return d.Label }
func (d EmbedData) Title() string { return d.EmbedURL }
func (d SubMapData) Title() string {
	if d.Label != "" {
		return d.Label
	}
	return d.MapID
}
func (d PlaylistData) Title() string { return d.Label }

func (d LinkData) Title() string {
	if d.DisplayText != "" {
		return d.DisplayText
	}
	return d.URL
}

func (d SocialData) Title() string {
	if d.Username != "" {
		return "@" + d.Username
	}
	return d.URL
}

func (TextData) isPayload()     {}
func (LinkData) isPayload()     {}
func (ImageData) isPayload()    {}
func (AudioData) isPayload()    {}
func (EmbedData) isPayload()    {}
func (SocialData) isPayload()   {}
func (SubMapData) isPayload()   {}
func (PlaylistData) isPayload() {}

// EmptyPayload returns the zero payload for a node type, or nil for an
// unknown type.
func EmptyPayload(t NodeType) Payload {
	switch t {
	case TypeText:
		return TextData{}
	case TypeLink:
		return LinkData{}
	case TypeImage:
		return ImageData{}
	case TypeAudio:
		return AudioData{}
	case TypeEmbed:
		return EmbedData{}
	case TypeSocial:
		return SocialData{}
	case TypeSubMap:
		return SubMapData{}
	case TypePlaylist:
		return PlaylistData{}
	}
	return nil
}

// ClonePayload returns a deep copy of p. Payloads are values, so only those
// holding slices need copying.
func ClonePayload(p Payload) Payload {
	switch v := p.(type) {
	case PlaylistData:
		v.Items = slices.Clone(v.Items)
		return v
	case TextData, LinkData, ImageData, AudioData, EmbedData, SocialData, SubMapData:
		return v
	case nil:
		return nil
	}
	panic(fmt.Sprintf("graph: unhandled payload %T", p))
}

// DecodePayload decodes the JSON data of a node of type t.
// Empty or null data yields the zero payload for the type.
func DecodePayload(t NodeType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 || string(raw) == "null" {
		if p := EmptyPayload(t); p != nil {
			return p, nil
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
	}

	switch t {
	case TypeText:
		return decodeAs[TextData](raw)
	case TypeLink:
		return decodeAs[LinkData](raw)
	case TypeImage:
		return decodeAs[ImageData](raw)
	case TypeAudio:
		return decodeAs[AudioData](raw)
	case TypeEmbed:
		return decodeAs[EmbedData](raw)
	case TypeSocial:
		return decodeAs[SocialData](raw)
	case TypeSubMap:
		return decodeAs[SubMapData](raw)
	case TypePlaylist:
		return decodeAs[PlaylistData](raw)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownNodeType, t)
}

func decodeAs[T Payload](raw json.RawMessage) (Payload, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", v.NodeType(), err)
	}
	return v, nil
}

// DefaultSize returns the intrinsic size of a node type, used when a node has
// no explicit width/height override.
func DefaultSize(t NodeType) (w, h float64) {
	switch t {
	case TypeText:
		return 160, 40
	case TypeLink:
		return 240, 80
	case TypeImage:
		return 200, 200
	case TypeAudio:
		return 300, 80
	case TypeEmbed:
		return 320, 180
	case TypeSocial:
		return 280, 100
	case TypeSubMap:
		return 200, 60
	case TypePlaylist:
		return 300, 220
	}
	return 160, 40
}
