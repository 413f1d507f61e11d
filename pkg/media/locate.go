package media

import "strings"

// Element describes the DOM element a user picked, with the attributes of
// up to three ancestors (nearest first).
type Element struct {
	Tag     string              `json:"tag"`
	Src     string              `json:"src"`
	Attrs   map[string]string   `json:"attrs"`
	Parents []map[string]string `json:"parents"`
}

const maxParentDepth = 3

var (
	elementMediaAttrs = []string{"data-gif", "data-gif-src", "data-animated-src", "data-original", "data-video-src", "data-mp4"}
	parentMediaAttrs  = []string{"data-gif", "data-gif-src", "data-video-src", "data-mp4", "href"}
	animatedMarkers   = []string{".gif", ".mp4", ".webm", ".mov"}
)

// Locate returns the best URL for the element: a full-motion source named
// by a data attribute beats a static preview src.
func Locate(el Element) string {
	target := el.Src
	for _, a := range elementMediaAttrs {
		if v := strings.TrimSpace(el.Attrs[a]); v != "" {
			target = v
			break
		}
	}

	for i, parent := range el.Parents {
		if i >= maxParentDepth {
			break
		}
		var v string
		for _, a := range parentMediaAttrs {
			if v = strings.TrimSpace(parent[a]); v != "" {
				break
			}
		}
		if v != "" && containsAny(strings.ToLower(v), animatedMarkers...) {
			return v
		}
	}
	return target
}
