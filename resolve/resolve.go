// Package resolve normalizes video references into a stable VideoID.
// Pure parsing, no network access.
package resolve

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"tubedigest/model"
)

var ErrNotAVideoReference = errors.New("not a video reference")

var (
	shortLinkPattern = regexp.MustCompile(`(?:https?://)?(?:www\.)?youtu\.be/([a-zA-Z0-9_-]{11})`)
	watchPattern     = regexp.MustCompile(`(?:https?://)?(?:www\.|m\.)?youtube\.com/(?:watch\?v=|shorts/|embed/|live/)([a-zA-Z0-9_-]{11})`)
	rawIDPattern     = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// VideoID extracts the video identifier from a raw id, a canonical watch
// URL, a youtu.be short link, a shorts/embed/live URL, or any URL carrying
// a v= query parameter. Different shapes of the same video yield the same
// VideoID.
func VideoID(input string) (model.VideoID, error) {
	input = strings.TrimSpace(input)
	if rawIDPattern.MatchString(input) {
		return model.VideoID(input), nil
	}
	if m := shortLinkPattern.FindStringSubmatch(input); m != nil {
		return model.VideoID(m[1]), nil
	}
	if m := watchPattern.FindStringSubmatch(input); m != nil {
		return model.VideoID(m[1]), nil
	}
	if u, err := url.Parse(input); err == nil {
		if v := u.Query().Get("v"); rawIDPattern.MatchString(v) {
			return model.VideoID(v), nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrNotAVideoReference, input)
}
