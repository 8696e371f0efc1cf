package delivery

import (
	"net/url"
	"path"
	"strings"

	"github.com/wavelink/bridge-server-go/internal/model"
)

var mediaExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".pdf":  "application/pdf",
}

// Hosts that serve media without a file extension in the path.
var mediaHosts = []string{
	"cdn.",
	"media.",
	"images.",
	"i.imgur.com",
}

// Classify decides once, at job construction, whether a raw string body is
// a media reference or plain text. The pipeline never re-infers the kind.
func Classify(body string) model.Payload {
	trimmed := strings.TrimSpace(body)
	if looksLikeMediaURL(trimmed) {
		return model.MediaRefPayload(trimmed)
	}
	return model.TextPayload(body)
}

func looksLikeMediaURL(s string) bool {
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return false
	}
	// A body with spaces is a sentence containing a URL, not a bare reference.
	if strings.ContainsAny(s, " \t\n") {
		return false
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return false
	}

	ext := strings.ToLower(path.Ext(u.Path))
	if _, ok := mediaExtensions[ext]; ok {
		return true
	}

	host := strings.ToLower(u.Host)
	for _, h := range mediaHosts {
		if strings.HasPrefix(host, h) || host == strings.TrimSuffix(h, ".") {
			return true
		}
	}
	return false
}

// mimeFromURL guesses a mime type from the URL extension. Used when the
// download response carries no usable Content-Type.
func mimeFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "application/octet-stream"
	}
	if m, ok := mediaExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
		return m
	}
	return "application/octet-stream"
}
