package delivery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wavelink/bridge-server-go/internal/model"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		body string
		kind model.PayloadKind
	}{
		{"plain text", "hello there", model.PayloadText},
		{"empty body", "", model.PayloadText},
		{"image url", "https://example.com/photo.jpg", model.PayloadMediaRef},
		{"image url with query", "https://example.com/photo.png?w=600", model.PayloadMediaRef},
		{"video url", "http://example.com/clip.mp4", model.PayloadMediaRef},
		{"pdf url", "https://example.com/catalog.pdf", model.PayloadMediaRef},
		{"cdn host without extension", "https://cdn.example.com/assets/12345", model.PayloadMediaRef},
		{"imgur host", "https://i.imgur.com/abc123", model.PayloadMediaRef},
		{"url with surrounding whitespace", "  https://example.com/photo.jpg  ", model.PayloadMediaRef},
		{"plain web page url", "https://example.com/about", model.PayloadText},
		{"sentence containing a url", "check this https://example.com/photo.jpg out", model.PayloadText},
		{"bare domain", "example.com/photo.jpg", model.PayloadText},
		{"uppercase extension", "https://example.com/PHOTO.JPG", model.PayloadMediaRef},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Classify(tt.body)
			assert.Equal(t, tt.kind, p.Kind)
			switch tt.kind {
			case model.PayloadText:
				assert.Equal(t, tt.body, p.Text)
			case model.PayloadMediaRef:
				assert.NotEmpty(t, p.MediaURL)
			}
		})
	}
}

func TestMimeFromURL(t *testing.T) {
	assert.Equal(t, "image/jpeg", mimeFromURL("https://example.com/a.jpg"))
	assert.Equal(t, "image/png", mimeFromURL("https://example.com/a.png?x=1"))
	assert.Equal(t, "video/mp4", mimeFromURL("https://example.com/clips/a.mp4"))
	assert.Equal(t, "application/octet-stream", mimeFromURL("https://example.com/unknown"))
}
