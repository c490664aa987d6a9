package content

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/h2non/filetype"
	"github.com/microcosm-cc/bluemonday"
)

const maxPreviewLen = 120

var policy = bluemonday.StrictPolicy()

// Preview strips any markup from a message body and truncates it to a length
// suitable for toasts and recent-chat rows.
func Preview(input string) string {
	clean := strings.TrimSpace(policy.Sanitize(input))
	if utf8.RuneCountInString(clean) <= maxPreviewLen {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:maxPreviewLen-1]) + "…"
}

// Allowed attachment MIME types, matching what the messaging backend accepts.
var allowedMIME = map[string]bool{
	"application/pdf": true,
}

// SniffAttachment detects the media type of an outbound attachment and
// rejects anything the backend would bounce. Returns the MIME type.
func SniffAttachment(data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("attachment is empty")
	}

	kind, err := filetype.Match(data)
	if err != nil {
		return "", fmt.Errorf("failed to sniff attachment type: %w", err)
	}
	if kind == filetype.Unknown {
		return "", fmt.Errorf("unrecognized attachment type")
	}

	mime := kind.MIME.Value
	if filetype.IsImage(data) || filetype.IsVideo(data) || filetype.IsAudio(data) || allowedMIME[mime] {
		return mime, nil
	}

	return "", fmt.Errorf("attachment type %s is not allowed", mime)
}
