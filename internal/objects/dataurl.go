package objects

import (
	"encoding/base64"
	"errors"
	"strings"
)

// ErrBadDataURL is returned for anything that is not "data:<type>;base64,<payload>".
var ErrBadDataURL = errors.New("objects: bad data URL")

// DataURL is a decoded base64 data URL.
type DataURL struct {
	ContentType string
	Data        []byte
	Ext         string
}

// ParseDataURL decodes s. A missing media type falls back to
// application/octet-stream.
func ParseDataURL(s string) (*DataURL, error) {
	meta, payload, ok := strings.Cut(s, ",")
	if !ok || payload == "" {
		return nil, ErrBadDataURL
	}

	mediaType, ok := strings.CutPrefix(meta, "data:")
	if !ok {
		return nil, ErrBadDataURL
	}
	mediaType, ok = strings.CutSuffix(mediaType, ";base64")
	if !ok {
		return nil, ErrBadDataURL
	}
	contentType := mediaType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Join(ErrBadDataURL, err)
	}

	return &DataURL{ContentType: contentType, Data: data, Ext: extFor(contentType)}, nil
}

// extFor maps the document and image types the portal accepts to a file
// extension; anything else is "bin".
func extFor(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasSuffix(ct, "pdf"):
		return "pdf"
	case strings.HasSuffix(ct, "msword"):
		return "doc"
	case strings.Contains(ct, "officedocument.wordprocessingml.document"):
		return "docx"
	case strings.HasPrefix(ct, "image/"):
		return ImageExt(ct)
	default:
		return "bin"
	}
}
