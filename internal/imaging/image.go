package imaging

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Image is an encoded picture as it travels between the front-ends and the
// generative backend.
type Image struct {
	MIMEType string
	Data     []byte
}

var ErrInvalidDataURL = errors.New("invalid data url")

func (img Image) IsZero() bool { return len(img.Data) == 0 }

func (img Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

func (img Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", img.mime(), img.Base64())
}

func (img Image) mime() string {
	if img.MIMEType == "" {
		return DetectMIME(img.Data)
	}
	return img.MIMEType
}

var dataURLRegex = regexp.MustCompile(`^data:([^;,]+)(;[^,]*)?,`)

// ParseDataURL accepts a base64 data URL or bare base64 payload.
func ParseDataURL(value string) (Image, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Image{}, ErrInvalidDataURL
	}

	mime := ""
	payload := value
	if strings.HasPrefix(value, "data:") {
		m := dataURLRegex.FindStringSubmatch(value)
		if m == nil || !strings.Contains(m[2], "base64") {
			return Image{}, ErrInvalidDataURL
		}
		mime = m[1]
		payload = value[len(m[0]):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) == 0 {
		return Image{}, ErrInvalidDataURL
	}
	if mime == "" {
		mime = DetectMIME(data)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

func FromBase64(b64, mime string) (Image, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return Image{}, fmt.Errorf("decode base64: %w", err)
	}
	if mime == "" {
		mime = DetectMIME(data)
	}
	return Image{MIMEType: mime, Data: data}, nil
}

// DetectMIME sniffs the content type, falling back to image/jpeg the way
// photo uploads from chat clients usually are.
func DetectMIME(data []byte) string {
	if isWebP(data) {
		return "image/webp"
	}
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" || mime == "application/octet-stream" {
		return "image/jpeg"
	}
	return mime
}

// NormalizeMIME strips parameters from a Content-Type header and sniffs
// when the header is missing or generic.
func NormalizeMIME(header string, data []byte) string {
	mime := strings.TrimSpace(header)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == "" || mime == "application/octet-stream" {
		return DetectMIME(data)
	}
	return mime
}

func isWebP(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP"
}
