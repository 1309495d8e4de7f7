package friendlyerr

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Category int

// After Unknown, declaration order is match precedence.
const (
	Unknown Category = iota
	AnalysisMalformed
	Auth
	RateLimit
	Safety
	FaceNotDetected
	ImageTooSmall
	ImageTooLarge
	ImageCorrupt
	InvalidArgument
	NoImageWithText
	NoImage
	NotFound
	Network
	Server
)

var categoryNames = map[Category]string{
	Unknown:           "unknown",
	AnalysisMalformed: "analysis_malformed",
	Auth:              "auth",
	RateLimit:         "rate_limit",
	Safety:            "safety",
	FaceNotDetected:   "face_not_detected",
	ImageTooSmall:     "image_too_small",
	ImageTooLarge:     "image_too_large",
	ImageCorrupt:      "image_corrupt",
	InvalidArgument:   "invalid_argument",
	NoImageWithText:   "no_image_with_text",
	NoImage:           "no_image",
	NotFound:          "not_found",
	Network:           "network",
	Server:            "server",
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "unknown"
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Friendly is the user-facing form of a backend or validation error.
type Friendly struct {
	Category   Category `json:"category"`
	Message    string   `json:"message"`
	RetryAfter int      `json:"retry_after,omitempty"`
}

// DefaultRetryAfter applies when a rate-limit error carries no usable delay.
const DefaultRetryAfter = 60

type Translator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Translator {
	return &Translator{logger: logger}
}

var nop = New(zerolog.Nop())

// Translate classifies err without logging.
func Translate(err error) Friendly {
	return nop.Translate(err)
}

func (t *Translator) Translate(err error) (out Friendly) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error().Interface("panic", r).Msg("error translation failed")
			out = Friendly{Category: Unknown, Message: msgDefault}
		}
	}()

	if err == nil {
		return Friendly{Category: Unknown, Message: msgDefault}
	}

	raw := err.Error()
	// Casers keep state; one per call.
	lower := cases.Lower(language.Und).String(raw)

	switch {
	case strings.Contains(lower, "did not return valid json for gender analysis"):
		return Friendly{Category: AnalysisMalformed, Message: msgAnalysisMalformed}

	case containsAny(lower, "api_key_missing", "api key not valid", "api_key_invalid", "permission_denied"):
		return Friendly{Category: Auth, Message: msgAuth}

	case containsAny(lower, "resource_exhausted", "exceeded your current quota", "quota", "429"):
		return Friendly{Category: RateLimit, Message: msgRateLimit, RetryAfter: retryAfter(raw)}

	case containsAny(lower, "safety", "blocked"):
		detail := ""
		if m := safetyCategoryRegex.FindStringSubmatch(raw); m != nil {
			detail = fmt.Sprintf(msgSafetyCategory, m[1])
		}
		return Friendly{Category: Safety, Message: fmt.Sprintf(msgSafetyFormat, detail)}

	case strings.Contains(lower, "face") && containsAny(lower, "not clear", "not detected"):
		return Friendly{Category: FaceNotDetected, Message: msgFaceNotDetected}
	case containsAny(lower, "image is too small", "resolution is too low"):
		return Friendly{Category: ImageTooSmall, Message: msgImageTooSmall}
	case containsAny(lower, "image is too large", "resolution is too high"):
		return Friendly{Category: ImageTooLarge, Message: msgImageTooLarge}
	case containsAny(lower, "invalid data url", "image may be corrupted", "unsupported image"):
		return Friendly{Category: ImageCorrupt, Message: msgImageCorrupt}

	case containsAny(lower, "invalid argument", "invalid_argument"):
		return Friendly{Category: InvalidArgument, Message: msgInvalidArgument}

	case strings.Contains(lower, "model did not return an image but provided a text response:"):
		explanation := modelExplanation(raw)
		if explanation == "" {
			explanation = msgNoExplanation
		}
		return Friendly{Category: NoImageWithText, Message: fmt.Sprintf(msgNoImageWithText, explanation)}
	case strings.Contains(lower, "did not return an image"):
		return Friendly{Category: NoImage, Message: msgNoImage}

	case strings.Contains(lower, "404") && containsAny(lower, "not_found", "not found"):
		return Friendly{Category: NotFound, Message: msgNotFound}

	case isTransportError(err) && containsAny(lower, "dial", "connection", "no such host", "timeout", "eof", "fetch"):
		return Friendly{Category: Network, Message: msgNetwork}

	case containsAny(lower, "internal", "unavailable", "500", "503"):
		return Friendly{Category: Server, Message: msgServer}
	}

	t.logger.Warn().Str("raw", raw).Msg("unhandled backend error")
	return Friendly{Category: Unknown, Message: msgDefault}
}

// Scoped renders a translated error with a prefix naming the failed action.
func (t *Translator) Scoped(scope string, err error) string {
	return scope + ": " + t.Translate(err).Message
}

func Scoped(scope string, err error) string {
	return nop.Scoped(scope, err)
}

var (
	safetyCategoryRegex = regexp.MustCompile(`(?i)category:\s*(\w+)`)
	retryInRegex        = regexp.MustCompile(`(?i)retry in (\d+(?:\.\d+)?)`)
	leadingNumberRegex  = regexp.MustCompile(`^\s*(\d+(?:\.\d+)?)`)
)

const retryInfoType = "type.googleapis.com/google.rpc.RetryInfo"

type errorEnvelope struct {
	Error struct {
		Details []map[string]any `json:"details"`
	} `json:"error"`
}

// retryAfter prefers the structured RetryInfo detail, then the textual hint.
func retryAfter(raw string) int {
	seconds, ok := retryFromJSON(raw)
	if !ok {
		seconds, ok = retryFromText(raw)
	}
	if !ok {
		return DefaultRetryAfter
	}
	return int(math.Ceil(math.Max(seconds, 1)))
}

func retryFromJSON(raw string) (float64, bool) {
	fragment := extractJSONFragment(strings.ReplaceAll(raw, "`", ""))
	if fragment == "" {
		return 0, false
	}

	var env errorEnvelope
	if err := json.Unmarshal([]byte(fragment), &env); err != nil {
		return 0, false
	}

	for _, d := range env.Error.Details {
		if typ, _ := d["@type"].(string); typ != retryInfoType {
			continue
		}
		delay, _ := d["retryDelay"].(string)
		if m := leadingNumberRegex.FindStringSubmatch(delay); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				return v, true
			}
		}
	}
	return 0, false
}

func retryFromText(raw string) (float64, bool) {
	m := retryInRegex.FindStringSubmatch(raw)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractJSONFragment(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ""
	}
	return raw[start : end+1]
}

func modelExplanation(raw string) string {
	const marker = `text response: "`
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len(marker):]
	return strings.TrimSpace(strings.TrimSuffix(rest, `"`))
}

func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
