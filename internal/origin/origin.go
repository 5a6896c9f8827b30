package origin

import (
	"fmt"
	"net/http"
	"strings"
)

// Origin is the provider dialect of a delivery.
// The zero value is GitHub, which is also the default for webhook definitions.
type Origin int

const (
	GitHub Origin = iota
	GitLab
	Generic
)

// Header names used across dialects.
const (
	HeaderUserAgent = "User-Agent"

	HeaderGitHubHookID      = "X-GitHub-Hook-ID"
	HeaderGitHubEvent       = "X-GitHub-Event"
	HeaderGitHubDelivery    = "X-GitHub-Delivery"
	HeaderHubSignature256   = "X-Hub-Signature-256"
	HeaderHubSignature      = "X-Hub-Signature"
	HeaderGitLabEvent       = "X-Gitlab-Event"
	HeaderGitLabWebhookUUID = "X-Gitlab-Webhook-UUID"
	HeaderGitLabUUID        = "X-Gitlab-UUID"
	HeaderGitLabInstance    = "X-Gitlab-Instance"
	HeaderWebhookID         = "X-Webhook-ID"
	HeaderWebhookEvent      = "X-Webhook-Event"
	HeaderWebhookSig256     = "X-Webhook-Signature-256"
	HeaderWebhookSig        = "X-Webhook-Signature"
)

// anyEventHeader is reported when no dialect's event header is present.
const anyEventHeader = "X-*-Event"

// dialect is the capability table for one origin.
type dialect struct {
	name            string
	required        []string
	eventHeader     string
	userAgentPrefix string
	verify          func(h http.Header, secret string, body []byte) error
}

var dialects = [...]dialect{
	GitHub: {
		name:            "github",
		required:        []string{HeaderGitHubHookID, HeaderGitHubEvent, HeaderGitHubDelivery, HeaderUserAgent},
		eventHeader:     HeaderGitHubEvent,
		userAgentPrefix: "GitHub-Hookshot/",
		verify: func(h http.Header, secret string, body []byte) error {
			return verifyHMAC(h, secret, body, sha256Scheme(HeaderHubSignature256), sha1Scheme(HeaderHubSignature))
		},
	},
	GitLab: {
		name:            "gitlab",
		required:        []string{HeaderGitLabEvent, HeaderGitLabWebhookUUID, HeaderGitLabUUID, HeaderUserAgent},
		eventHeader:     HeaderGitLabEvent,
		userAgentPrefix: "Gitlab/",
		verify: func(h http.Header, _ string, _ []byte) error {
			if _, ok := headerValue(h, HeaderGitLabInstance); !ok {
				return missing(HeaderGitLabInstance)
			}
			return nil
		},
	},
	Generic: {
		name:        "generic",
		required:    []string{HeaderWebhookID, HeaderWebhookEvent, HeaderUserAgent},
		eventHeader: HeaderWebhookEvent,
		verify: func(h http.Header, secret string, body []byte) error {
			return verifyHMAC(h, secret, body, sha256Scheme(HeaderWebhookSig256), sha1Scheme(HeaderWebhookSig))
		},
	},
}

// All lists every origin in detection order.
func All() []Origin {
	return []Origin{GitHub, GitLab, Generic}
}

// Detect determines the origin of a delivery from its event header.
func Detect(h http.Header) (Origin, error) {
	for _, o := range All() {
		if hasHeader(h, dialects[o].eventHeader) {
			return o, nil
		}
	}
	return 0, missing(anyEventHeader)
}

// Valid reports whether o is a known origin.
func (o Origin) Valid() bool {
	return o >= GitHub && o <= Generic
}

func (o Origin) dialect() dialect {
	if !o.Valid() {
		return dialects[GitHub]
	}
	return dialects[o]
}

// String returns the configuration name of the origin.
func (o Origin) String() string {
	if !o.Valid() {
		return fmt.Sprintf("origin(%d)", int(o))
	}
	return dialects[o].name
}

// RequiredHeaders returns the headers a delivery of this origin must carry.
func (o Origin) RequiredHeaders() []string {
	return append([]string(nil), o.dialect().required...)
}

// ValidateHeaders checks required headers and the User-Agent prefix.
func (o Origin) ValidateHeaders(h http.Header) error {
	d := o.dialect()
	for _, name := range d.required {
		if !hasHeader(h, name) {
			return missing(name)
		}
	}

	if d.userAgentPrefix != "" {
		ua, ok := headerValue(h, HeaderUserAgent)
		if !ok {
			return missing(HeaderUserAgent)
		}
		if !strings.HasPrefix(ua, d.userAgentPrefix) {
			return ErrInvalidUserAgent
		}
	}
	return nil
}

// EventType extracts the event type string from the dialect's event header.
func (o Origin) EventType(h http.Header) (string, error) {
	d := o.dialect()
	v, ok := headerValue(h, d.eventHeader)
	if !ok {
		return "", missing(d.eventHeader)
	}
	return v, nil
}

// VerifySignature authenticates body against secret using the dialect's scheme.
func (o Origin) VerifySignature(h http.Header, secret string, body []byte) error {
	return o.dialect().verify(h, secret, body)
}

// MarshalText implements encoding.TextMarshaler.
func (o Origin) MarshalText() ([]byte, error) {
	if !o.Valid() {
		return nil, fmt.Errorf("unknown origin %d", int(o))
	}
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler so origins decode from
// YAML, TOML and JSON configuration alike.
func (o *Origin) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// Parse converts a configuration name into an Origin.
func Parse(name string) (Origin, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "github":
		return GitHub, nil
	case "gitlab":
		return GitLab, nil
	case "generic", "webhook":
		return Generic, nil
	default:
		return 0, fmt.Errorf("unknown origin %q (want github, gitlab or generic)", name)
	}
}

// hasHeader reports presence regardless of value, matching header names case-insensitively.
func hasHeader(h http.Header, name string) bool {
	_, ok := h[http.CanonicalHeaderKey(name)]
	return ok
}

func headerValue(h http.Header, name string) (string, bool) {
	values, ok := h[http.CanonicalHeaderKey(name)]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
