package origin

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func githubHeaders() http.Header {
	h := http.Header{}
	h.Set(HeaderGitHubHookID, "123")
	h.Set(HeaderGitHubEvent, "push")
	h.Set(HeaderGitHubDelivery, "72d3162e-cc78-11e3-81ab-4c9367dc0958")
	h.Set(HeaderUserAgent, "GitHub-Hookshot/044aadd")
	return h
}

func gitlabHeaders() http.Header {
	h := http.Header{}
	h.Set(HeaderGitLabEvent, "Push Hook")
	h.Set(HeaderGitLabWebhookUUID, "16b6a1ad-8f48-4e8b-a2a1-1e5e0c3e6bbd")
	h.Set(HeaderGitLabUUID, "e0bb3ab8-2e1c-4d29-95a1-1d7a8e4d4f10")
	h.Set(HeaderUserAgent, "Gitlab/16.9.0")
	return h
}

func genericHeaders() http.Header {
	h := http.Header{}
	h.Set(HeaderWebhookID, "abc")
	h.Set(HeaderWebhookEvent, "deploy")
	h.Set(HeaderUserAgent, "curl/8.0")
	return h
}

func headersFor(o Origin) http.Header {
	switch o {
	case GitLab:
		return gitlabHeaders()
	case Generic:
		return genericHeaders()
	default:
		return githubHeaders()
	}
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
		want    Origin
		wantErr bool
	}{
		{name: "github", headers: githubHeaders(), want: GitHub},
		{name: "gitlab", headers: gitlabHeaders(), want: GitLab},
		{name: "generic", headers: genericHeaders(), want: Generic},
		{name: "none", headers: http.Header{"User-Agent": {"x"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Detect(tt.headers)
			if tt.wantErr {
				name, ok := IsMissingHeader(err)
				require.True(t, ok, "want MissingHeaderError, got %v", err)
				assert.Equal(t, "X-*-Event", name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetect_CaseInsensitiveHeaderNames(t *testing.T) {
	h := http.Header{}
	// Raw, non-canonical key as a proxy might leave it.
	h["X-Github-Event"] = []string{"push"}

	got, err := Detect(h)
	require.NoError(t, err)
	assert.Equal(t, GitHub, got)
}

// Removing any single required header must fail with exactly that header named.
func TestValidateHeaders_MissingEachRequiredHeader(t *testing.T) {
	for _, o := range All() {
		for _, name := range o.RequiredHeaders() {
			t.Run(o.String()+"/"+name, func(t *testing.T) {
				h := headersFor(o)
				h.Del(name)

				err := o.ValidateHeaders(h)
				got, ok := IsMissingHeader(err)
				require.True(t, ok, "want MissingHeaderError, got %v", err)
				assert.Equal(t, name, got)
			})
		}
	}
}

func TestValidateHeaders_Complete(t *testing.T) {
	for _, o := range All() {
		assert.NoError(t, o.ValidateHeaders(headersFor(o)), o.String())
	}
}

func TestValidateHeaders_UserAgent(t *testing.T) {
	h := githubHeaders()
	h.Set(HeaderUserAgent, "curl/8.0")
	assert.ErrorIs(t, GitHub.ValidateHeaders(h), ErrInvalidUserAgent)

	h = gitlabHeaders()
	h.Set(HeaderUserAgent, "GitHub-Hookshot/1")
	assert.ErrorIs(t, GitLab.ValidateHeaders(h), ErrInvalidUserAgent)

	// Generic accepts any agent.
	h = genericHeaders()
	h.Set(HeaderUserAgent, "anything")
	assert.NoError(t, Generic.ValidateHeaders(h))
}

func TestEventType(t *testing.T) {
	ev, err := GitHub.EventType(githubHeaders())
	require.NoError(t, err)
	assert.Equal(t, "push", ev)

	ev, err = GitLab.EventType(gitlabHeaders())
	require.NoError(t, err)
	assert.Equal(t, "Push Hook", ev)

	ev, err = Generic.EventType(genericHeaders())
	require.NoError(t, err)
	assert.Equal(t, "deploy", ev)

	// A GitLab delivery checked against a GitHub definition has no GitHub event header.
	_, err = GitHub.EventType(gitlabHeaders())
	name, ok := IsMissingHeader(err)
	require.True(t, ok)
	assert.Equal(t, HeaderGitHubEvent, name)
}

func TestGitLabSignature_PresenceOnly(t *testing.T) {
	h := gitlabHeaders()
	err := GitLab.VerifySignature(h, "secret", []byte("body"))
	name, ok := IsMissingHeader(err)
	require.True(t, ok)
	assert.Equal(t, HeaderGitLabInstance, name)

	h.Set(HeaderGitLabInstance, "https://gitlab.example.com")
	assert.NoError(t, GitLab.VerifySignature(h, "secret", []byte("body")))
}

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    Origin
		wantErr bool
	}{
		{in: "", want: GitHub},
		{in: "GitHub", want: GitHub},
		{in: "gitlab", want: GitLab},
		{in: "generic", want: Generic},
		{in: "webhook", want: Generic},
		{in: "bitbucket", wantErr: true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTextRoundTrip(t *testing.T) {
	for _, o := range All() {
		text, err := o.MarshalText()
		require.NoError(t, err)

		var back Origin
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, o, back)
	}

	_, err := Origin(42).MarshalText()
	assert.Error(t, err)
}

func TestMissingHeaderError_Message(t *testing.T) {
	err := missing(HeaderGitHubDelivery)
	assert.Equal(t, "missing required header: X-GitHub-Delivery", err.Error())
	assert.False(t, errors.Is(err, ErrInvalidSignature))
}
