package command

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/csta/internal/testutil/testlog"
)

func TestEscapeRoundTrip(t *testing.T) {
	in := `Tom & "Jerry" <'cat'>`
	esc := EscapeXML(in)
	if esc != "Tom &amp; &quot;Jerry&quot; &lt;&#x27;cat&#x27;&gt;" {
		t.Fatalf("escape=%q", esc)
	}
	if got := UnescapeXML(esc); got != in {
		t.Fatalf("unescape=%q", got)
	}
}

func TestLoginRenderModes(t *testing.T) {
	testlog.Start(t)
	params := Params{
		ParamType:     "User",
		ParamPlatform: "iPhone",
		ParamVersion:  "7.0",
		ParamUserName: "a&b",
		ParamPassword: "secret",
	}
	l := NewLogin()

	hashed, err := l.Render(params)
	if err != nil {
		t.Fatalf("render hashed: %v", err)
	}
	// sha1("secret") base64
	if !strings.Contains(hashed, "<pwd>5en6G6MezRroT3XKqkdPOmY/BfQ=\n</pwd>") {
		t.Fatalf("hashed body: %s", hashed)
	}
	if !strings.HasPrefix(hashed, XMLDeclaration+`<loginRequest type="User" platform="iPhone" version="7.0"`) {
		t.Fatalf("unexpected prefix: %s", hashed)
	}
	if !strings.Contains(hashed, "<userName>a&amp;b</userName>") {
		t.Fatalf("username not escaped: %s", hashed)
	}

	plain, err := l.RenderMode(params, true)
	if err != nil {
		t.Fatalf("render cleartext: %v", err)
	}
	if !strings.Contains(plain, "<pwd>secret</pwd>") {
		t.Fatalf("cleartext body: %s", plain)
	}
}

type failingHasher struct{}

func (failingHasher) Hash(string) (string, error) { return "", errors.New("no entropy") }

func TestLoginHasherFailure(t *testing.T) {
	testlog.Start(t)
	_, err := Login{Hasher: failingHasher{}}.Render(Params{ParamPassword: "x"})
	if err == nil || !strings.Contains(err.Error(), "no entropy") {
		t.Fatalf("expected hasher error, got %v", err)
	}
	if _, err := (Login{Hasher: failingHasher{}}).RenderMode(Params{ParamPassword: "x"}, true); err != nil {
		t.Fatalf("cleartext must not hash: %v", err)
	}
}

func TestPresenceNoteVariants(t *testing.T) {
	p := Presence{}
	cases := []struct {
		params Params
		want   string
	}{
		{Params{"status": "Available"}, `<presence status="Available"><presenceNote/></presence>`},
		{Params{"status": "Away", "note": ""}, `<presence status="Away"></presence>`},
		{Params{"status": "Busy", "note": "in <call>"}, `<presence status="Busy"><presenceNote>in &lt;call&gt;</presenceNote></presence>`},
	}
	for _, tc := range cases {
		got, err := p.Render(tc.params)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got != XMLDeclaration+tc.want {
			t.Fatalf("got=%s want=%s", got, tc.want)
		}
	}
}

func TestMessageUsesGeneratedID(t *testing.T) {
	m := Message{NewID: func() string { return "77" }}
	got, err := m.Render(Params{"userId": "42", "ext": "", "text": "hi & bye"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := XMLDeclaration + `<message to="42" msgId="77" ext="">hi &amp; bye</message>`
	if got != want {
		t.Fatalf("got=%s", got)
	}
	if id := NewMessageID(); id == "" || strings.Trim(id, "0123456789") != "" {
		t.Fatalf("generated id %q is not decimal", id)
	}
}

func TestUnixTimestampFallsBackToRaw(t *testing.T) {
	when := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	if got := UnixTimestamp(when.Format(time.RFC3339)); got != "1709294400" {
		t.Fatalf("rfc3339 got=%s", got)
	}
	if got := UnixTimestamp("2024-03-01 12:00:00"); got != "1709294400" {
		t.Fatalf("space layout got=%s", got)
	}
	if got := UnixTimestamp("last tuesday"); got != "last tuesday" {
		t.Fatalf("fallback got=%s", got)
	}
	body, err := MessageHistory{}.Render(Params{"timestamp": "last tuesday"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(body, `timestamp="last tuesday"`) {
		t.Fatalf("body=%s", body)
	}
}

func TestAddressBookIndex(t *testing.T) {
	got, err := AddressBook{}.Render(nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(got, `index="0"`) {
		t.Fatalf("default index missing: %s", got)
	}
	if _, err := (AddressBook{}).Render(Params{"index": "x"}); err == nil {
		t.Fatalf("expected index error")
	}
}

func TestFuncCommand(t *testing.T) {
	f := Func{
		CommandName: "custom",
		EventNames:  []string{"customResponse"},
		Body: func(p Params) (string, error) {
			return XMLDeclaration + "<custom id=\"" + p.Get("id") + "\"/>", nil
		},
	}
	if !Expects(f, "customResponse") || Expects(f, "custom") {
		t.Fatalf("unexpected event declaration")
	}
	got, _ := f.Render(Params{"id": "1"})
	if !strings.HasSuffix(got, `<custom id="1"/>`) {
		t.Fatalf("got=%s", got)
	}
	empty, err := Func{CommandName: "noop"}.Render(nil)
	if err != nil || empty != "" {
		t.Fatalf("nil body got=%q err=%v", empty, err)
	}
}

func TestKeepaliveRendersFixedBody(t *testing.T) {
	testlog.Start(t)
	got, err := Keepalive{}.Render(Params{"ignored": "x"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != KeepaliveBody {
		t.Fatalf("body=%q", got)
	}
	if got != XMLDeclaration+"<keepalive/>" {
		t.Fatalf("body=%q", got)
	}
}
