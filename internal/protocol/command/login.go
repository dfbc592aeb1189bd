package command

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
)

const (
	LoginName          = "loginRequest"
	EventLoginResponse = "loginResponce"
	EventLoginFailed   = "loginFailed"

	ParamType     = "type"
	ParamPlatform = "platform"
	ParamVersion  = "version"
	ParamUserName = "userName"
	ParamPassword = "pwd"
)

// PasswordHasher turns a cleartext password into the credential sent by a
// hashed login.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// SHA1Base64 is the server's default credential form: base64(sha1(pwd)) and
// a trailing newline.
type SHA1Base64 struct{}

func (SHA1Base64) Hash(password string) (string, error) {
	sum := sha1.Sum([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:]) + "\n", nil
}

// ModeRenderer is a login command that can render either password form.
type ModeRenderer interface {
	RenderMode(params Params, cleartext bool) (string, error)
}

// Login renders loginRequest. Render always hashes; RenderMode lets the
// caller pick cleartext for servers that ask for it.
type Login struct {
	Hasher PasswordHasher
}

func NewLogin() Login {
	return Login{Hasher: SHA1Base64{}}
}

func (Login) Name() string { return LoginName }

func (Login) Events() []string {
	return []string{EventLoginResponse, EventLoginFailed}
}

func (l Login) Render(params Params) (string, error) {
	return l.RenderMode(params, false)
}

func (l Login) RenderMode(params Params, cleartext bool) (string, error) {
	password := EscapeXML(params.Get(ParamPassword))
	if !cleartext {
		hasher := l.Hasher
		if hasher == nil {
			hasher = SHA1Base64{}
		}
		hashed, err := hasher.Hash(params.Get(ParamPassword))
		if err != nil {
			return "", fmt.Errorf("command: hash password: %w", err)
		}
		password = hashed
	}
	return fmt.Sprintf(
		`%s<loginRequest type="%s" platform="%s" version="%s" push_ntf="false" push_token="" push_clean="false" push_bundle_id=""><userName>%s</userName><pwd>%s</pwd></loginRequest>`,
		XMLDeclaration,
		EscapeXML(params.Get(ParamType)),
		EscapeXML(params.Get(ParamPlatform)),
		EscapeXML(params.Get(ParamVersion)),
		EscapeXML(params.Get(ParamUserName)),
		password,
	), nil
}

// Keepalive is the fixed no-parameter frame sent on the keepalive timer.
type Keepalive struct{}

const (
	KeepaliveName = "keepalive"
	KeepaliveBody = XMLDeclaration + "<keepalive/>"
)

func (Keepalive) Name() string     { return KeepaliveName }
func (Keepalive) Events() []string { return nil }

func (Keepalive) Render(Params) (string, error) {
	return KeepaliveBody, nil
}
