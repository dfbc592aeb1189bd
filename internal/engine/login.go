package engine

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/csta/internal/observability"
	"github.com/danmuck/csta/internal/protocol/command"
	"github.com/danmuck/csta/internal/protocol/decode"
	"github.com/danmuck/csta/internal/protocol/tree"
)

const (
	// CodeCleartextRequired is the loginFailed code a server sends when it
	// wants the password in cleartext.
	CodeCleartextRequired = 4
	// MinCleartextAPIVersion is the lowest apiversion that understands the
	// cleartext retry.
	MinCleartextAPIVersion = 2
)

// loginSession is the state of the most recent Login call.
type loginSession struct {
	state     LoginState
	params    command.Params
	cleartext bool
	retried   bool
}

func (s loginSession) shouldFallback(payload tree.Record) bool {
	if s.state != LoginAwaitingResponse || s.cleartext || s.retried {
		return false
	}
	api, ok := intField(payload, "apiversion")
	if !ok || api < MinCleartextAPIVersion {
		return false
	}
	code, ok := intField(payload, "Code")
	return ok && code == CodeCleartextRequired
}

func intField(r tree.Record, key string) (int, bool) {
	raw, ok := r.Text(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return n, true
}

func (e *Engine) LoginState() LoginState {
	e.loginMu.Lock()
	defer e.loginMu.Unlock()
	return e.login.state
}

// Login sends loginRequest for user with the configured client identity.
// The password is hashed; a server that asks for cleartext gets one silent
// cleartext retry.
func (e *Engine) Login(user, password string) (int, error) {
	return e.startLogin(command.Params{
		command.ParamType:     e.cfg.LoginType,
		command.ParamPlatform: e.cfg.Platform,
		command.ParamVersion:  e.cfg.ClientVersion,
		command.ParamUserName: user,
		command.ParamPassword: password,
	})
}

func (e *Engine) startLogin(params command.Params) (int, error) {
	cmd, ok := e.registry.Lookup(command.LoginName)
	if !ok {
		log.Warn().Msg("engine login command not registered")
		return -1, nil
	}
	if !e.Connected() {
		return -1, nil
	}
	body, err := renderLogin(cmd, params, false)
	if err != nil {
		log.Warn().Err(err).Msg("engine render login failed")
		return -1, nil
	}

	e.loginMu.Lock()
	e.login = loginSession{state: LoginAwaitingResponse, params: params.Clone()}
	e.loginMu.Unlock()

	seq, err := e.send(command.LoginName, body)
	if seq < 0 {
		e.loginMu.Lock()
		e.login.state = LoginIdle
		e.loginMu.Unlock()
	}
	return seq, err
}

func renderLogin(cmd command.Command, params command.Params, cleartext bool) (string, error) {
	if mr, ok := cmd.(command.ModeRenderer); ok {
		return mr.RenderMode(params, cleartext)
	}
	return cmd.Render(params)
}

// onLoginEvent advances the login session and reports whether the event
// should reach subscribers.
func (e *Engine) onLoginEvent(res decode.Result) bool {
	switch res.EventName {
	case command.EventLoginResponse:
		e.loginMu.Lock()
		e.login.state = LoginLoggedIn
		e.loginMu.Unlock()
		log.Info().Msg("engine logged in")
		return true
	case command.EventLoginFailed:
	default:
		return true
	}

	e.loginMu.Lock()
	_, canRetry := res.Command.(command.ModeRenderer)
	if !canRetry || !e.login.shouldFallback(res.Tree) {
		if e.login.cleartext {
			e.login.state = LoginFailedFinal
		} else {
			e.login.state = LoginFailedHashed
		}
		state := e.login.state
		e.loginMu.Unlock()
		log.Warn().Str("state", state.String()).Msg("engine login failed")
		return true
	}
	e.login.cleartext = true
	e.login.retried = true
	e.login.state = LoginFailedCleartextRetrying
	params := e.login.params.Clone()
	e.loginMu.Unlock()

	observability.RecordLoginFallback()
	log.Info().Msg("engine login retry with cleartext password")
	body, err := renderLogin(res.Command, params, true)
	if err != nil {
		log.Warn().Err(err).Msg("engine render cleartext login failed")
		return e.failRetry()
	}
	seq, err := e.send(command.LoginName, body)
	if err != nil {
		e.reportFatal(err)
	}
	if seq < 0 {
		return e.failRetry()
	}
	return false
}

// failRetry ends the session when the cleartext resend could not go out;
// the loginFailed that triggered it is surfaced instead.
func (e *Engine) failRetry() bool {
	e.loginMu.Lock()
	e.login.state = LoginFailedFinal
	e.loginMu.Unlock()
	return true
}
