package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"

	"github.com/gorilla/websocket"
)

var (
	ErrConnectFailed   = errors.New("transport: connect failed")
	ErrUnsupportedMode = errors.New("transport: unsupported mode")
	ErrInvalidMode     = errors.New("transport: invalid mode")
	ErrHostRequired    = errors.New("transport: host required")
)

// FatalError marks a transport failure of unrecognized class. The connection
// must be considered unusable and the error surfaced to the application.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("transport: fatal %s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}

// Class groups transport errors by how the caller should react.
type Class int

const (
	ClassUnknown Class = iota
	ClassKnown
	ClassHostNotFound
	ClassCertIgnorable
	ClassCertRejected
	ClassClosed
)

func (c Class) String() string {
	switch c {
	case ClassKnown:
		return "known"
	case ClassHostNotFound:
		return "host_not_found"
	case ClassCertIgnorable:
		return "cert_ignorable"
	case ClassCertRejected:
		return "cert_rejected"
	case ClassClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Classify maps err onto a Class. Order matters: certificate errors are
// checked before generic network errors because handshakes wrap both.
func Classify(err error) Class {
	if err == nil {
		return ClassKnown
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, context.Canceled) ||
		errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, websocket.ErrCloseSent) {
		return ClassClosed
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return ClassHostNotFound
		}
		return ClassKnown
	}

	var unknownAuthority x509.UnknownAuthorityError
	var hostname x509.HostnameError
	var invalid x509.CertificateInvalidError
	switch {
	case errors.As(err, &unknownAuthority), errors.As(err, &hostname):
		return ClassCertIgnorable
	case errors.As(err, &invalid):
		if invalid.Reason == x509.Expired {
			return ClassCertIgnorable
		}
		return ClassCertRejected
	}
	var verify *tls.CertificateVerificationError
	var constraint x509.ConstraintViolationError
	var critical x509.UnhandledCriticalExtension
	if errors.As(err, &verify) || errors.As(err, &constraint) || errors.As(err, &critical) {
		return ClassCertRejected
	}

	var alert tls.AlertError
	var record tls.RecordHeaderError
	if errors.As(err, &alert) || errors.As(err, &record) {
		return ClassKnown
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, websocket.ErrBadHandshake) {
		return ClassKnown
	}
	for _, errno := range []syscall.Errno{
		syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EHOSTUNREACH,
		syscall.ENETUNREACH, syscall.ETIMEDOUT, syscall.EPIPE,
	} {
		if errors.Is(err, errno) {
			return ClassKnown
		}
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return ClassKnown
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return ClassKnown
	}
	var addrErr *net.AddrError
	var parseErr *net.ParseError
	var opErr *net.OpError
	if errors.As(err, &addrErr) || errors.As(err, &parseErr) || errors.As(err, &opErr) {
		return ClassKnown
	}
	return ClassUnknown
}

func connectFailed(cause error) error {
	return fmt.Errorf("%w: %w", ErrConnectFailed, cause)
}
