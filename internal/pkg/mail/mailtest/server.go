// Package mailtest provides an in-process SMTP server for tests.
//
// The server speaks just enough SMTP for net/smtp clients. By default it
// runs over a plain connection and advertises neither STARTTLS nor AUTH;
// options turn on STARTTLS, implicit TLS and AUTH PLAIN. TLS uses a
// self-signed certificate for 127.0.0.1 that clients trust through
// TLSConfig. Accepted messages are kept in memory and can be inspected after
// the send returns.
package mailtest

import (
	"bufio"
	"bytes"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"io"
	"math/big"
	"net"
	"net/mail"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// Message is a message accepted by the server.
type Message struct {
	From    string
	To      []string
	Subject string
	Body    string
	Raw     []byte
	// AuthUser is the username the session authenticated as, if any.
	AuthUser string
	// TLS reports whether the session was encrypted when DATA was sent.
	TLS bool
}

// Option configures a Server.
type Option func(*Server)

// WithAuth requires AUTH PLAIN with the given credentials before MAIL FROM.
func WithAuth(username, password string) Option {
	return func(s *Server) {
		s.username = username
		s.password = password
	}
}

// WithStartTLS advertises STARTTLS on the plain connection.
func WithStartTLS() Option {
	return func(s *Server) { s.startTLS = true }
}

// WithImplicitTLS speaks TLS from the first byte.
func WithImplicitTLS() Option {
	return func(s *Server) { s.implicitTLS = true }
}

// Server is a capturing SMTP server listening on a loopback port.
type Server struct {
	ln net.Listener
	wg sync.WaitGroup

	username    string
	password    string
	startTLS    bool
	implicitTLS bool
	serverTLS   *tls.Config
	roots       *x509.CertPool

	mu       sync.Mutex
	messages []Message
	reject   bool
	conns    map[net.Conn]struct{}
}

// NewServer starts a server on 127.0.0.1 and stops it when the test ends.
func NewServer(tb testing.TB, opts ...Option) *Server {
	tb.Helper()

	s := &Server{conns: make(map[net.Conn]struct{})}
	for _, opt := range opts {
		opt(s)
	}

	if s.startTLS || s.implicitTLS {
		cert, roots, err := selfSigned()
		if err != nil {
			tb.Fatalf("mailtest: certificate: %v", err)
		}
		s.serverTLS = &tls.Config{Certificates: []tls.Certificate{cert}, MinVersion: tls.VersionTLS12}
		s.roots = roots
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("mailtest: listen: %v", err)
	}
	s.ln = ln

	s.wg.Add(1)
	go s.serve()

	tb.Cleanup(s.Close)

	return s
}

// Host returns the listening host.
func (s *Server) Host() string {
	host, _, _ := net.SplitHostPort(s.ln.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	_, port, _ := net.SplitHostPort(s.ln.Addr().String())
	p, _ := strconv.Atoi(port)
	return p
}

// TLSConfig returns a client configuration that trusts the server
// certificate. It is nil when TLS is not enabled.
func (s *Server) TLSConfig() *tls.Config {
	if s.roots == nil {
		return nil
	}
	return &tls.Config{RootCAs: s.roots, MinVersion: tls.VersionTLS12}
}

// Reject makes the server refuse every recipient while enabled.
func (s *Server) Reject(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = enabled
}

// Messages returns a copy of the accepted messages in arrival order.
func (s *Server) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.messages...)
}

// Last returns the most recently accepted message.
func (s *Server) Last() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.messages) == 0 {
		return Message{}, false
	}
	return s.messages[len(s.messages)-1], true
}

// Close stops accepting connections and waits for open sessions to end.
func (s *Server) Close() {
	_ = s.ln.Close()

	s.mu.Lock()
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Server) serve() {
	defer s.wg.Done()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conns[conn] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				_ = conn.Close()
			}()
			if s.implicitTLS {
				s.session(tls.Server(conn, s.serverTLS), true)
				return
			}
			s.session(conn, false)
		}()
	}
}

func (s *Server) session(conn net.Conn, secure bool) {
	tp := textproto.NewConn(conn)

	var (
		from     string
		to       []string
		authUser string
	)

	_ = tp.PrintfLine("220 mailtest ESMTP ready")

	for {
		line, err := tp.ReadLine()
		if err != nil {
			return
		}

		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "EHLO":
			exts := []string{"mailtest"}
			if s.startTLS && !secure {
				exts = append(exts, "STARTTLS")
			}
			if s.username != "" {
				exts = append(exts, "AUTH PLAIN")
			}
			for i, ext := range exts {
				sep := "-"
				if i == len(exts)-1 {
					sep = " "
				}
				_ = tp.PrintfLine("250%s%s", sep, ext)
			}
		case "HELO":
			_ = tp.PrintfLine("250 mailtest")
		case "STARTTLS":
			if !s.startTLS || secure {
				_ = tp.PrintfLine("502 command not implemented")
				continue
			}

			_ = tp.PrintfLine("220 ready to start TLS")
			tlsConn := tls.Server(conn, s.serverTLS)
			if err := tlsConn.Handshake(); err != nil {
				return
			}

			// The client starts over with EHLO on the encrypted stream.
			tp, secure = textproto.NewConn(tlsConn), true
			from, to, authUser = "", nil, ""
		case "AUTH":
			if s.username == "" {
				_ = tp.PrintfLine("502 command not implemented")
				continue
			}

			mech, resp, _ := strings.Cut(arg, " ")
			if !strings.EqualFold(mech, "PLAIN") {
				_ = tp.PrintfLine("504 unrecognized authentication type")
				continue
			}
			if resp == "" {
				_ = tp.PrintfLine("334 ")
				if resp, err = tp.ReadLine(); err != nil {
					return
				}
			}

			user, ok := s.checkPlain(resp)
			if !ok {
				_ = tp.PrintfLine("535 authentication credentials invalid")
				continue
			}

			authUser = user
			_ = tp.PrintfLine("235 authentication successful")
		case "MAIL":
			if s.username != "" && authUser == "" {
				_ = tp.PrintfLine("530 authentication required")
				continue
			}

			from = address(arg)
			to = nil
			_ = tp.PrintfLine("250 OK")
		case "RCPT":
			s.mu.Lock()
			reject := s.reject
			s.mu.Unlock()

			if reject {
				_ = tp.PrintfLine("550 mailbox unavailable")
				continue
			}

			to = append(to, address(arg))
			_ = tp.PrintfLine("250 OK")
		case "DATA":
			if len(to) == 0 {
				_ = tp.PrintfLine("503 need RCPT first")
				continue
			}

			_ = tp.PrintfLine("354 end data with <CR><LF>.<CR><LF>")
			raw, err := tp.ReadDotBytes()
			if err != nil {
				return
			}

			s.store(Message{From: from, To: to, Raw: raw, AuthUser: authUser, TLS: secure})
			_ = tp.PrintfLine("250 OK queued")
		case "RSET":
			from, to = "", nil
			_ = tp.PrintfLine("250 OK")
		case "NOOP":
			_ = tp.PrintfLine("250 OK")
		case "QUIT":
			_ = tp.PrintfLine("221 bye")
			return
		default:
			_ = tp.PrintfLine("502 command not implemented")
		}
	}
}

// checkPlain decodes an AUTH PLAIN response ("authzid\x00user\x00pass").
func (s *Server) checkPlain(resp string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(resp)
	if err != nil {
		return "", false
	}

	parts := strings.Split(string(raw), "\x00")
	if len(parts) != 3 || parts[1] != s.username || parts[2] != s.password {
		return "", false
	}
	return parts[1], true
}

func (s *Server) store(msg Message) {
	if parsed, err := mail.ReadMessage(bufio.NewReader(bytes.NewReader(msg.Raw))); err == nil {
		msg.Subject = parsed.Header.Get("Subject")
		if body, err := io.ReadAll(parsed.Body); err == nil {
			msg.Body = strings.ReplaceAll(string(body), "\r\n", "\n")
		}
	}

	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
}

// address extracts the mailbox from "FROM:<a@b>" or "TO:<a@b> PARAM=x".
func address(arg string) string {
	_, rest, ok := strings.Cut(arg, ":")
	if !ok {
		return ""
	}

	rest = strings.TrimSpace(rest)
	if i := strings.IndexByte(rest, '>'); i >= 0 {
		rest = rest[:i]
	}

	return strings.TrimPrefix(rest, "<")
}

// selfSigned creates a short-lived certificate for 127.0.0.1 and localhost
// and a pool that trusts it.
func selfSigned() (tls.Certificate, *x509.CertPool, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 62))
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	tmpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: "mailtest"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
		DNSNames:              []string{"localhost"},
	}

	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	roots := x509.NewCertPool()
	roots.AddCert(leaf)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key, Leaf: leaf}, roots, nil
}
