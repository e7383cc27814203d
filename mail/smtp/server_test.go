package smtp

import (
	"bufio"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// generateTestCert generates a self-signed certificate for testing
func generateTestCert(t *testing.T) tls.Certificate {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Test SMTP"},
			CommonName:   "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	derBytes, err := x509.CreateCertificate(rand.Reader, &template, &template, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: derBytes})

	privBytes, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: privBytes})

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	require.NoError(t, err)

	return cert
}

// fakeSMTPServer is a minimal in-process SMTP server recording one
// submission.
type fakeSMTPServer struct {
	listener net.Listener
	cert     *tls.Certificate // STARTTLS advertised when set

	mu       sync.Mutex
	authLine string
	from     string
	rcpt     string
	data     string
	upgraded bool
}

func startFakeSMTPServer(t *testing.T, cert *tls.Certificate) *fakeSMTPServer {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err, "failed to listen")

	server := &fakeSMTPServer{
		listener: listener,
		cert:     cert,
	}

	go server.run()
	t.Cleanup(func() { listener.Close() })

	return server
}

func (s *fakeSMTPServer) hostPort(t *testing.T) (string, int) {
	host, portStr, err := net.SplitHostPort(s.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func (s *fakeSMTPServer) run() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go func() {
			defer conn.Close()
			s.serve(conn, true)
		}()
	}
}

// serve speaks just enough SMTP for one submission.
func (s *fakeSMTPServer) serve(conn net.Conn, greet bool) {
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	reply := func(lines ...string) {
		for _, l := range lines {
			writer.WriteString(l + "\r\n")
		}
		writer.Flush()
	}

	if greet {
		reply("220 fake.local ESMTP Test Server")
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(line, "EHLO"), strings.HasPrefix(line, "HELO"):
			lines := []string{"250-fake.local greets you", "250-AUTH PLAIN LOGIN"}
			if s.cert != nil && !s.isUpgraded() {
				lines = append(lines, "250-STARTTLS")
			}
			lines = append(lines, "250 OK")
			reply(lines...)
		case strings.HasPrefix(line, "STARTTLS"):
			reply("220 2.0.0 Ready to start TLS")
			tlsConn := tls.Server(conn, &tls.Config{Certificates: []tls.Certificate{*s.cert}})
			if err := tlsConn.Handshake(); err != nil {
				return
			}
			s.mu.Lock()
			s.upgraded = true
			s.mu.Unlock()
			s.serve(tlsConn, false)
			return
		case strings.HasPrefix(line, "AUTH"):
			s.mu.Lock()
			s.authLine = line
			s.mu.Unlock()
			reply("235 2.7.0 Authentication successful")
		case strings.HasPrefix(line, "MAIL FROM:"):
			s.mu.Lock()
			s.from = line
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(line, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = line
			s.mu.Unlock()
			reply("250 OK")
		case line == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var body strings.Builder
			for {
				dataLine, err := reader.ReadString('\n')
				if err != nil {
					return
				}
				if strings.TrimRight(dataLine, "\r\n") == "." {
					break
				}
				body.WriteString(dataLine)
			}
			s.mu.Lock()
			s.data = body.String()
			s.mu.Unlock()
			reply("250 OK: queued")
		case line == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func (s *fakeSMTPServer) isUpgraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upgraded
}

func (s *fakeSMTPServer) received() (auth, from, rcpt, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authLine, s.from, s.rcpt, s.data
}
