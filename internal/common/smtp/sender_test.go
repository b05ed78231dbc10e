package smtp

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"crisis-alerts/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is a minimal SMTP relay that records the envelope and data.
type fakeServer struct {
	ln net.Listener

	mu    sync.Mutex
	from  string
	rcpts []string
	data  string
}

func startFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeServer{ln: ln}
	go s.serve()
	t.Cleanup(func() { ln.Close() })
	return s
}

func (s *fakeServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *fakeServer) handle(conn net.Conn) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 localhost ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimSpace(line)
		upper := strings.ToUpper(cmd)

		switch {
		case strings.HasPrefix(upper, "EHLO"), strings.HasPrefix(upper, "HELO"):
			reply("250 localhost")
		case strings.HasPrefix(upper, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.Trim(cmd[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(upper, "RCPT TO:"):
			s.mu.Lock()
			s.rcpts = append(s.rcpts, strings.Trim(cmd[len("RCPT TO:"):], "<> "))
			s.mu.Unlock()
			reply("250 OK")
		case upper == "DATA":
			reply("354 End data with <CR><LF>.<CR><LF>")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = b.String()
			s.mu.Unlock()
			reply("250 OK queued")
		case upper == "QUIT":
			reply("221 Bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func createConfig(port int) Config {
	return Config{Host: "127.0.0.1", Port: port, DefaultFrom: "alerts@crisisscope.org"}
}

func TestSender_Send(t *testing.T) {
	srv := startFakeServer(t)
	sender := NewSender(createConfig(srv.port()))

	id, err := sender.Send(context.Background(), models.EmailMessage{
		To:      "ops@crisisscope.org",
		CC:      []string{"gov@region.example", "ngo@relief.example"},
		Subject: "URGENT: HIGH drought crisis alert",
		Body:    "Line one\nLine two",
	})

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(id, "<") && strings.HasSuffix(id, "@127.0.0.1>"))

	srv.mu.Lock()
	defer srv.mu.Unlock()
	assert.Equal(t, "alerts@crisisscope.org", srv.from)
	assert.Equal(t, []string{"ops@crisisscope.org", "gov@region.example", "ngo@relief.example"}, srv.rcpts)
	assert.Contains(t, srv.data, "Cc: gov@region.example, ngo@relief.example\r\n")
	assert.Contains(t, srv.data, "Subject: URGENT: HIGH drought crisis alert\r\n")
	assert.Contains(t, srv.data, "Message-ID: "+id)
	assert.Contains(t, srv.data, "Line one\r\nLine two")
}

func TestSender_Verify(t *testing.T) {
	srv := startFakeServer(t)
	assert.NoError(t, NewSender(createConfig(srv.port())).Verify(context.Background()))

	cfg := createConfig(srv.port())
	cfg.DefaultFrom = ""
	assert.ErrorContains(t, NewSender(cfg).Verify(context.Background()), "default from")
}

func TestSender_ConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	err = NewSender(createConfig(port)).Verify(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect")
}

func TestBuildMessage_OmitsEmptyCC(t *testing.T) {
	msg := buildMessage(models.EmailMessage{From: "a@b.org", To: "c@d.org", Subject: "s", Body: "b"}, "<1@x>")
	assert.NotContains(t, msg, "Cc:")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nb"))
}

func TestConfig_Addr(t *testing.T) {
	assert.Equal(t, "smtp.example.com:"+strconv.Itoa(587), Config{Host: "smtp.example.com", Port: 587}.addr())
}
