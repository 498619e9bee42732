package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/smtp"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingSender) messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.sent...)
}

func TestDispatcher_DeliversQueuedMessages(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 10, testLogger())
	d.Start()

	for _, to := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.True(t, d.Enqueue(Message{To: to, Subject: "hi"}))
	}
	d.Stop()

	got := sender.messages()
	require.Len(t, got, 3)
	assert.Equal(t, "a@example.com", got[0].To)
	assert.Equal(t, "c@example.com", got[2].To)
}

func TestDispatcher_StopDrainsQueue(t *testing.T) {
	sender := &recordingSender{}
	d := NewDispatcher(sender, 5, testLogger())

	// Not started yet, so everything stays queued until Stop drains it.
	for i := 0; i < 5; i++ {
		require.True(t, d.Enqueue(Message{To: "x@example.com"}))
	}
	d.Start()
	d.Stop()

	assert.Len(t, sender.messages(), 5)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 1, testLogger())

	assert.True(t, d.Enqueue(Message{To: "first@example.com"}))
	assert.False(t, d.Enqueue(Message{To: "second@example.com"}))
}

func TestDispatcher_EnqueueAfterStop(t *testing.T) {
	d := NewDispatcher(&recordingSender{}, 1, testLogger())
	d.Start()
	d.Stop()
	d.Stop()

	assert.False(t, d.Enqueue(Message{To: "late@example.com"}))
}

func TestDispatcher_AcceptedMessagesSurviveConcurrentStop(t *testing.T) {
	for round := 0; round < 50; round++ {
		sender := &recordingSender{}
		d := NewDispatcher(sender, 1000, testLogger())
		d.Start()

		var (
			wg       sync.WaitGroup
			accepted atomic.Int64
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 50; j++ {
					if d.Enqueue(Message{To: "x@example.com"}) {
						accepted.Add(1)
					}
				}
			}()
		}
		d.Stop()
		wg.Wait()

		require.Len(t, sender.messages(), int(accepted.Load()), "round %d", round)
	}
}

func TestDispatcher_SendFailureDoesNotStopWorker(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay down")}
	d := NewDispatcher(sender, 4, testLogger())
	d.Start()

	require.True(t, d.Enqueue(Message{To: "a@example.com"}))
	require.True(t, d.Enqueue(Message{To: "b@example.com"}))

	done := make(chan struct{})
	go func() {
		d.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Empty(t, sender.messages())
}

func TestSMTPSender_BuildsMultipartMessage(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotRaw  []byte
	)
	s := NewSMTPSender(SMTPConfig{
		Host:     "smtp.example.com",
		Port:     587,
		Username: "noreply@example.com",
		Password: "secret",
		FromName: "Contacts",
	})
	s.sendMail = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotRaw = addr, from, to, msg
		return nil
	}

	err := s.Send(context.Background(), Message{
		To:      "alice@example.com",
		Subject: "Confirm your email",
		Text:    "plain body",
		HTML:    "<p>html body</p>",
	})
	require.NoError(t, err)

	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "noreply@example.com", gotFrom)
	assert.Equal(t, []string{"alice@example.com"}, gotTo)

	env, err := enmime.ReadEnvelope(bytes.NewReader(gotRaw))
	require.NoError(t, err)
	assert.Equal(t, "Confirm your email", env.GetHeader("Subject"))
	assert.Contains(t, env.GetHeader("To"), "alice@example.com")
	assert.Contains(t, env.Text, "plain body")
	assert.Contains(t, env.HTML, "html body")
}

func TestSMTPSender_WrapsRelayError(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := s.Send(context.Background(), Message{To: "alice@example.com", Subject: "s", Text: "t"})
	assert.ErrorContains(t, err, "connection refused")
	assert.ErrorContains(t, err, "alice@example.com")
}

func TestSMTPSender_CanceledContext(t *testing.T) {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 25, From: "noreply@example.com"})
	s.sendMail = func(string, smtp.Auth, string, []string, []byte) error {
		t.Fatal("sendMail must not be called")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Send(ctx, Message{To: "alice@example.com"}), context.Canceled)
}

type queueFunc func(Message) bool

func (f queueFunc) Enqueue(m Message) bool { return f(m) }

func TestVerifier_Link(t *testing.T) {
	v := NewVerifier("http://localhost:8080/", nil)
	assert.Equal(t, "http://localhost:8080/auth/verify-email?token=a.b.c", v.Link("a.b.c"))
}

func TestVerifier_RenderContainsLink(t *testing.T) {
	v := NewVerifier("https://contacts.example.com", nil)

	msg, err := v.Render("alice@example.com", "tok123")
	require.NoError(t, err)

	link := "https://contacts.example.com/auth/verify-email?token=tok123"
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, verificationSubject, msg.Subject)
	assert.Contains(t, msg.Text, link)
	assert.Contains(t, msg.HTML, `href="`+link+`"`)
}

func TestVerifier_SendVerificationQueues(t *testing.T) {
	var queued []Message
	v := NewVerifier("http://localhost", queueFunc(func(m Message) bool {
		queued = append(queued, m)
		return true
	}))

	require.NoError(t, v.SendVerification(context.Background(), "bob@example.com", "t"))
	require.Len(t, queued, 1)
	assert.Equal(t, "bob@example.com", queued[0].To)
}

func TestVerifier_SendVerificationRejected(t *testing.T) {
	v := NewVerifier("http://localhost", queueFunc(func(Message) bool { return false }))

	err := v.SendVerification(context.Background(), "bob@example.com", "t")
	assert.Error(t, err)
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	require.NoError(t, s.Send(context.Background(), Message{To: "alice@example.com", Subject: "hello", Text: "link"}))
	out := buf.String()
	assert.True(t, strings.Contains(out, "alice@example.com"), out)
	assert.Contains(t, out, "hello")
}
