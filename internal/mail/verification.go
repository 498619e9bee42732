package mail

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"net/url"
	"strings"
	texttemplate "text/template"
)

const verificationSubject = "Confirm your email"

var verificationText = texttemplate.Must(texttemplate.New("text").Parse(
	`Hi {{.Email}},

Thanks for registering. Open the link below to confirm your email address:

{{.Link}}

If you did not create an account, ignore this message.
`))

var verificationHTML = htmltemplate.Must(htmltemplate.New("html").Parse(
	`<!DOCTYPE html>
<html>
<body>
<p>Hi {{.Email}},</p>
<p>Thanks for registering. Click the link below to confirm your email address:</p>
<p><a href="{{.Link}}">Confirm email</a></p>
<p>If you did not create an account, ignore this message.</p>
</body>
</html>
`))

// Enqueuer accepts messages for asynchronous delivery. *Dispatcher
// implements it.
type Enqueuer interface {
	Enqueue(msg Message) bool
}

// Verifier renders email-verification messages and hands them to a queue.
type Verifier struct {
	baseURL string
	queue   Enqueuer
}

func NewVerifier(baseURL string, queue Enqueuer) *Verifier {
	return &Verifier{baseURL: strings.TrimRight(baseURL, "/"), queue: queue}
}

// Link returns "<base-url>/auth/verify-email?token=<token>".
func (v *Verifier) Link(token string) string {
	return v.baseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
}

// Render builds the verification message for email.
func (v *Verifier) Render(email, token string) (Message, error) {
	data := struct {
		Email string
		Link  string
	}{Email: email, Link: v.Link(token)}

	var text, html bytes.Buffer
	if err := verificationText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mail: rendering text body: %w", err)
	}
	if err := verificationHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mail: rendering html body: %w", err)
	}

	return Message{
		To:      email,
		Subject: verificationSubject,
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// SendVerification renders the message and queues it. It returns once the
// message is queued, not once it is delivered.
func (v *Verifier) SendVerification(_ context.Context, email, token string) error {
	msg, err := v.Render(email, token)
	if err != nil {
		return err
	}
	if !v.queue.Enqueue(msg) {
		return fmt.Errorf("mail: verification message to %s was not queued", email)
	}
	return nil
}
