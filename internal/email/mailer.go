package email

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"strings"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateElement names a part of an email template.
type TemplateElement string

const (
	ElementSubject TemplateElement = "subject"
	ElementBody    TemplateElement = "body"
)

const (
	viewSignupOTP = "signup-otp"
	viewResetOTP  = "password-reset-otp"
)

// Mailer renders the OTP templates and hands them to a Sender.
type Mailer struct {
	sender Sender
	views  map[string]*template.Template
	otpTTL time.Duration
}

// NewMailer parses the embedded templates. otpTTL is only used for the
// expiry hint shown to the recipient.
func NewMailer(sender Sender, otpTTL time.Duration) (*Mailer, error) {
	return newMailer(templateFS, sender, otpTTL)
}

func newMailer(fsys fs.FS, sender Sender, otpTTL time.Duration) (*Mailer, error) {
	m := &Mailer{sender: sender, views: make(map[string]*template.Template), otpTTL: otpTTL}
	for _, name := range []string{viewSignupOTP, viewResetOTP} {
		v, err := parseView(fsys, name)
		if err != nil {
			return nil, err
		}
		m.views[name] = v
	}
	return m, nil
}

func parseView(fsys fs.FS, name string) (*template.Template, error) {
	tmpl, err := template.New(name).ParseFS(fsys, "templates/"+name+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse email view %s: %w", name, err)
	}
	for _, el := range []TemplateElement{ElementSubject, ElementBody} {
		if tmpl.Lookup(string(el)) == nil {
			return nil, fmt.Errorf("email view %s: missing %s template", name, el)
		}
	}
	return tmpl, nil
}

type otpData struct {
	OTP       string
	ExpiresIn string
}

func (m *Mailer) SendSignupOTP(ctx context.Context, to, otp string) error {
	return m.send(ctx, viewSignupOTP, to, otpData{OTP: otp, ExpiresIn: humanDuration(m.otpTTL)})
}

func (m *Mailer) SendPasswordResetOTP(ctx context.Context, to, otp string) error {
	return m.send(ctx, viewResetOTP, to, otpData{OTP: otp, ExpiresIn: humanDuration(m.otpTTL)})
}

func (m *Mailer) send(ctx context.Context, name, to string, data any) error {
	v := m.views[name]
	var subject, body strings.Builder
	if err := v.ExecuteTemplate(&subject, string(ElementSubject), data); err != nil {
		return fmt.Errorf("render %s subject: %w", name, err)
	}
	if err := v.ExecuteTemplate(&body, string(ElementBody), data); err != nil {
		return fmt.Errorf("render %s body: %w", name, err)
	}
	return m.sender.Send(ctx, to, strings.TrimSpace(subject.String()), strings.TrimSpace(body.String()))
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a few minutes"
	case d%time.Minute == 0:
		if n := int(d / time.Minute); n != 1 {
			return fmt.Sprintf("%d minutes", n)
		}
		return "1 minute"
	default:
		return d.Round(time.Second).String()
	}
}
