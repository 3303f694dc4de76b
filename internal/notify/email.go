package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net/url"
)

// Email is a rendered transactional message.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
	// Kind labels the message for logs and broker attributes.
	Kind string `json:"kind,omitempty"`
}

const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"
)

// Sender delivers a rendered email.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

var verificationTemplate = template.Must(template.New("verification").Parse(`
<div style="font-family: Arial; line-height:1.6">
  <h2>Welcome</h2>
  <p>Click to verify your email:</p>
  <p><a href="{{.Link}}">{{.Link}}</a></p>
  <p>If the link expired, request a new verification email from the app.</p>
</div>
`))

var resetTemplate = template.Must(template.New("reset").Parse(`
<div style="font-family: Arial; line-height:1.6">
  <h2>Password reset</h2>
  <p>Click the link below to reset your password (valid for {{.ValidFor}}):</p>
  <p><a href="{{.Link}}">{{.Link}}</a></p>
  <p>If you didn't request this, you can ignore this email.</p>
</div>
`))

// Composer renders the verification and reset messages.
type Composer struct {
	apiURL string
	appURL string
}

// NewComposer takes the public API base (verification links) and the web app
// base (reset links).
func NewComposer(apiURL, appURL string) *Composer {
	return &Composer{apiURL: apiURL, appURL: appURL}
}

func (c *Composer) Verification(to, token string) (Email, error) {
	link := c.apiURL + "/auth/verify-email?token=" + url.QueryEscape(token)
	body, err := render(verificationTemplate, map[string]any{"Link": link})
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:      to,
		Subject: "Verify your email - VacationFavorites",
		HTML:    body,
		Kind:    KindVerification,
	}, nil
}

func (c *Composer) PasswordReset(to, rawToken, validFor string) (Email, error) {
	link := c.appURL + "/reset-password?token=" + url.QueryEscape(rawToken)
	body, err := render(resetTemplate, map[string]any{"Link": link, "ValidFor": validFor})
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:      to,
		Subject: "Reset your password - VacationFavorites",
		HTML:    body,
		Kind:    KindPasswordReset,
	}, nil
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s email: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}
