// Copyright (c) 2026 Keygate. All rights reserved.
// Author: dev@keygate.dev

package mail

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// Sender identifies the from-address applied to every built message.
type Sender struct {
	Address string
	Name    string
}

// magicLinkTemplate renders the sign-in link email.
var magicLinkTemplate = template.Must(template.New("magic_link").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <h2>Sign in to {{.AppName}}</h2>
  <p>Click the button below to sign in. This link expires in {{.ExpiryMinutes}} minutes and can only be used once.</p>
  <p><a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background: #111; color: #fff; text-decoration: none; border-radius: 6px;">Sign in</a></p>
  <p>If the button does not work, copy this URL into your browser:</p>
  <p><a href="{{.Link}}">{{.Link}}</a></p>
  <p>If you did not request this email, you can safely ignore it.</p>
</body>
</html>`))

// otpTemplate renders the verification code email.
var otpTemplate = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #1a1a1a;">
  <h2>Your {{.AppName}} verification code</h2>
  <p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">{{.Code}}</p>
  <p>This code expires in {{.ExpiryMinutes}} minutes.</p>
  <p>If you did not request this code, you can safely ignore this email.</p>
</body>
</html>`))

// BuildMagicLink renders the magic-link email for the given sign-in URL.
func BuildMagicLink(sender Sender, appName, to, link string, expiry time.Duration) (Message, error) {
	data := struct {
		AppName       string
		Link          string
		ExpiryMinutes int
	}{
		AppName:       appName,
		Link:          link,
		ExpiryMinutes: int(expiry.Minutes()),
	}

	var body bytes.Buffer
	if err := magicLinkTemplate.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("mail: magic link template failed: %w", err)
	}

	return Message{
		To:       to,
		From:     sender.Address,
		FromName: sender.Name,
		Subject:  fmt.Sprintf("Sign in to %s", appName),
		HTML:     body.String(),
		Text:     fmt.Sprintf("Sign in to %s: %s (expires in %d minutes)", appName, link, data.ExpiryMinutes),
	}, nil
}

// BuildOTP renders the one-time password email for the given code.
func BuildOTP(sender Sender, appName, to, code string, expiry time.Duration) (Message, error) {
	data := struct {
		AppName       string
		Code          string
		ExpiryMinutes int
	}{
		AppName:       appName,
		Code:          code,
		ExpiryMinutes: int(expiry.Minutes()),
	}

	var body bytes.Buffer
	if err := otpTemplate.Execute(&body, data); err != nil {
		return Message{}, fmt.Errorf("mail: otp template failed: %w", err)
	}

	return Message{
		To:       to,
		From:     sender.Address,
		FromName: sender.Name,
		Subject:  fmt.Sprintf("Your %s verification code", appName),
		HTML:     body.String(),
		Text:     fmt.Sprintf("Your %s verification code is %s (expires in %d minutes)", appName, code, data.ExpiryMinutes),
	}, nil
}
