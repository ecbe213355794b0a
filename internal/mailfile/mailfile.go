// Package mailfile loads messages from disk into the core email model and
// rejects anything that is not a deliverable email.
package mailfile

import (
	"bytes"
	"errors"
	"fmt"
	"mime"
	"os"
	"strings"

	"github.com/emersion/go-message/charset"
	"github.com/jhillyerd/enmime"

	"github.com/mikey/mail-spam-analyzer/internal/core"
)

// ErrInvalidEmail is returned for input that does not parse as a message or
// lacks the Received and From headers every delivered message carries
var ErrInvalidEmail = errors.New("not a valid email")

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// Parse converts a raw RFC 5322 message
func Parse(raw []byte) (*core.Email, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEmail, err)
	}

	headers := make(map[string][]string, len(env.Root.Header))
	for key, values := range env.Root.Header {
		headers[key] = append([]string(nil), values...)
	}

	email := &core.Email{
		ID:      strings.TrimSpace(env.Root.Header.Get("Message-ID")),
		From:    decodeHeader(env.Root.Header.Get("From")),
		Subject: decodeHeader(env.Root.Header.Get("Subject")),
		Body:    env.Text,
		Headers: headers,
		Raw:     raw,
	}
	if env.HTML != "" {
		email.Body = env.HTML
		email.HTML = true
	}

	if to := env.Root.Header.Get("To"); to != "" {
		for _, addr := range strings.Split(decodeHeader(to), ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				email.To = append(email.To, addr)
			}
		}
	}

	for _, part := range append(env.Attachments, env.Inlines...) {
		if part.FileName == "" && strings.HasPrefix(part.ContentType, "text/") {
			continue
		}
		email.Attachments = append(email.Attachments, core.Attachment{
			FileName:    part.FileName,
			ContentType: part.ContentType,
			Size:        len(part.Content),
		})
	}

	return email, nil
}

// Validate reports ErrInvalidEmail when a required header is missing
func Validate(email *core.Email) error {
	for _, name := range []string{"Received", "From"} {
		if _, ok := email.Header(name); !ok {
			return fmt.Errorf("%w: missing %s header", ErrInvalidEmail, name)
		}
	}
	return nil
}

// Load reads, parses and validates the message at path
func Load(path string) (*core.Email, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	email, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	email.Source = path
	if err := Validate(email); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return email, nil
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}
