// Package composer merges per-recipient data into the email template and
// attaches the rendered certificate.
package composer

import (
	"strings"

	"github.com/sendora/sendora/internal/models"
)

// Compose substitutes {{placeholder}} references in the message template
// from the resolved fields (first) and the raw row columns (second), and
// attaches the rendered certificate. Substitution is purely textual; no
// code is evaluated. Unmatched placeholders are left literally in place
// and reported as warnings, never errors, so a recipient can still receive
// an imperfect but deliverable message.
func Compose(tmpl models.MessageTemplate, resolved models.ResolvedFields, row models.RecipientRow, attachment *models.Attachment) (models.Message, []string, error) {
	lookup := func(key string) (string, bool) {
		if v, ok := resolved[key]; ok {
			return v, true
		}
		return row.Get(key)
	}

	var warnings []string
	warn := func(section, placeholder string) {
		warnings = append(warnings, "unmatched placeholder {{"+placeholder+"}} in "+section)
	}

	to := substitute(tmpl.To, lookup, func(p string) { warn("to", p) })
	subject := substitute(tmpl.Subject, lookup, func(p string) { warn("subject", p) })
	body := substitute(tmpl.Body, lookup, func(p string) { warn("body", p) })
	html := substitute(tmpl.HTMLBody, lookup, func(p string) { warn("html body", p) })

	to = strings.TrimSpace(to)
	if to == "" || !strings.Contains(to, "@") {
		return models.Message{}, warnings, models.Errorf(models.KindValidation, "recipient address %q did not resolve to an email for row %d", tmpl.To, row.Index)
	}

	msg := models.Message{
		To:       to,
		Subject:  subject,
		Body:     body,
		HTMLBody: html,
	}
	if attachment != nil {
		msg.Attachments = append(msg.Attachments, *attachment)
	}

	return msg, warnings, nil
}

// substitute runs a single scan/replace pass over the template. A
// placeholder is {{name}} with optional surrounding whitespace inside the
// braces. Unmatched placeholders stay literal and trigger onMiss.
func substitute(template string, lookup func(string) (string, bool), onMiss func(string)) string {
	if template == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(template))

	rest := template
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			b.WriteString(rest)
			return b.String()
		}
		end += start

		b.WriteString(rest[:start])

		name := strings.TrimSpace(rest[start+2 : end])
		if v, ok := lookup(name); ok && name != "" {
			b.WriteString(v)
		} else {
			// leave the placeholder literally in place
			b.WriteString(rest[start : end+2])
			onMiss(name)
		}

		rest = rest[end+2:]
	}
}
