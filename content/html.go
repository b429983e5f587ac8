package content

import "strings"

// bodyTokens are the markup tokens BodyText rewrites outside an HTML
// document. An empty replacement marks a document boundary.
var bodyTokens = []struct {
	token   string
	replace string
}{
	{"<BR>", "\n"},
	{"<html>", ""},
	{"</html>", ""},
	{"&nbsp;", " "},
	{"&amp;", "&"},
	{"&lt;", "<"},
	{"&gt;", ">"},
}

// BodyText returns the body with <BR> tags and the common character entities
// turned into plain text. Text inside <html>...</html> is left alone.
func (m *MailMessage) BodyText() string {
	body := m.Body
	var b strings.Builder
	b.Grow(len(body))

	html := false
	for i := 0; i < len(body); {
		tok, repl := nextToken(body[i:])
		switch {
		case tok == "":
			b.WriteByte(body[i])
			i++
			continue
		case html:
			if strings.EqualFold(tok, "</html>") {
				html = false
			}
			b.WriteString(body[i : i+len(tok)])
		case strings.EqualFold(tok, "<html>"):
			html = true
			b.WriteString(body[i : i+len(tok)])
		case strings.EqualFold(tok, "</html>"):
			b.WriteString(body[i : i+len(tok)])
		default:
			b.WriteString(repl)
		}
		i += len(tok)
	}
	return b.String()
}

// nextToken returns the markup token starting s, matched case-insensitively,
// together with its plain text replacement.
func nextToken(s string) (string, string) {
	if s == "" || (s[0] != '<' && s[0] != '&') {
		return "", ""
	}
	for _, t := range bodyTokens {
		if len(s) >= len(t.token) && strings.EqualFold(s[:len(t.token)], t.token) {
			return s[:len(t.token)], t.replace
		}
	}
	return "", ""
}
