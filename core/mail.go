package core

import (
	"bytes"
	htmltmpl "html/template"
	"io/fs"
	"net/mail"
	"path"
	"strings"
	"sync"
	texttmpl "text/template"

	"github.com/pkg/errors"
)

const emailTemplatesDir = "templates/email"

var templates = tmplCache{entries: make(map[string]tmplCacheEntry)}

type (
	tmplCacheEntry struct {
		text *texttmpl.Template
		html *htmltmpl.Template
	}

	tmplCache struct {
		mu              sync.RWMutex
		entries         map[string]tmplCacheEntry // {name: {tmplCacheEntry}}
		frontendBaseURL string
	}

	EmailMessage struct {
		To      []mail.Address
		Subject string
		BodyStr string // simple text/plain, non-templated content

		// templated contents
		TemplateName string // without ext
		TemplateData interface{}
		TextContent  string
		HTMLContent  string
	}

	ContextData struct {
		FrontendBaseURL string
		Data            interface{}
	}

	// EmailService is any service that can send emails
	EmailService interface {
		// SendMessages sends messages concurrently
		SendMessages(messages ...*EmailMessage)
	}
)

// ParseEmailTemplates parses every `<name>.txt` & `<name>.gohtml` pair found under templates/email in fsys.
// files prefixed with "_" are base layouts.
// In strict mode (debug, tests) rendering fails on missing template data keys.
func ParseEmailTemplates(fsys fs.FS, frontendBaseURL string, strict bool) error {
	entries, err := fs.ReadDir(fsys, emailTemplatesDir)
	if err != nil {
		return errors.Wrap(err, "reading email templates dir")
	}

	parsed := make(map[string]tmplCacheEntry)
	for _, e := range entries {
		fname := e.Name()
		ext := path.Ext(fname)
		if e.IsDir() || strings.HasPrefix(fname, "_") || !(ext == ".txt" || ext == ".gohtml") {
			continue
		}
		name := strings.TrimSuffix(fname, ext)
		entry := parsed[name]
		fp := path.Join(emailTemplatesDir, fname)

		if ext == ".txt" {
			tmpl, err := texttmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.txt"), fp)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.text = tmpl
		} else {
			tmpl, err := htmltmpl.ParseFS(fsys, path.Join(emailTemplatesDir, "_base.gohtml"), fp)
			if err != nil {
				return errors.Wrapf(err, "parsing %s", fname)
			}
			if strict {
				tmpl = tmpl.Option("missingkey=error")
			}
			entry.html = tmpl
		}
		parsed[name] = entry
	}

	templates.mu.Lock()
	templates.entries = parsed
	templates.frontendBaseURL = frontendBaseURL
	templates.mu.Unlock()
	return nil
}

func (m *EmailMessage) getContextData() ContextData {
	templates.mu.RLock()
	defer templates.mu.RUnlock()
	return ContextData{
		FrontendBaseURL: templates.frontendBaseURL,
		Data:            m.TemplateData,
	}
}

func (m *EmailMessage) getTemplate() (tmplCacheEntry, bool) {
	templates.mu.RLock()
	defer templates.mu.RUnlock()
	entry, ok := templates.entries[m.TemplateName]
	return entry, ok
}

// Render fills TextContent & HTMLContent from BodyStr or the message's template.
func (m *EmailMessage) Render() error {
	if m.BodyStr != "" {
		m.TextContent = m.BodyStr
		return nil
	}
	if m.TemplateName == "" {
		return nil
	}

	entry, ok := m.getTemplate()
	if !ok {
		return errors.Errorf("email template %q not found", m.TemplateName)
	}
	data := m.getContextData()

	var buff bytes.Buffer
	if entry.text != nil {
		if err := entry.text.Execute(&buff, data); err != nil {
			return errors.Wrap(err, "rendering text template")
		}
		m.TextContent = buff.String()
	}
	if entry.html != nil {
		buff.Reset()
		if err := entry.html.Execute(&buff, data); err != nil {
			return errors.Wrap(err, "rendering html template")
		}
		m.HTMLContent = buff.String()
	}
	return nil
}

func (m *EmailMessage) HasRecipients() bool { return len(m.To) > 0 }
func (m *EmailMessage) HasContent() bool    { return (m.TextContent != "") || (m.HTMLContent != "") }
