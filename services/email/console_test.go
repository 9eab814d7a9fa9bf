package emailsvc

import (
	"bytes"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/metalearn/core"
	appfs "github.com/trezcool/metalearn/fs"
)

func TestConsoleService_send(t *testing.T) {
	conf := core.NewTestConfig()
	require.NoError(t, core.ParseEmailTemplates(appfs.FS, conf.FrontendBaseURL, true))

	var out bytes.Buffer
	svc := &consoleService{defaultFromEmail: conf.DefaultFromEmail, subjPrefix: "[MetaLearn] ", out: &out}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: "Alice", Address: "alice@example.com"}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]string{"Name": "Alice", "UID": "uid", "Token": "tok"},
	}
	sent, err := svc.sendMessage(msg)
	require.NoError(t, err)
	assert.True(t, sent)

	printed := out.String()
	assert.Contains(t, printed, "Subject: [MetaLearn] Password Reset")
	assert.Contains(t, printed, `"Alice" <alice@example.com>`)
	assert.Contains(t, printed, "text/html")
	assert.Contains(t, msg.TextContent, "Alice")
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(core.NewTestConfig())

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{{Address: "bob@example.com"}}, Subject: "Hi", BodyStr: "Hello Bob"},
		&core.EmailMessage{Subject: "no recipient", BodyStr: "dropped"},
	)
	sent := svc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Hello Bob", sent[0].TextContent)

	svc.Reset()
	assert.Empty(t, svc.SentMessages())
}
