package mailer

import (
	"context"
	"errors"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWelcomeMessage(t *testing.T) {
	msg := WelcomeMessage("anna@example.dk", " Anna ")
	assert.Equal(t, "anna@example.dk", msg.To)
	assert.Equal(t, TemplateWelcome, msg.Template)
	assert.True(t, strings.HasPrefix(msg.Body, "Hej Anna,"))

	anon := WelcomeMessage("x@example.dk", "")
	assert.True(t, strings.HasPrefix(anon.Body, "Hej,"))
}

func TestBuildMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	raw := string(BuildMessage("no-reply@coparent.dk", Message{
		To:      "anna@example.dk",
		Subject: "Velkommen til CoParent æøå",
		Body:    "line one\nline two",
	}, now))

	assert.Contains(t, raw, "From: no-reply@coparent.dk\r\n")
	assert.Contains(t, raw, "To: anna@example.dk\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.Contains(t, raw, "Date: Sun, 01 Mar 2026 12:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nline one\r\nline two"))
}

func TestClassify(t *testing.T) {
	var perm *PermanentError
	assert.True(t, errors.As(classify(&textproto.Error{Code: 550, Msg: "no such user"}), &perm))
	assert.False(t, errors.As(classify(&textproto.Error{Code: 451, Msg: "try later"}), &perm))
	assert.False(t, errors.As(classify(errors.New("eof")), &perm))
}

func TestMaskAddress(t *testing.T) {
	assert.Equal(t, "a***@example.dk", MaskAddress("anna@example.dk"))
	assert.Equal(t, "***", MaskAddress("broken"))
}

func TestMockClientFailsThenSucceeds(t *testing.T) {
	m := NewMockClient()
	m.FailTimes = 2
	ctx := context.Background()

	require.ErrorIs(t, m.Send(ctx, Message{To: "a@b.dk"}), ErrMockSend)
	require.ErrorIs(t, m.Send(ctx, Message{To: "a@b.dk"}), ErrMockSend)
	require.NoError(t, m.Send(ctx, Message{To: "a@b.dk"}))
	assert.Equal(t, 1, m.SentCount())
	assert.Equal(t, 3, m.Attempts)
}
