package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
)

// failingPhraser 先输出 n 个片段再失败
type failingPhraser struct {
	n int
}

func (p failingPhraser) Name() string { return "failing" }

func (p failingPhraser) Phrase(_ context.Context, _ catalog.Question, yield func(string) error) error {
	for i := 0; i < p.n; i++ {
		if err := yield("part "); err != nil {
			return err
		}
	}
	return errors.New("model overloaded")
}

func collect(events *[]model.StreamEvent) func(model.StreamEvent) error {
	return func(ev model.StreamEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func TestStreamQuestionEventOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "testing")
	f.svc.phraser = NewStaticPhraser(2, 0)

	res, err := f.svc.NextQuestion(ctx, "", false)
	require.NoError(t, err)

	var events []model.StreamEvent
	require.NoError(t, f.svc.StreamQuestion(ctx, res, collect(&events)))

	require.GreaterOrEqual(t, len(events), 3)
	first, last := events[0], events[len(events)-1]

	assert.Equal(t, model.StreamEventStart, first.Type)
	assert.Equal(t, res.SessionID, first.SessionID)
	assert.Equal(t, "name", first.Question.Key)

	assert.Equal(t, model.StreamEventComplete, last.Type)
	assert.False(t, last.Completed)
	assert.Equal(t, "name", last.Question.Key)

	var text strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		assert.Equal(t, model.StreamEventChunk, ev.Type)
		text.WriteString(ev.Content)
	}
	assert.Equal(t, strings.Join(strings.Fields(res.Question.Prompt), " "), text.String())
}

func TestStreamQuestionPhraserFailureEndsWithError(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "testing")
	f.svc.phraser = failingPhraser{n: 2}

	res, err := f.svc.NextQuestion(ctx, "", false)
	require.NoError(t, err)

	var events []model.StreamEvent
	require.NoError(t, f.svc.StreamQuestion(ctx, res, collect(&events)))

	require.Len(t, events, 4)
	last := events[3]
	assert.Equal(t, model.StreamEventError, last.Type)
	assert.NotEmpty(t, last.Message)
	assert.Equal(t, res.Question.Prompt, last.Fallback)
}

func TestStreamQuestionClientGoneDoesNotTouchSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, "testing")
	f.svc.phraser = NewStaticPhraser(1, 0)

	res, err := f.svc.NextQuestion(ctx, "", false)
	require.NoError(t, err)
	before, err := f.store.Get(ctx, res.SessionID)
	require.NoError(t, err)

	sent := 0
	err = f.svc.StreamQuestion(ctx, res, func(model.StreamEvent) error {
		sent++
		if sent == 3 {
			return errors.New("broken pipe")
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrClientGone)
	assert.Equal(t, 3, sent)

	after, err := f.store.Get(ctx, res.SessionID)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.CurrentKey(), after.CurrentKey())
}

func TestStreamQuestionCancelledContext(t *testing.T) {
	f := newFixture(t, "testing")
	f.svc.phraser = NewStaticPhraser(1, time.Hour)

	res, err := f.svc.NextQuestion(context.Background(), "", false)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var events []model.StreamEvent
	err = f.svc.StreamQuestion(ctx, res, func(ev model.StreamEvent) error {
		events = append(events, ev)
		if ev.Type == model.StreamEventChunk {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrClientGone)
	require.Len(t, events, 2)
	assert.Equal(t, model.StreamEventChunk, events[1].Type)
}

func TestStreamCompletedSession(t *testing.T) {
	f := newFixture(t, "testing")
	res := &NextQuestionResult{SessionID: "s", Completed: true}

	var events []model.StreamEvent
	require.NoError(t, f.svc.StreamQuestion(context.Background(), res, collect(&events)))
	require.Len(t, events, 2)
	assert.Equal(t, model.StreamEventComplete, events[1].Type)
	assert.True(t, events[1].Completed)
	assert.Nil(t, events[1].Question)
}

func TestSplitWords(t *testing.T) {
	assert.Equal(t, []string{"a b ", "c d ", "e"}, splitWords(" a  b c\nd e ", 2))
	assert.Nil(t, splitWords("   ", 3))
	assert.Equal(t, []string{"one"}, splitWords("one", 3))
}

func TestStreamEventPayload(t *testing.T) {
	ev := model.StreamEvent{Type: model.StreamEventChunk, Content: "hi", SessionID: "ignored"}
	payload, ok := ev.Payload().(struct {
		Type    model.StreamEventType `json:"type"`
		Content string                `json:"content"`
	})
	require.True(t, ok)
	assert.Equal(t, "hi", payload.Content)
}
