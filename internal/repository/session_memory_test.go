package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoParent/internal/catalog"
	"CoParent/internal/model"
	pkgerrors "CoParent/pkg/errors"
)

func newTestStore(t *testing.T) (*MemorySessionStore, *model.OnboardingSession) {
	t.Helper()
	store := NewMemorySessionStore(catalog.MustLoadBuiltin("testing"))
	sess, err := store.Create(context.Background())
	require.NoError(t, err)
	return store, sess
}

func TestMemoryStoreCreate(t *testing.T) {
	store, sess := newTestStore(t)

	assert.NotEmpty(t, sess.SessionID)
	assert.Equal(t, "name", sess.CurrentKey())
	assert.Empty(t, sess.Answers)
	assert.False(t, sess.Completed)
	assert.Equal(t, model.SessionStateNew, sess.State())

	other, err := store.Create(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, sess.SessionID, other.SessionID)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, pkgerrors.OnboardingSessionNotFound)
}

func TestMemoryStoreRecordAnswer(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	res, err := store.RecordAnswer(ctx, sess.SessionID, "name", "Anna")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "email", res.Session.CurrentKey())
	assert.Equal(t, model.SessionStateInProgress, res.Session.State())

	// 已作答的问题允许覆盖，不推进
	res, err = store.RecordAnswer(ctx, sess.SessionID, "name", "Anne")
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, "email", res.Session.CurrentKey())
	v, _ := res.Session.Answers.Get("name")
	assert.Equal(t, "Anne", v)
	assert.Len(t, res.Session.Answers, 1)

	res, err = store.RecordAnswer(ctx, sess.SessionID, "email", "a@b.dk")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Nil(t, res.Session.CurrentQuestionKey)
	assert.True(t, res.Session.AwaitingCompletion())
	assert.Equal(t, []string{"name", "email"}, res.Session.Answers.Keys())
}

func TestMemoryStoreRejectsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	_, err := store.RecordAnswer(ctx, sess.SessionID, "email", "a@b.dk")
	assert.ErrorIs(t, err, pkgerrors.OnboardingAnswerOutOfOrder)

	_, err = store.RecordAnswer(ctx, sess.SessionID, "favourite_colour", "blue")
	assert.ErrorIs(t, err, pkgerrors.OnboardingQuestionUnknown)

	_, err = store.RecordAnswer(ctx, "missing", "name", "Anna")
	assert.ErrorIs(t, err, pkgerrors.OnboardingSessionNotFound)

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Empty(t, got.Answers)
	assert.Equal(t, "name", got.CurrentKey())
}

func TestMemoryStoreMarkCompleted(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	_, err := store.RecordAnswer(ctx, sess.SessionID, "name", "Anna")
	require.NoError(t, err)
	_, err = store.RecordAnswer(ctx, sess.SessionID, "email", "a@b.dk")
	require.NoError(t, err)

	ok, err := store.MarkCompleted(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.MarkCompleted(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, ok, "second call must be a no-op")

	_, err = store.RecordAnswer(ctx, sess.SessionID, "email", "x@y.dk")
	assert.ErrorIs(t, err, pkgerrors.OnboardingSessionCompleted)

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionStateCompleted, got.State())
	assert.NotNil(t, got.CompletedAt)
	v, _ := got.Answers.Get("email")
	assert.Equal(t, "a@b.dk", v)

	_, err = store.MarkCompleted(ctx, "missing")
	assert.ErrorIs(t, err, pkgerrors.OnboardingSessionNotFound)
}

func TestMemoryStoreSkip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(catalog.MustLoadBuiltin("default"))
	sess, err := store.Create(ctx)
	require.NoError(t, err)

	_, err = store.Skip(ctx, sess.SessionID, "email")
	assert.ErrorIs(t, err, pkgerrors.OnboardingAnswerOutOfOrder)

	res, err := store.Skip(ctx, sess.SessionID, "name")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "email", res.Session.CurrentKey())
	assert.Empty(t, res.Session.Answers)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	sess.Answers = append(sess.Answers, model.OnboardingAnswer{Key: "name", Value: "x"})
	*sess.CurrentQuestionKey = "email"

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Empty(t, got.Answers)
	assert.Equal(t, "name", got.CurrentKey())
}

func TestMemoryStoreConcurrentDuplicateAnswer(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)
	_, err := store.RecordAnswer(ctx, sess.SessionID, "name", "Anna")
	require.NoError(t, err)

	const workers = 16
	var advanced, completed atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := store.RecordAnswer(ctx, sess.SessionID, "email", "a@b.dk")
			if err != nil {
				return
			}
			if res.Advanced {
				advanced.Add(1)
			}
			if ok, err := store.MarkCompleted(ctx, sess.SessionID); err == nil && ok {
				completed.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), advanced.Load())
	assert.Equal(t, int32(1), completed.Load())

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "email"}, got.Answers.Keys())
}

func TestMemoryStoreAdvanceOnlyAcceptsCurrentKey(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	_, err := store.Advance(ctx, sess.SessionID, "email", "a@b.dk")
	assert.ErrorIs(t, err, pkgerrors.OnboardingAnswerOutOfOrder)

	res, err := store.Advance(ctx, sess.SessionID, "name", "Anna")
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "email", res.Session.CurrentKey())

	// 已回答的问题不走覆盖分支
	_, err = store.Advance(ctx, sess.SessionID, "name", "Bob")
	assert.ErrorIs(t, err, pkgerrors.OnboardingAnswerOutOfOrder)

	res, err = store.Advance(ctx, sess.SessionID, "email", "a@b.dk")
	require.NoError(t, err)
	assert.Nil(t, res.Session.CurrentQuestionKey)

	// 最后一题已记录、尚未标记完成
	_, err = store.Advance(ctx, sess.SessionID, "email", "x@y.dk")
	assert.ErrorIs(t, err, pkgerrors.OnboardingSessionCompleted)

	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	name, _ := got.Answers.Get("name")
	email, _ := got.Answers.Get("email")
	assert.Equal(t, "Anna", name)
	assert.Equal(t, "a@b.dk", email)
	assert.Equal(t, int64(2), got.Version)
}

func TestMemoryStoreConcurrentAdvanceKeepsWinnerValue(t *testing.T) {
	ctx := context.Background()
	store, sess := newTestStore(t)

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	var accepted []string
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			value := fmt.Sprintf("Parent %d", i)
			if _, err := store.Advance(ctx, sess.SessionID, "name", value); err != nil {
				assert.ErrorIs(t, err, pkgerrors.OnboardingAnswerOutOfOrder)
				return
			}
			mu.Lock()
			accepted = append(accepted, value)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	require.Len(t, accepted, 1)
	got, err := store.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	name, _ := got.Answers.Get("name")
	assert.Equal(t, accepted[0], name)
}

func TestAnswersAreSubsetOfCatalog(t *testing.T) {
	ctx := context.Background()
	cat := catalog.MustLoadBuiltin("default")
	store := NewMemorySessionStore(cat)
	sess, err := store.Create(ctx)
	require.NoError(t, err)

	attempts := []struct{ key, value string }{
		{"name", "Anna"}, {"bogus", "x"}, {"email", "a@b.dk"}, {"children_count", "2"},
		{"family_situation", "separated"}, {"", "x"}, {"children_count", "1"}, {"municipality", "Aarhus"},
	}
	for _, a := range attempts {
		_, _ = store.RecordAnswer(ctx, sess.SessionID, a.key, a.value)

		got, err := store.Get(ctx, sess.SessionID)
		require.NoError(t, err)
		for _, k := range got.Answers.Keys() {
			assert.True(t, cat.Has(k), "answer key %q not in catalog", k)
		}
	}
}
