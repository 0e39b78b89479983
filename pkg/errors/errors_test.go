package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefinitionMatchesByCode(t *testing.T) {
	custom := OnboardingAnswerInvalid.WithMessage("Please choose one of the listed options")

	assert.True(t, stderrors.Is(custom, OnboardingAnswerInvalid))
	assert.False(t, stderrors.Is(custom, OnboardingAnswerRequired))
	assert.Equal(t, "Please choose one of the listed options", custom.Error())

	wrapped := fmt.Errorf("submit answer: %w", EmailAlreadyRegistered)
	assert.True(t, stderrors.Is(wrapped, EmailAlreadyRegistered))

	def, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "EMAIL_ALREADY_REGISTERED", def.Code)
}

func TestAsPlainError(t *testing.T) {
	_, ok := As(stderrors.New("boom"))
	assert.False(t, ok)
}

func TestGet(t *testing.T) {
	assert.Equal(t, OnboardingSessionCompleted, Get("ONBOARDING_SESSION_COMPLETED"))
	assert.Equal(t, "Unexpected error", Get("NOPE").Message)
}

func TestSkipMessageError(t *testing.T) {
	err := fmt.Errorf("consume: %w", &SkipMessageError{Reason: "duplicate"})
	assert.True(t, IsSkipMessageError(err))
	assert.False(t, IsSkipMessageError(stderrors.New("other")))
}
