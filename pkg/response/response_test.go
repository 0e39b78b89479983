package response

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"CoParent/pkg/errors"
)

func TestStatusFor(t *testing.T) {
	cases := map[string]struct {
		err  error
		want int
	}{
		"unknown session":   {errors.OnboardingSessionNotFound, http.StatusNotFound},
		"completed session": {errors.OnboardingSessionCompleted, http.StatusConflict},
		"out of order":      {errors.OnboardingAnswerOutOfOrder, http.StatusConflict},
		"required":          {errors.OnboardingAnswerRequired, http.StatusUnprocessableEntity},
		"duplicate email":   {fmt.Errorf("validate: %w", errors.EmailAlreadyRegistered), http.StatusUnprocessableEntity},
		"custom message":    {errors.OnboardingAnswerInvalid.WithMessage("bad"), http.StatusUnprocessableEntity},
		"bad request":       {errors.InvalidRequest, http.StatusBadRequest},
		"rate limited":      {errors.TooManyRequests, http.StatusTooManyRequests},
		"plain error":       {stderrors.New("db down"), http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, StatusFor(tc.err))
		})
	}
}

func TestBodyHidesInfrastructureErrors(t *testing.T) {
	b := body(stderrors.New("pq: password authentication failed"), nil)
	assert.Equal(t, "INTERNAL_ERROR", b.Error.Code)
	assert.NotContains(t, b.Error.Message, "password")

	b = body(errors.EmailAlreadyRegistered, map[string]interface{}{"question_key": "email"})
	assert.Equal(t, "EMAIL_ALREADY_REGISTERED", b.Error.Code)
	assert.Equal(t, "email", b.Error.Details["question_key"])
}
