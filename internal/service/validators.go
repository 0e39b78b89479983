package service

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	"CoParent/internal/catalog"
	"CoParent/internal/repository"
	pkgerrors "CoParent/pkg/errors"
)

const (
	maxAnswerLength = 2000
	maxNameLength   = 128
	maxChildren     = 20
)

// Validator 单个问题的领域校验，返回归一化后的答案
type Validator func(ctx context.Context, answer string) (string, error)

// Validators 问题 key -> 校验函数
type Validators map[string]Validator

// DefaultValidators 默认目录使用的校验表
func DefaultValidators(accounts repository.UserAccounts) Validators {
	return Validators{
		"name":           validateName,
		"email":          emailValidator(accounts),
		"children_count": validateChildrenCount,
	}
}

// validate 通用校验 + 领域校验；skip 表示可选问题留空，直接跳过
func (v Validators) validate(ctx context.Context, q catalog.Question, answer string) (value string, skip bool, err error) {
	value = strings.TrimSpace(answer)

	if value == "" {
		if q.Required {
			return "", false, pkgerrors.OnboardingAnswerRequired
		}
		return "", true, nil
	}

	if utf8.RuneCountInString(value) > maxAnswerLength {
		return "", false, pkgerrors.OnboardingAnswerInvalid.WithMessage(
			fmt.Sprintf("Answers can be at most %d characters", maxAnswerLength))
	}

	if q.HasOptions() && !q.AllowsOption(value) {
		return "", false, pkgerrors.OnboardingAnswerInvalid.WithMessage("Please choose one of the listed options")
	}

	if fn, ok := v[q.Key]; ok {
		if value, err = fn(ctx, value); err != nil {
			return "", false, err
		}
	}
	return value, false, nil
}

func validateName(_ context.Context, answer string) (string, error) {
	if utf8.RuneCountInString(answer) > maxNameLength {
		return "", pkgerrors.OnboardingAnswerInvalid.WithMessage("That name is too long")
	}
	return strings.Join(strings.Fields(answer), " "), nil
}

func emailValidator(accounts repository.UserAccounts) Validator {
	return func(ctx context.Context, answer string) (string, error) {
		addr, err := mail.ParseAddress(answer)
		// 只接受裸地址，"Anna <a@b.dk>" 这种带显示名的写法也拒绝
		if err != nil || addr.Address != answer || !strings.Contains(addr.Address[strings.LastIndex(addr.Address, "@")+1:], ".") {
			return "", pkgerrors.OnboardingAnswerInvalid.WithMessage("Please enter a valid email address")
		}

		email := repository.NormalizeEmail(addr.Address)
		if accounts == nil {
			return email, nil
		}

		exists, err := accounts.EmailExists(ctx, email)
		if err != nil {
			return "", fmt.Errorf("failed to check email uniqueness: %w", err)
		}
		if exists {
			return "", pkgerrors.EmailAlreadyRegistered
		}
		return email, nil
	}
}

func validateChildrenCount(_ context.Context, answer string) (string, error) {
	n, err := strconv.Atoi(answer)
	if err != nil || n < 0 || n > maxChildren {
		return "", pkgerrors.OnboardingAnswerInvalid.WithMessage(
			fmt.Sprintf("Please enter a whole number between 0 and %d", maxChildren))
	}
	return strconv.Itoa(n), nil
}
