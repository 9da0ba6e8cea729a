// Package validate はリクエスト入力の検証ヘルパーを提供する。
// 必須項目の検出はgo-playground/validatorの構造体タグで行う。
package validate

import (
	"errors"
	"regexp"
	"sync"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		instance = validator.New(validator.WithRequiredStructEnabled())
	})
	return instance
}

// Complete は構造体のvalidateタグ（required等）をすべて満たすかを返す。
// 満たさないフィールドがある場合はその名前を返す。
func Complete(v any) (bool, []string) {
	err := get().Struct(v)
	if err == nil {
		return true, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false, nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return false, fields
}

// Email はメールアドレスが「x@y.z」形式かどうかを返す。
func Email(s string) bool {
	return emailPattern.MatchString(s)
}

// PasswordLength はパスワードが最小文字数を満たすかを返す。
func PasswordLength(s string) bool {
	return utf8.RuneCountInString(s) >= MinPasswordLength
}
