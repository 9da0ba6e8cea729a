// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// クライアントには Message のみを返し、Code と Category はステータス判定とログに使う。
type APIError struct {
	Code     string // エラーコード
	Message  string // ユーザー向けメッセージ
	Category string // カテゴリ: auth, validation, account, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeUserExists         = "USER_EXISTS"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeIncorrectPassword  = "INCORRECT_PASSWORD"
	ErrCodeInsufficientFunds  = "INSUFFICIENT_FUNDS"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
	}
}

// NewUserExistsError は登録済みメールアドレスでの再登録エラーを生成する。
// 観測された挙動に合わせて400で返す（概念的には409）。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "User already exists",
		Category: "validation",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// ユーザー未登録とパスワード不一致を区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid credentials",
		Category: "auth",
	}
}

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  "Not authenticated",
		Category: "auth",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "Unauthorized",
		Category: "auth",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "User not found",
		Category: "auth",
	}
}

// NewIncorrectPasswordError は現在のパスワードが一致しない場合のエラーを生成する。
func NewIncorrectPasswordError() *APIError {
	return &APIError{
		Code:     ErrCodeIncorrectPassword,
		Message:  "Current password is incorrect",
		Category: "validation",
	}
}

// NewInsufficientFundsError は当座預金残高不足エラーを生成する。
func NewInsufficientFundsError() *APIError {
	return &APIError{
		Code:     ErrCodeInsufficientFunds,
		Message:  "Insufficient funds",
		Category: "account",
	}
}

// NewNotFoundError は未定義ルートへのアクセスエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Not found",
		Category: "system",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、messageにはエンドポイントごとの一般的な文言を渡す。
func NewInternalError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  message,
		Category: "system",
	}
}
