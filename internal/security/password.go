package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher はパスワードの一方向ダイジェスト化と照合を行う。
type Hasher interface {
	// Hash は平文パスワードから保存用ダイジェストを生成する。
	Hash(plain string) (string, error)
	// Verify は保存済みダイジェストと平文パスワードが一致するかを返す。
	Verify(digest, plain string) bool
}

// 設定値で選択できるハッシュ方式
const (
	HasherSHA256 = "sha256"
	HasherBcrypt = "bcrypt"
)

// NewHasher は方式名に対応するHasherを返す。
func NewHasher(name string) (Hasher, error) {
	switch name {
	case "", HasherSHA256:
		return SHA256Hasher{}, nil
	case HasherBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher: %s", name)
	}
}

// SHA256Hasher はソルトなしSHA-256の16進ダイジェストを生成する。
// 決定的なので同一パスワードは同一ダイジェストになる。デモ用途に限る。
type SHA256Hasher struct{}

// Hash は平文のSHA-256ダイジェストを小文字16進で返す。エラーは返さない。
func (SHA256Hasher) Hash(plain string) (string, error) {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:]), nil
}

// Verify は平文を再ハッシュしてダイジェストと比較する。
func (h SHA256Hasher) Verify(digest, plain string) bool {
	got, _ := h.Hash(plain)
	return subtle.ConstantTimeCompare([]byte(got), []byte(digest)) == 1
}

// BcryptHasher はbcryptでダイジェストを生成する。
type BcryptHasher struct {
	Cost int
}

// Hash は平文をbcryptでハッシュする。
func (h BcryptHasher) Hash(plain string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// Verify はbcryptダイジェストと平文を照合する。
func (BcryptHasher) Verify(digest, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plain)) == nil
}
