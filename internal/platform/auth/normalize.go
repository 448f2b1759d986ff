package auth

import (
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// 全角英数などを NFKC で寄せてから比較・保存する
func normalizeUsername(s string) string {
	return norm.NFKC.String(strings.TrimSpace(s))
}

// メールは大文字小文字を区別しない
func normalizeEmail(s string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(s)))
}

// binding タグと同じ validator でサービス層でも確認する（seed など HTTP を通らない経路用）
var validate = validator.New()

func validEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
