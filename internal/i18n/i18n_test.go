package i18n

import (
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rxaigc/vibesub/internal/errors"
)

func TestPrinterLocaleMatching(t *testing.T) {
	tests := []struct {
		locale string
		want   string
	}{
		{"zh-CN", "zh-CN"},
		{"zh_CN.UTF-8", "zh-CN"},
		{"zh", "zh-CN"},
		{"en-GB", "en-US"},
		{"fr-FR", "en-US"},
		{"not a locale", "en-US"},
	}

	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			assert.Equal(t, tt.want, New(tt.locale).Locale())
		})
	}
}

func TestPrinterFromEnv(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "zh_CN.UTF-8")

	assert.Equal(t, "zh-CN", New("").Locale())
}

func TestTranslate(t *testing.T) {
	zh := New("zh-CN")
	en := New("en-US")

	assert.Equal(t, "两次输入的密码不一致", zh.T("signup.mismatch"))
	assert.Equal(t, "Passwords do not match", en.T("signup.mismatch"))
	assert.Equal(t, "5/10", en.T("dashboard.usage_value", 5, 10))
}

func TestErrorMessages(t *testing.T) {
	zh := New("zh-CN")

	assert.Equal(t, "登录失败，请检查您的邮箱和密码", zh.Error(errors.NewInvalidCredentialsError(nil), "login.failed"))
	assert.Equal(t, "会话创建失败", zh.Error(fmt.Errorf("wrapped: %w", errors.NewSessionEstablishmentError("x", nil)), "login.failed"))
	assert.Equal(t, "该邮箱已被注册", zh.Error(errors.New(errors.ErrCodeEmailInUse, ""), "signup.failed"))
	assert.Equal(t, "注册失败，请稍后重试", zh.Error(fmt.Errorf("network down"), "signup.failed"))
	assert.Equal(t, "Google 登录失败，请稍后重试", zh.Error(errors.NewProviderError("boom", nil), "google.failed"))
}

func TestCatalogsShareKeys(t *testing.T) {
	en, err := readCatalog(localesFS, "locales/en-US.yaml")
	require.NoError(t, err)
	zh, err := readCatalog(localesFS, "locales/zh-CN.yaml")
	require.NoError(t, err)

	for key := range en.Messages {
		assert.Contains(t, zh.Messages, key)
	}
	for key := range zh.Messages {
		assert.Contains(t, en.Messages, key)
	}
}

func TestLoadRequiresBaseLocale(t *testing.T) {
	fsys := fstest.MapFS{
		"locales/zh-CN.yaml": {Data: []byte("locale: zh-CN\nmessages:\n  a: b\n")},
	}

	_, err := Load(fsys)
	assert.ErrorContains(t, err, "base locale")
}
