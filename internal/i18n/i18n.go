// Package i18n renders user-facing strings from embedded YAML catalogs.
package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"

	"github.com/rxaigc/vibesub/internal/errors"
)

// BaseLocale is the fallback when nothing else matches.
const BaseLocale = "en-US"

//go:embed locales/*.yaml
var localesFS embed.FS

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Messages map[string]string `yaml:"messages"`
}

// Bundle is a parsed set of catalogs.
type Bundle struct {
	builder *catalog.Builder
	tags    []language.Tag
	matcher language.Matcher
}

var defaultBundle = mustLoad()

func mustLoad() *Bundle {
	b, err := Load(localesFS)
	if err != nil {
		panic(err)
	}
	return b
}

// Load parses locales/*.yaml from fsys.
func Load(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob locale catalogs: %w", err)
	}
	sort.Strings(paths)

	b := &Bundle{builder: catalog.NewBuilder()}
	var base *language.Tag
	for _, path := range paths {
		file, err := readCatalog(fsys, path)
		if err != nil {
			return nil, err
		}
		tag, err := language.Parse(file.Locale)
		if err != nil {
			return nil, fmt.Errorf("catalog %s: %w", path, err)
		}
		for key, msg := range file.Messages {
			if err := b.builder.SetString(tag, key, msg); err != nil {
				return nil, fmt.Errorf("catalog %s key %s: %w", path, key, err)
			}
		}
		if file.Locale == BaseLocale {
			base = &tag
			continue
		}
		b.tags = append(b.tags, tag)
	}
	if base == nil {
		return nil, fmt.Errorf("base locale %s is not defined in catalogs", BaseLocale)
	}

	// The matcher falls back to its first tag.
	b.tags = append([]language.Tag{*base}, b.tags...)
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func readCatalog(fsys fs.FS, path string) (catalogFile, error) {
	var file catalogFile
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return file, fmt.Errorf("read catalog %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return file, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return file, nil
}

// Printer renders messages for one locale.
type Printer struct {
	tag language.Tag
	p   *message.Printer
}

// New returns a printer for locale using the embedded catalogs. An empty
// locale is taken from LC_ALL, LC_MESSAGES or LANG.
func New(locale string) *Printer {
	return defaultBundle.Printer(locale)
}

// Printer returns a printer for the best match of locale.
func (b *Bundle) Printer(locale string) *Printer {
	if strings.TrimSpace(locale) == "" {
		locale = localeFromEnv()
	}
	tag := b.tags[0]
	if parsed, err := language.Parse(normalize(locale)); err == nil {
		_, idx, conf := b.matcher.Match(parsed)
		if conf != language.No {
			tag = b.tags[idx]
		}
	}
	return &Printer{tag: tag, p: message.NewPrinter(tag, message.Catalog(b.builder))}
}

func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			return v
		}
	}
	return BaseLocale
}

// normalize turns "zh_CN.UTF-8" into "zh-CN".
func normalize(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	return strings.ReplaceAll(strings.TrimSpace(locale), "_", "-")
}

// Locale returns the matched locale tag.
func (p *Printer) Locale() string {
	return p.tag.String()
}

// T renders key with optional printf arguments.
func (p *Printer) T(key string, args ...any) string {
	return p.p.Sprintf(key, args...)
}

var errorKeys = map[errors.ErrorCode]string{
	errors.ErrCodeInvalidCredentials:         "login.failed",
	errors.ErrCodePopupClosed:                "google.closed",
	errors.ErrCodeEmailInUse:                 "signup.email_in_use",
	errors.ErrCodeWeakPassword:               "signup.weak_password",
	errors.ErrCodeInvalidEmail:               "signup.invalid_email",
	errors.ErrCodePasswordMismatch:           "signup.mismatch",
	errors.ErrCodeSessionEstablishmentFailed: "session.failed",
}

// Error maps err to an inline message. Codes without a dedicated message
// render fallbackKey, the generic failure text of the triggering action.
func (p *Printer) Error(err error, fallbackKey string) string {
	if key, ok := errorKeys[errors.CodeOf(err)]; ok {
		return p.T(key)
	}
	return p.T(fallbackKey)
}
