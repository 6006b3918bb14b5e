// Package catalog loads the localized messages shown to users of the scene
// client and returned in gRPC error details.
//
// Files live at locales/<locale>/<namespace>.yaml and hold a flat map of
// message names to text/template strings. A message is addressed as
// "<namespace>.<name>", for example "notices.save_failed".
package catalog

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	textcatalog "golang.org/x/text/message/catalog"
	"gopkg.in/yaml.v3"
)

// BaseLocale is the source locale every other locale falls back to.
const BaseLocale = "en-US"

//go:embed locales/*/*.yaml
var embedded embed.FS

var defaultBundle = mustLoad(embedded)

// Default returns the bundle built from the embedded catalogs.
func Default() *Bundle {
	return defaultBundle
}

// Bundle holds every locale's messages.
type Bundle struct {
	messages map[string]map[string]string
	builder  *textcatalog.Builder
	tags     []language.Tag
	matcher  language.Matcher
}

// Load reads locales/*/*.yaml from fsys. The base locale must be present.
func Load(fsys fs.FS) (*Bundle, error) {
	paths, err := fs.Glob(fsys, "locales/*/*.yaml")
	if err != nil {
		return nil, fmt.Errorf("glob catalogs: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}

	b := &Bundle{
		messages: map[string]map[string]string{},
		builder:  textcatalog.NewBuilder(textcatalog.Fallback(language.MustParse(BaseLocale))),
	}
	for _, p := range paths {
		if err := b.loadFile(fsys, p); err != nil {
			return nil, err
		}
	}
	if _, ok := b.messages[BaseLocale]; !ok {
		return nil, fmt.Errorf("base locale %s has no catalogs", BaseLocale)
	}

	b.tags = []language.Tag{language.MustParse(BaseLocale)}
	for _, locale := range b.Locales() {
		if locale != BaseLocale {
			b.tags = append(b.tags, language.MustParse(locale))
		}
	}
	b.matcher = language.NewMatcher(b.tags)
	return b, nil
}

func (b *Bundle) loadFile(fsys fs.FS, p string) error {
	locale := path.Base(path.Dir(p))
	namespace := strings.TrimSuffix(path.Base(p), ".yaml")
	tag, err := language.Parse(locale)
	if err != nil {
		return fmt.Errorf("catalog %s: locale %q: %w", p, locale, err)
	}

	data, err := fs.ReadFile(fsys, p)
	if err != nil {
		return fmt.Errorf("read catalog %s: %w", p, err)
	}
	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return fmt.Errorf("parse catalog %s: %w", p, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("catalog %s: no messages", p)
	}

	messages, ok := b.messages[locale]
	if !ok {
		messages = map[string]string{}
		b.messages[locale] = messages
	}
	for name, text := range entries {
		if name == "" || strings.ContainsAny(name, ". ") {
			return fmt.Errorf("catalog %s: message name %q must be a bare identifier", p, name)
		}
		if _, err := template.New(name).Parse(text); err != nil {
			return fmt.Errorf("catalog %s: %s: %w", p, name, err)
		}
		key := namespace + "." + name
		messages[key] = text
		if err := b.builder.SetString(tag, key, text); err != nil {
			return fmt.Errorf("catalog %s: register %s: %w", p, key, err)
		}
	}
	return nil
}

// Locales lists the loaded locales, sorted.
func (b *Bundle) Locales() []string {
	out := make([]string, 0, len(b.messages))
	for locale := range b.messages {
		out = append(out, locale)
	}
	sort.Strings(out)
	return out
}

// Missing lists the base locale keys that locale does not translate.
func (b *Bundle) Missing(locale string) []string {
	messages := b.messages[locale]
	var missing []string
	for key := range b.messages[BaseLocale] {
		if _, ok := messages[key]; !ok {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	return missing
}

// Resolve returns the loaded locale closest to locale.
func (b *Bundle) Resolve(locale string) string {
	requested, err := language.Parse(strings.TrimSpace(locale))
	if err != nil {
		return BaseLocale
	}
	_, index, confidence := b.matcher.Match(requested)
	if confidence == language.No {
		return BaseLocale
	}
	return b.tags[index].String()
}

// Localize renders key for locale, filling {{.Field}} placeholders from
// metadata. Missing fields render empty; unknown keys render as the key.
func (b *Bundle) Localize(locale, key string, metadata map[string]string) string {
	resolved := b.Resolve(locale)
	fallback, ok := b.messages[resolved][key]
	if !ok {
		fallback, ok = b.messages[BaseLocale][key]
	}
	if !ok {
		return key
	}

	text := message.NewPrinter(language.MustParse(resolved), message.Catalog(b.builder)).Sprintf(key)
	if text == key {
		text = fallback
	}
	if !strings.Contains(text, "{{") {
		return text
	}
	tmpl, err := template.New(key).Option("missingkey=zero").Parse(text)
	if err != nil {
		return text
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, metadata); err != nil {
		return text
	}
	return buf.String()
}

func mustLoad(fsys fs.FS) *Bundle {
	b, err := Load(fsys)
	if err != nil {
		panic(err)
	}
	return b
}
