package catalog

import (
	"context"
	"errors"
	"fmt"
)

type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

var ErrInvalidTheme = errors.New("catalog: theme must be dark or light")

// ParseTheme accepts "dark" or "light" only.
func ParseTheme(s string) (Theme, error) {
	switch Theme(s) {
	case ThemeDark, ThemeLight:
		return Theme(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidTheme, s)
}

// Preferences stores the UI theme flag next to the catalog.
type Preferences struct {
	kv  KV
	key string
}

func NewPreferences(kv KV, key string) *Preferences {
	return &Preferences{kv: kv, key: key}
}

// Theme returns the persisted theme. Anything other than "dark" reads as light.
func (p *Preferences) Theme(ctx context.Context) (Theme, error) {
	v, err := p.kv.Get(ctx, p.key)
	if errors.Is(err, ErrKeyNotFound) {
		return ThemeLight, nil
	}
	if err != nil {
		return "", fmt.Errorf("load theme: %w", err)
	}
	if Theme(v) == ThemeDark {
		return ThemeDark, nil
	}
	return ThemeLight, nil
}

func (p *Preferences) SetTheme(ctx context.Context, t Theme) error {
	if _, err := ParseTheme(string(t)); err != nil {
		return err
	}
	if err := p.kv.Set(ctx, p.key, string(t)); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// ToggleTheme flips the theme and returns the new value.
func (p *Preferences) ToggleTheme(ctx context.Context) (Theme, error) {
	cur, err := p.Theme(ctx)
	if err != nil {
		return "", err
	}
	next := ThemeDark
	if cur == ThemeDark {
		next = ThemeLight
	}
	if err := p.SetTheme(ctx, next); err != nil {
		return "", err
	}
	return next, nil
}
