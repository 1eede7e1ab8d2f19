package provider

import (
	"fmt"
	"time"
)

// ProviderName uniquely identifies an external source.
type ProviderName string

// Known provider names.
const (
	NameDiscogs ProviderName = "discogs"
	NameYouTube ProviderName = "youtube"
	NameDeezer  ProviderName = "deezer"
)

// AllProviderNames returns all known provider names in display order.
func AllProviderNames() []ProviderName {
	return []ProviderName{NameDiscogs, NameYouTube, NameDeezer}
}

// DisplayName returns a human-readable name for the provider.
func (n ProviderName) DisplayName() string {
	switch n {
	case NameDiscogs:
		return "Discogs"
	case NameYouTube:
		return "YouTube"
	case NameDeezer:
		return "Deezer"
	default:
		return string(n)
	}
}

// ErrProviderUnavailable indicates a transient failure (rate-limited, timeout, server error).
type ErrProviderUnavailable struct {
	Provider   ProviderName
	Cause      error
	RetryAfter time.Duration
}

func (e *ErrProviderUnavailable) Error() string {
	return fmt.Sprintf("provider %s unavailable: %v", e.Provider, e.Cause)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Cause }

// ErrNotFound indicates the provider has no data for the requested ID.
type ErrNotFound struct {
	Provider ProviderName
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("provider %s: %s not found", e.Provider, e.ID)
}

// ErrAuthRequired indicates the provider needs a credential but none is
// configured, or the configured one was refused.
type ErrAuthRequired struct {
	Provider ProviderName
}

func (e *ErrAuthRequired) Error() string {
	return fmt.Sprintf("provider %s: credential missing or rejected", e.Provider)
}
