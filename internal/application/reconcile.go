package application

import (
	"strings"
	"unicode"

	"pestops-sync/internal/domain"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// First-time reconciliation pairs a provider record that has no mapping with an
// unmapped local row. Customers match on name, then email, then phone digits;
// products on name, then SKU. The first match in that order wins and the matched
// row is claimed so a second provider record cannot take it.

// normalizeText folds case and composes accents. Whitespace is significant.
func normalizeText(s string) string {
	return norm.NFC.String(cases.Fold().String(s))
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

type customerMatcher struct {
	candidates []*domain.Customer
}

func (m *customerMatcher) match(remote *domain.Customer) *domain.Customer {
	rules := []func(*domain.Customer) string{
		func(c *domain.Customer) string { return normalizeText(c.Name) },
		func(c *domain.Customer) string { return normalizeText(deref(c.Email)) },
		func(c *domain.Customer) string { return digitsOnly(deref(c.Phone)) },
	}
	for _, key := range rules {
		want := key(remote)
		if want == "" {
			continue
		}
		for i, c := range m.candidates {
			if key(c) == want {
				m.candidates = append(m.candidates[:i], m.candidates[i+1:]...)
				return c
			}
		}
	}
	return nil
}

type productMatcher struct {
	candidates []*domain.Product
}

func (m *productMatcher) match(remote *domain.Product) *domain.Product {
	rules := []func(*domain.Product) string{
		func(p *domain.Product) string { return normalizeText(p.Name) },
		func(p *domain.Product) string { return normalizeText(deref(p.SKU)) },
	}
	for _, key := range rules {
		want := key(remote)
		if want == "" {
			continue
		}
		for i, p := range m.candidates {
			if key(p) == want {
				m.candidates = append(m.candidates[:i], m.candidates[i+1:]...)
				return p
			}
		}
	}
	return nil
}

// mergeString prefers the provider value and keeps the local one when the
// provider has none.
func mergeString(local, remote *string) *string {
	if remote != nil {
		return remote
	}
	return local
}
