package application

import (
	"testing"

	"pestops-sync/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestCustomerMatcherPriority(t *testing.T) {
	byName := &domain.Customer{ID: "by-name", Name: "Jane DOE"}
	byEmail := &domain.Customer{ID: "by-email", Name: "J. Doe", Email: strPtr("JANE@example.com")}
	byPhone := &domain.Customer{ID: "by-phone", Name: "Other", Phone: strPtr("555-010-2000")}

	m := &customerMatcher{candidates: []*domain.Customer{byPhone, byEmail, byName}}
	remote := &domain.Customer{Name: "jane doe", Email: strPtr("jane@example.com"), Phone: strPtr("(555) 010 2000")}

	if got := m.match(remote); got == nil || got.ID != "by-name" {
		t.Fatalf("first match=%v want=by-name", got)
	}
	// the claimed candidate is gone, so email is next
	if got := m.match(remote); got == nil || got.ID != "by-email" {
		t.Fatalf("second match=%v want=by-email", got)
	}
	if got := m.match(remote); got == nil || got.ID != "by-phone" {
		t.Fatalf("third match=%v want=by-phone", got)
	}
	if got := m.match(remote); got != nil {
		t.Fatalf("expected no match, got %v", got.ID)
	}
}

func TestNormalizeText(t *testing.T) {
	// precomposed and decomposed forms compare equal
	decomposed := "JOSE\u0301 ruiz"
	precomposed := "Jos\u00e9 Ruiz"
	if normalizeText(decomposed) != normalizeText(precomposed) {
		t.Fatalf("normalization mismatch: %q vs %q", normalizeText(decomposed), normalizeText(precomposed))
	}
	// names must match exactly apart from case
	if normalizeText("Jane  Doe") == normalizeText("Jane Doe") {
		t.Fatalf("inner whitespace should be significant")
	}
	if digitsOnly("+1 (555) 010-2000") != "15550102000" {
		t.Fatalf("digitsOnly=%q", digitsOnly("+1 (555) 010-2000"))
	}
}

func TestProductMatcherFallsBackToSKU(t *testing.T) {
	local := &domain.Product{ID: "p1", Name: "Mosquito treatment", SKU: strPtr("MOS-01")}
	m := &productMatcher{candidates: []*domain.Product{local}}
	if got := m.match(&domain.Product{Name: "Mosquito Service", SKU: strPtr("mos-01")}); got == nil || got.ID != "p1" {
		t.Fatalf("match=%v want=p1", got)
	}
}
