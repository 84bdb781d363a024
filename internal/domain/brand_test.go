package domain

import (
	"errors"
	"testing"
)

func TestValidateBrandID(t *testing.T) {
	valid := []string{"acme", "acme-co", "brand_2", "a", "0start", "x1-y2_z3"}
	for _, id := range valid {
		if err := ValidateBrandID(id); err != nil {
			t.Errorf("ValidateBrandID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "Acme", "-acme", "_acme", "acme co", "a/b", "../etc", "a.b", "ümlaut",
		"this-id-is-way-too-long-to-be-used-as-a-directory-name-on-any-filesystem"}
	for _, id := range invalid {
		err := ValidateBrandID(id)
		if err == nil {
			t.Errorf("ValidateBrandID(%q) = nil, want error", id)
			continue
		}
		if !errors.Is(err, ErrInvalidBrandID) {
			t.Errorf("ValidateBrandID(%q) = %v, want ErrInvalidBrandID", id, err)
		}
	}
}

func TestSlugifyBrandID(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Acme Co", "acme-co"},
		{"  Widget & Sons  ", "widget-sons"},
		{"ALLCAPS", "allcaps"},
		{"already-fine", "already-fine"},
		{"???", ""},
		{"Trailing!", "trailing"},
	}
	for _, tc := range cases {
		if got := SlugifyBrandID(tc.in); got != tc.want {
			t.Errorf("SlugifyBrandID(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
