package rsubprocess

import (
	"context"
	"reflect"
	"testing"
)

func TestIsValidPackageName(t *testing.T) {
	valid := []string{"stats", "dplyr2", "my.package", ".hidden", "a_b.c"}
	for _, name := range valid {
		if !IsValidPackageName(name) {
			t.Errorf("IsValidPackageName(%q) = false, want true", name)
		}
	}

	invalid := []string{"", "1starts_with_digit", ".1", "has space", "has;semicolon", "has(paren"}
	for _, name := range invalid {
		if IsValidPackageName(name) {
			t.Errorf("IsValidPackageName(%q) = true, want false", name)
		}
	}
}

func TestIsValidRIdentifier(t *testing.T) {
	valid := []string{"foo", ".2way.interaction", "a_1.b", "..."}
	for _, name := range valid {
		if !IsValidRIdentifier(name) {
			t.Errorf("IsValidRIdentifier(%q) = false, want true", name)
		}
	}
	invalid := []string{"", "has space", "has;semi"}
	for _, name := range invalid {
		if IsValidRIdentifier(name) {
			t.Errorf("IsValidRIdentifier(%q) = true, want false", name)
		}
	}
}

func TestParsePackagesOutput(t *testing.T) {
	got := parsePackagesOutput("foo\nbar\n\nbaz\n")
	want := []string{"foo", "bar", "baz"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParsePackagesOutputEmpty(t *testing.T) {
	if got := parsePackagesOutput(""); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}

func TestParseDependsField(t *testing.T) {
	got := parseDependsField("R (>= 3.5.0), dplyr (>= 1.0.0), tibble")
	want := []string{"dplyr", "tibble"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExportsRejectsInvalidPackageName(t *testing.T) {
	p := NewProcess("R", "", 0, 0, 0)
	if _, err := p.Exports(context.Background(), "1bad"); err == nil {
		t.Error("expected an error for an invalid package name")
	}
}

func TestFallbackBasePackages(t *testing.T) {
	pkgs := FallbackBasePackages()
	found := false
	for _, p := range pkgs {
		if p == "base" {
			found = true
		}
	}
	if !found {
		t.Errorf("FallbackBasePackages() = %v, want it to contain \"base\"", pkgs)
	}
}
