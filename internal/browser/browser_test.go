package browser

import (
	"context"
	"testing"

	"github.com/hazyhaar/relocator/selector"
)

func TestCaptureFrom(t *testing.T) {
	doc, err := ParseDocument(`<html><body><form aria-label="Invoice"><input id="sup:1" aria-label="Supplier Name"></form></body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	reg := selector.NewRegistry()
	reg.Register(selector.NewXPathEngine("", nil))

	snap, err := CaptureFrom(doc, reg, "//input")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if snap.Tag != "input" || snap.AriaLabel != "Supplier Name" || snap.ID != "sup:1" {
		t.Errorf("snapshot: %+v", snap)
	}
	if snap.Parent == nil || snap.Parent.AriaLabel != "Invoice" {
		t.Errorf("parent: %+v", snap.Parent)
	}

	if _, err := CaptureFrom(doc, reg, "//table"); err == nil {
		t.Error("unmatched expression should fail")
	}
}

func TestShouldBlock(t *testing.T) {
	set := map[string]bool{"images": true, "fonts": true}
	tests := []struct {
		typ  string
		want bool
	}{
		{"Image", true},
		{"Font", true},
		{"Stylesheet", false},
		{"Document", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(set, tt.typ); got != tt.want {
			t.Errorf("shouldBlock(%q): got %v, want %v", tt.typ, got, tt.want)
		}
	}
}

func TestManager_ClosedRefusesStart(t *testing.T) {
	m := NewManager(Config{})
	m.Close()
	if _, err := m.Start(context.Background()); err == nil {
		t.Error("closed manager should refuse to start")
	}
	if m.Browser() != nil {
		t.Error("no browser expected")
	}
}
