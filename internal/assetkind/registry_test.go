package assetkind

import "testing"

func TestRegistryRegisterAndResolve(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Kind{Key: "PNG", Extensions: []string{"PNG"}, ContentType: "image/png"}); err != nil {
		t.Fatalf("register error: %v", err)
	}

	kind, ok := registry.Resolve("png")
	if !ok || kind.Key != "png" {
		t.Fatalf("resolve failed: %+v ok=%v", kind, ok)
	}
	kind, ok = registry.ResolveExtension("png")
	if !ok || kind.ContentType != "image/png" {
		t.Fatalf("resolve extension failed: %+v ok=%v", kind, ok)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(Kind{Key: "png", Extensions: []string{"png"}}); err != nil {
		t.Fatalf("register error: %v", err)
	}
	if err := registry.Register(Kind{Key: "png", Extensions: []string{"apng"}}); err == nil {
		t.Fatalf("duplicate key should fail")
	}
	if err := registry.Register(Kind{Key: "other", Extensions: []string{"png"}}); err == nil {
		t.Fatalf("duplicate extension should fail")
	}
}

func TestBuiltinAllowsCommonExtensions(t *testing.T) {
	registry := Builtin(nil)
	for _, ext := range []string{"jpg", "jpeg", "png", "gif", "webp", "svg", "avif", "pdf", "mp4"} {
		if !registry.Allowed(ext) {
			t.Fatalf("expected %s to be allowed", ext)
		}
	}
	if registry.Allowed("exe") {
		t.Fatalf("exe should not be allowed")
	}
}

func TestBuiltinNarrowsToConfiguredExtensions(t *testing.T) {
	registry := Builtin([]string{"png", "jpg"})
	if !registry.Allowed("png") || !registry.Allowed("jpg") {
		t.Fatalf("configured extensions should be allowed")
	}
	if registry.Allowed("jpeg") {
		t.Fatalf("jpeg alias was not configured and should be rejected")
	}
	if registry.Allowed("pdf") {
		t.Fatalf("pdf was not configured and should be rejected")
	}
}
