package catalog

import "testing"

func replaceProviders(t *testing.T) func() {
	t.Helper()
	prev := globalProviders
	globalProviders = newProviderRegistry()
	return func() { globalProviders = prev }
}

func TestBuiltinProviders(t *testing.T) {
	p, ok := ResolveProvider("GOOGLE")
	if !ok {
		t.Fatalf("google provider should be registered")
	}
	if p.BaseURL != "https://fonts.googleapis.com/css" {
		t.Fatalf("unexpected base url %s", p.BaseURL)
	}
	if key := ProviderForURL("https://fonts.bunny.net/css?family=Inter"); key != "bunny" {
		t.Fatalf("expected bunny, got %q", key)
	}
	if key := ProviderForURL("https://cdn.example.com/a.css"); key != "" {
		t.Fatalf("unknown host should not map to a provider, got %q", key)
	}
}

func TestRegisterProviderOrderingAndDuplicates(t *testing.T) {
	cleanup := replaceProviders(t)
	defer cleanup()

	if err := RegisterProvider(Provider{Key: "zeta", BaseURL: "https://z.test/css"}); err != nil {
		t.Fatalf("register zeta failed: %v", err)
	}
	if err := RegisterProvider(Provider{Key: "alpha", BaseURL: "https://a.test/css"}); err != nil {
		t.Fatalf("register alpha failed: %v", err)
	}
	if err := RegisterProvider(Provider{Key: "Alpha", BaseURL: "https://a2.test/css"}); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
	if err := RegisterProvider(Provider{Key: "nobase"}); err == nil {
		t.Fatalf("provider without base url should fail")
	}

	list := Providers()
	if len(list) != 2 || list[0].Key != "alpha" || list[1].Key != "zeta" {
		t.Fatalf("unexpected order: %+v", list)
	}
}
