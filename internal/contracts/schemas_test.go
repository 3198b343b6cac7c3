package contracts

import (
	"strings"
	"testing"
)

func TestGenerateKeyFromPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"schemas/events/listing-invalidation/v1.json", "ListingInvalidationEvent/1.0.0"},
		{"schemas/events/cache-activation-report/v1.json", "CacheActivationReportEvent/1.0.0"},
		{"schemas/events/broken.json", ""},
	}
	for _, tc := range cases {
		if got := generateKeyFromPath(tc.path); got != tc.want {
			t.Errorf("generateKeyFromPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestValidateEvent_ListingInvalidation(t *testing.T) {
	valid := []byte(`{"reason":"listing_updated","listing_id":"9b2f1c1e-1a2b-4c3d-8e4f-5a6b7c8d9e0f"}`)
	if err := ValidateEvent("ListingInvalidationEvent", "1.0.0", valid); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	// reason вне enum'а
	invalid := []byte(`{"reason":"price_drop"}`)
	if err := ValidateEvent("ListingInvalidationEvent", "1.0.0", invalid); err == nil {
		t.Fatalf("unknown reason must fail validation")
	}

	// reason обязателен
	missing := []byte(`{"listing_id":"9b2f1c1e-1a2b-4c3d-8e4f-5a6b7c8d9e0f"}`)
	if err := ValidateEvent("ListingInvalidationEvent", "1.0.0", missing); err == nil {
		t.Fatalf("payload without reason must fail validation")
	}

	// Лишние поля запрещены
	extra := []byte(`{"reason":"listing_removed","unexpected":true}`)
	if err := ValidateEvent("ListingInvalidationEvent", "1.0.0", extra); err == nil {
		t.Fatalf("payload with unknown fields must fail validation")
	}
}

func TestValidateEvent_UnknownSchema(t *testing.T) {
	err := ValidateEvent("NoSuchEvent", "1.0.0", []byte(`{}`))
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("unknown event type must report a missing schema, got %v", err)
	}
}

func TestValidateEvent_MalformedJSON(t *testing.T) {
	if err := ValidateEvent("ListingInvalidationEvent", "1.0.0", []byte(`{not json`)); err == nil {
		t.Fatalf("malformed JSON must fail validation")
	}
}
