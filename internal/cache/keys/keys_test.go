package keys

import (
	"regexp"
	"strings"
	"testing"
)

var keyShape = regexp.MustCompile(`^terrai:geostore:[A-Za-z0-9_\-]*:h=[0-9a-f]{16}$`)

func TestGeostore_Deterministic(t *testing.T) {
	k1 := Geostore("026eb3ad3f0d0bbf1b1fbee2e1a80a2a")
	k2 := Geostore(" 026eb3ad3f0d0bbf1b1fbee2e1a80a2a ")
	if k1 != k2 {
		t.Fatalf("keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !strings.HasPrefix(k1, "terrai:geostore:026eb3ad3f0d0bbf1b1fbee2e1a80a2a:h=") {
		t.Fatalf("unexpected key %s", k1)
	}
}

func TestGeostore_SanitizesHostileInput(t *testing.T) {
	k := Geostore("a b\r\nFLUSHALL ü/../x")
	if !keyShape.MatchString(k) {
		t.Fatalf("key contains disallowed characters: %s", k)
	}
}

func TestGeostore_DistinctAfterSanitizing(t *testing.T) {
	if Geostore("a/b") == Geostore("a.b") {
		t.Fatalf("inputs that sanitize alike must still hash apart")
	}
}

func TestGeostore_TruncatesLabel(t *testing.T) {
	k := Geostore(strings.Repeat("x", 500))
	if len(k) > len("terrai:geostore:")+maxLabelLen+len(":h=")+16 {
		t.Fatalf("key too long: %d", len(k))
	}
	if !keyShape.MatchString(k) {
		t.Fatalf("bad key %s", k)
	}
}
