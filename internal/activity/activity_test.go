package activity

import "testing"

func TestActionRoundTrip(t *testing.T) {
	for _, label := range []string{
		"assigned to bug",
		"assigned to test case",
		"mentioned in comment",
	} {
		a := ParseAction(label)
		if a.Kind == KindOther {
			t.Fatalf("%q parsed as other", label)
		}
		if a.String() != label {
			t.Fatalf("round trip %q -> %q", label, a.String())
		}
	}
}

func TestUnknownLabelPreserved(t *testing.T) {
	a := ParseAction("triaged nightly backlog")
	if a.Kind != KindOther {
		t.Fatalf("expected other, got kind %d", a.Kind)
	}
	if got := a.String(); got != "triaged nightly backlog" {
		t.Fatalf("label mangled: %q", got)
	}
}

func TestOtherConstructor(t *testing.T) {
	if got := Other("archived project").String(); got != "archived project" {
		t.Fatalf("got %q", got)
	}
}
