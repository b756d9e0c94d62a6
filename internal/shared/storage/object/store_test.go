package object

import "testing"

func TestOwnedBy(t *testing.T) {
	key := OwnerPrefix("acct-1") + "exports/abc_report.md"
	if !OwnedBy(key, "acct-1") {
		t.Fatalf("expected key to belong to acct-1")
	}
	if OwnedBy(key, "acct-2") {
		t.Fatalf("expected key not to belong to acct-2")
	}
	if OwnedBy(OwnerPrefix("acct-1")+"../other/file", "acct-1") {
		t.Fatalf("expected traversal to be rejected")
	}
}
