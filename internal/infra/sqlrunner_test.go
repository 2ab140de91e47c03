package infra

import (
	"strings"
	"testing"

	"adstudio/internal/sqlinline"
)

func TestSplitMarker(t *testing.T) {
	marker, stmt, err := splitMarker(sqlinline.QInsertSession)
	if err != nil {
		t.Fatalf("splitMarker error: %v", err)
	}
	if len(marker) != 36 {
		t.Fatalf("marker = %q", marker)
	}
	if strings.Contains(stmt, "--sql") {
		t.Fatal("marker line leaked into the statement")
	}
	if !strings.Contains(stmt, "insert into sessions") {
		t.Fatalf("stmt = %q", stmt)
	}
}

func TestSplitMarkerRejectsUnmarkedQuery(t *testing.T) {
	if _, _, err := splitMarker("SELECT 1"); err == nil {
		t.Fatal("expected error for query without marker")
	}
}
