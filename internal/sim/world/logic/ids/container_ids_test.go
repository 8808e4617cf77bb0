package ids

import "testing"

func TestContainerID(t *testing.T) {
	if got := ContainerID("DRAWER", 12, 0, -9); got != "DRAWER@12,0,-9" {
		t.Fatalf("ContainerID=%q", got)
	}
}

func TestParseUintAfterPrefix(t *testing.T) {
	if n, ok := ParseUintAfterPrefix("A", "A12"); !ok || n != 12 {
		t.Fatalf("got %d %v", n, ok)
	}
	if _, ok := ParseUintAfterPrefix("A", "I12"); ok {
		t.Fatalf("wrong prefix accepted")
	}
	if MaxU64(3, 9) != 9 || MaxU64(9, 3) != 9 {
		t.Fatalf("MaxU64")
	}
}
