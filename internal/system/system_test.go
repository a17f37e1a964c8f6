package system

import "testing"

func TestDefaultWorkers(t *testing.T) {
	if n := DefaultWorkers(); n < 1 {
		t.Fatalf("DefaultWorkers = %d", n)
	}
}

func TestRead(t *testing.T) {
	snap, err := Read()
	if snap.LogicalCPUs < 1 || snap.Goroutines < 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if err == nil && snap.MemTotalMB == 0 {
		t.Fatalf("memory total missing without error: %+v", snap)
	}
	if snap.CPUPercent < 0 || snap.MemUsedPct < 0 || snap.MemUsedPct > 100 {
		t.Fatalf("percentages out of range %+v", snap)
	}
}
