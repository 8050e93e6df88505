package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func sampleSnapshot(method string) Snapshot {
	return Snapshot{
		RunID:        "run-" + method,
		Method:       method,
		Fingerprint:  "0123456789abcdef",
		GeneratedAt:  time.Now(),
		NumSim:       10,
		FoldSize:     2,
		NumFolds:     5,
		FoldFraction: 0.2,
		Tolerance:    1e-6,
		Outputs: []OutputSummary{
			{Name: "temperature", MeanRelativeErrorPercent: 1.5, MeanSquaredError: 0.25, ValidRows: 10},
		},
	}
}

func TestNewMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if store == nil {
		t.Fatal("NewMemoryStore() returned nil")
	}
	if len(store.snapshots) != 0 {
		t.Errorf("New store should be empty, got %d snapshots", len(store.snapshots))
	}
}

func TestMemoryStore_Put_Get(t *testing.T) {
	tests := []struct {
		name     string
		snapshot Snapshot
		wantErr  bool
	}{
		{
			name:     "valid snapshot",
			snapshot: sampleSnapshot("Kriging"),
		},
		{
			name:     "empty method",
			snapshot: Snapshot{RunID: "x", NumSim: 3},
			wantErr:  true,
		},
		{
			name:     "minimal valid snapshot",
			snapshot: Snapshot{Method: "Linear"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := NewMemoryStore()

			err := store.Put(context.Background(), tt.snapshot)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}

			got, found, err := store.GetLatest(context.Background(), tt.snapshot.Method)
			if err != nil {
				t.Fatalf("GetLatest() unexpected error = %v", err)
			}
			if !found {
				t.Fatal("GetLatest() found = false, want true")
			}
			if got.RunID != tt.snapshot.RunID {
				t.Errorf("RunID = %q, want %q", got.RunID, tt.snapshot.RunID)
			}
			if got.NumFolds != tt.snapshot.NumFolds {
				t.Errorf("NumFolds = %d, want %d", got.NumFolds, tt.snapshot.NumFolds)
			}
			if len(got.Outputs) != len(tt.snapshot.Outputs) {
				t.Errorf("Outputs = %v, want %v", got.Outputs, tt.snapshot.Outputs)
			}
		})
	}
}

func TestMemoryStore_GetLatest_NotFound(t *testing.T) {
	store := NewMemoryStore()

	snapshot, found, err := store.GetLatest(context.Background(), "SVM")
	if err != nil {
		t.Errorf("GetLatest() unexpected error = %v", err)
	}
	if found {
		t.Error("GetLatest() found = true for a method with no report")
	}
	if snapshot.Method != "" {
		t.Error("GetLatest() returned a non-zero snapshot")
	}
}

func TestMemoryStore_Put_ReplacesEarlierRun(t *testing.T) {
	store := NewMemoryStore()

	first := sampleSnapshot("Quadratic")
	second := sampleSnapshot("Quadratic")
	second.RunID = "second"
	second.NumSim = 20

	for _, s := range []Snapshot{first, second} {
		if err := store.Put(context.Background(), s); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
	}

	got, _, _ := store.GetLatest(context.Background(), "Quadratic")
	if got.RunID != "second" || got.NumSim != 20 {
		t.Errorf("GetLatest() = %+v, want the second run", got)
	}
	if len(store.snapshots) != 1 {
		t.Errorf("stored snapshots = %d, want 1", len(store.snapshots))
	}
}

func TestMemoryStore_CanceledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Put(ctx, sampleSnapshot("ANN")); err == nil {
		t.Error("Put() with canceled context should fail")
	}
	if _, _, err := store.GetLatest(ctx, "ANN"); err == nil {
		t.Error("GetLatest() with canceled context should fail")
	}
}

func TestMemoryStore_Concurrent(t *testing.T) {
	store := NewMemoryStore()
	methods := []string{"Kriging", "MARS", "ANN", "SVM"}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s := sampleSnapshot(methods[i%len(methods)])
			s.RunID = fmt.Sprintf("run-%d", i)
			if err := store.Put(context.Background(), s); err != nil {
				t.Errorf("Put() error = %v", err)
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			if _, _, err := store.GetLatest(context.Background(), methods[i%len(methods)]); err != nil {
				t.Errorf("GetLatest() error = %v", err)
			}
		}(i)
	}
	wg.Wait()

	if len(store.snapshots) != len(methods) {
		t.Errorf("stored snapshots = %d, want %d", len(store.snapshots), len(methods))
	}
}

func TestMemoryStoreWithTTL_Expiration(t *testing.T) {
	ttl := 100 * time.Millisecond
	cleanupInterval := 50 * time.Millisecond
	store := NewMemoryStoreWithTTL(ttl, cleanupInterval)
	defer store.Stop()

	if err := store.Put(context.Background(), sampleSnapshot("Kriging")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, found, _ := store.GetLatest(context.Background(), "Kriging"); !found {
		t.Fatal("snapshot should exist right after Put()")
	}

	time.Sleep(ttl + cleanupInterval + 50*time.Millisecond)

	if _, found, _ := store.GetLatest(context.Background(), "Kriging"); found {
		t.Error("snapshot should have expired")
	}
}

func TestMemoryStoreWithTTL_Stop(t *testing.T) {
	store := NewMemoryStoreWithTTL(time.Minute, time.Second)

	done := make(chan struct{})
	go func() {
		store.Stop()
		store.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}
}

func TestMemoryStore_StopWithoutTTL(t *testing.T) {
	store := NewMemoryStore()
	store.Stop()
}

func TestMemoryStoreWithTTL_PanicOnInvalidTTL(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewMemoryStoreWithTTL should panic with zero TTL")
		}
	}()
	NewMemoryStoreWithTTL(0, time.Second)
}
