package storage

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/HatiCode/romcv/pkg/compress"
	"github.com/HatiCode/romcv/pkg/errstats"
)

func TestSummaries_PoisonedMeanIsNull(t *testing.T) {
	outputs := []errstats.OutputError{
		{Name: "temp", MeanRelativeErrorPercent: 2.5, MeanSquaredError: 0.1, ValidRows: 4},
		{Name: "flux", MeanRelativeErrorPercent: math.NaN(), MeanSquaredError: 3, ValidRows: 1},
	}

	s := Snapshot{Method: "Kriging", Outputs: Summaries(outputs)}
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if !strings.Contains(string(data), `"name":"flux","meanRelativeErrorPercent":null`) {
		t.Errorf("poisoned mean should marshal as null: %s", data)
	}

	var got Snapshot
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if float64(got.Outputs[0].MeanRelativeErrorPercent) != 2.5 {
		t.Errorf("temp MRE = %v, want 2.5", got.Outputs[0].MeanRelativeErrorPercent)
	}
	if !math.IsNaN(float64(got.Outputs[1].MeanRelativeErrorPercent)) {
		t.Errorf("flux MRE = %v, want NaN", got.Outputs[1].MeanRelativeErrorPercent)
	}
	if got.Outputs[1].ValidRows != 1 {
		t.Errorf("flux ValidRows = %d, want 1", got.Outputs[1].ValidRows)
	}
}

func TestEnvelope_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat(`{"name":"y","meanSquaredError":1}`, 50))

	for _, typ := range []compress.Type{compress.None, compress.Zstd, compress.S2, compress.LZ4} {
		t.Run(string(typ), func(t *testing.T) {
			c, err := compress.CreateCodec(typ)
			if err != nil {
				t.Fatalf("CreateCodec() error = %v", err)
			}
			value, err := encodeEnvelope(c, payload)
			if err != nil {
				t.Fatalf("encodeEnvelope() error = %v", err)
			}
			if value[0] != codecTags[typ] {
				t.Errorf("tag = %d, want %d", value[0], codecTags[typ])
			}
			got, err := decodeEnvelope(value)
			if err != nil {
				t.Fatalf("decodeEnvelope() error = %v", err)
			}
			if string(got) != string(payload) {
				t.Error("payload mismatch after round trip")
			}
		})
	}
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	if _, err := decodeEnvelope(nil); err == nil {
		t.Error("expected error for empty value")
	}
	if _, err := decodeEnvelope([]byte{42, 1, 2}); err == nil {
		t.Error("expected error for unknown tag")
	}
}

func TestValidMethod(t *testing.T) {
	for _, m := range []string{"Kriging", "Poly4", "my-backend_2"} {
		if err := validMethod(m); err != nil {
			t.Errorf("validMethod(%q) error = %v", m, err)
		}
	}
	for _, m := range []string{"", "a:b", "x y", "../etc"} {
		if err := validMethod(m); err == nil {
			t.Errorf("validMethod(%q) expected error", m)
		}
	}
}

func TestKey(t *testing.T) {
	if got := Key("SVM"); got != "romcv:report:SVM" {
		t.Errorf("Key() = %q", got)
	}
}

func TestRedisStore_UseAfterClose(t *testing.T) {
	store := &RedisStore{ttl: time.Minute, codec: compress.NoOp{}}
	ctx := context.Background()

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := store.Put(ctx, sampleSnapshot("Kriging")); !errors.Is(err, ErrClosed) {
		t.Errorf("Put() error = %v, want ErrClosed", err)
	}
	if _, _, err := store.GetLatest(ctx, "Kriging"); !errors.Is(err, ErrClosed) {
		t.Errorf("GetLatest() error = %v, want ErrClosed", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Ping() error = %v, want ErrClosed", err)
	}
}
