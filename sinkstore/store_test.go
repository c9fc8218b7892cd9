package sinkstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func testRecord(key, canary string) Record {
	data, _ := json.Marshal(map[string]string{
		"arg0": "<img src=x onerror=" + canary + ">",
	})
	return Record{
		DedupKey:     key,
		SinkName:     "Element.innerHTML",
		Tag:          "dom-write",
		URL:          "https://target.example/search?q=" + canary,
		CapturedData: data,
		Canary:       canary,
		Timestamp:    time.Now(),
	}
}

// stores returns both implementations so query semantics are verified
// against the same cases.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]Store{"mem": NewMemStore(), "sqlite": sq}
}

func TestQueryCanary_DiscoveryOrderAndTruncation(t *testing.T) {
	ctx := context.Background()

	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				rec := testRecord(fmt.Sprintf("dk-%d", i), "XSS_CANARY_42")
				if err := st.Put(ctx, rec); err != nil {
					t.Fatalf("Put: %v", err)
				}
			}
			// One record with a different canary must not match.
			if err := st.Put(ctx, testRecord("dk-other", "OTHER_CANARY")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := st.QueryCanary(ctx, "XSS_CANARY_42", 3)
			if err != nil {
				t.Fatalf("QueryCanary: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("QueryCanary: got %d records, want 3", len(got))
			}
			for i, rec := range got {
				want := fmt.Sprintf("dk-%d", i)
				if rec.DedupKey != want {
					t.Errorf("record %d: got key %q, want %q (discovery order)", i, rec.DedupKey, want)
				}
			}

			n, err := st.CountCanary(ctx, "XSS_CANARY_42")
			if err != nil {
				t.Fatalf("CountCanary: %v", err)
			}
			if n != 5 {
				t.Errorf("CountCanary: got %d, want 5", n)
			}
		})
	}
}

func TestQueryCanary_NoMatchIsEmptyNotError(t *testing.T) {
	ctx := context.Background()

	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Put(ctx, testRecord("dk-0", "XSS_CANARY_42")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := st.QueryCanary(ctx, "NO_SUCH_CANARY", 10)
			if err != nil {
				t.Fatalf("QueryCanary: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("QueryCanary: got %d records, want 0", len(got))
			}
		})
	}
}

func TestQueryCanary_Idempotent(t *testing.T) {
	ctx := context.Background()

	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Put(ctx, testRecord("dk-0", "XSS_CANARY_42")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			first, err := st.QueryCanary(ctx, "XSS_CANARY_42", 10)
			if err != nil {
				t.Fatalf("QueryCanary: %v", err)
			}
			second, err := st.QueryCanary(ctx, "XSS_CANARY_42", 10)
			if err != nil {
				t.Fatalf("QueryCanary: %v", err)
			}
			if len(first) != 1 || len(second) != 1 {
				t.Fatalf("QueryCanary: got %d then %d records, want 1 and 1", len(first), len(second))
			}
			if first[0].DedupKey != second[0].DedupKey {
				t.Errorf("re-query changed results: %q vs %q", first[0].DedupKey, second[0].DedupKey)
			}
		})
	}
}

func TestQueryCanary_SubstringOfCapturedData(t *testing.T) {
	ctx := context.Background()

	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			// Canary column empty: matching must fall back to the payload.
			rec := testRecord("dk-payload", "PAYLOAD_CANARY_7")
			rec.Canary = ""
			if err := st.Put(ctx, rec); err != nil {
				t.Fatalf("Put: %v", err)
			}

			got, err := st.QueryCanary(ctx, "PAYLOAD_CANARY_7", 0)
			if err != nil {
				t.Fatalf("QueryCanary: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("QueryCanary: got %d records, want 1 (substring match)", len(got))
			}
		})
	}
}

func TestPut_UpsertKeepsDiscoveryOrder(t *testing.T) {
	ctx := context.Background()

	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Put(ctx, testRecord("dk-a", "C1")); err != nil {
				t.Fatalf("Put: %v", err)
			}
			if err := st.Put(ctx, testRecord("dk-b", "C1")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			// Re-ingest dk-a: position must not move.
			updated := testRecord("dk-a", "C1")
			updated.Tag = "updated"
			if err := st.Put(ctx, updated); err != nil {
				t.Fatalf("Put upsert: %v", err)
			}

			got, err := st.QueryCanary(ctx, "C1", 0)
			if err != nil {
				t.Fatalf("QueryCanary: %v", err)
			}
			if len(got) != 2 {
				t.Fatalf("QueryCanary: got %d records, want 2", len(got))
			}
			if got[0].DedupKey != "dk-a" || got[1].DedupKey != "dk-b" {
				t.Errorf("order after upsert: got %q,%q want dk-a,dk-b", got[0].DedupKey, got[1].DedupKey)
			}
			if got[0].Tag != "updated" {
				t.Errorf("upsert did not replace record: tag %q", got[0].Tag)
			}
		})
	}
}

func TestGet(t *testing.T) {
	ctx := context.Background()

	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if err := st.Put(ctx, testRecord("dk-get", "C2")); err != nil {
				t.Fatalf("Put: %v", err)
			}

			rec, ok, err := st.Get(ctx, "dk-get")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if !ok {
				t.Fatal("Get: record not found")
			}
			if rec.SinkName != "Element.innerHTML" {
				t.Errorf("SinkName: got %q", rec.SinkName)
			}

			_, ok, err = st.Get(ctx, "dk-missing")
			if err != nil {
				t.Fatalf("Get missing: %v", err)
			}
			if ok {
				t.Error("Get: found a record that was never ingested")
			}
		})
	}
}
