package recordstate

import "testing"

func TestFreshRecordIsNotPersisted(t *testing.T) {
	tr := New()
	type rec struct{}
	r := &rec{}
	if tr.IsPersisted(r) {
		t.Fatal("a record never marked persisted should report false")
	}
	if !tr.IsDirty(r, map[string]any{"a": 1}) {
		t.Fatal("a record with no snapshot yet should be considered dirty")
	}
}

func TestMarkPersistedThenDirtyCheck(t *testing.T) {
	tr := New()
	type rec struct{}
	r := &rec{}

	tr.MarkPersisted(r, map[string]any{"a": int64(1), "b": "x"})
	if !tr.IsPersisted(r) {
		t.Fatal("expected record to be persisted after MarkPersisted")
	}
	if tr.IsDirty(r, map[string]any{"a": int64(1), "b": "x"}) {
		t.Fatal("identical extract should not be dirty")
	}
	if !tr.IsDirty(r, map[string]any{"a": int64(1), "b": "y"}) {
		t.Fatal("changed column value should be dirty")
	}
	if !tr.IsDirty(r, map[string]any{"a": int64(1)}) {
		t.Fatal("a dropped column should be dirty")
	}
}

func TestClearPersistedResetsSnapshot(t *testing.T) {
	tr := New()
	type rec struct{}
	r := &rec{}

	tr.MarkPersisted(r, map[string]any{"a": int64(1)})
	tr.ClearPersisted(r)
	if tr.IsPersisted(r) {
		t.Fatal("expected record to no longer be persisted")
	}
	if !tr.IsDirty(r, map[string]any{"a": int64(1)}) {
		t.Fatal("a cleared record's snapshot should no longer match")
	}
}

func TestTwoRecordsTrackedIndependently(t *testing.T) {
	tr := New()
	type rec struct{ n int }
	a, b := &rec{1}, &rec{2}

	tr.MarkPersisted(a, map[string]any{"n": 1})
	if tr.IsPersisted(b) {
		t.Fatal("marking one record persisted must not affect another")
	}
}
