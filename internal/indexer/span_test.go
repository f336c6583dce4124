package indexer

import (
	"reflect"
	"testing"
)

func TestSplitSpans(t *testing.T) {
	got, err := splitSpans(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []blockSpan{
		{from: 100, to: 101},
		{from: 102, to: 103},
		{from: 104, to: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("spans mismatch: %+v != %+v", got, want)
	}
}

func TestSplitSpansShortTail(t *testing.T) {
	got, err := splitSpans(0, 6, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []blockSpan{{from: 0, to: 2}, {from: 3, to: 5}, {from: 6, to: 6}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("spans mismatch: %+v != %+v", got, want)
	}
}

func TestSplitSpansBatchLargerThanWindow(t *testing.T) {
	got, err := splitSpans(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []blockSpan{{from: 5, to: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("spans mismatch: %+v != %+v", got, want)
	}
}

func TestSplitSpansNearMaxUint64(t *testing.T) {
	const top = ^uint64(0)
	got, err := splitSpans(top-2, top, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []blockSpan{{from: top - 2, to: top - 1}, {from: top, to: top}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("spans mismatch: %+v != %+v", got, want)
	}
}

func TestSplitSpansInvalid(t *testing.T) {
	if _, err := splitSpans(10, 9, 1); err == nil {
		t.Fatalf("expected error for inverted window")
	}
	if _, err := splitSpans(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero batch size")
	}
}
