package util

import (
	"reflect"
	"testing"
)

func TestSplitTickers(t *testing.T) {
	got := SplitTickers(" msft, googl;META  msft,,")
	want := []string{"MSFT", "GOOGL", "META"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(SplitTickers("")) != 0 {
		t.Fatalf("expected empty")
	}
}

func TestParseOptionalFloat(t *testing.T) {
	v, err := ParseOptionalFloat("")
	if err != nil || v != nil {
		t.Fatalf("expected nil, nil")
	}
	v, err = ParseOptionalFloat(" 0.07 ")
	if err != nil || v == nil || *v != 0.07 {
		t.Fatalf("unexpected %v %v", v, err)
	}
	if _, err = ParseOptionalFloat("abc"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList("pe_ratio, ,ev_to_ebitda")
	if !reflect.DeepEqual(got, []string{"pe_ratio", "ev_to_ebitda"}) {
		t.Fatalf("got %v", got)
	}
}
