package main

import (
	"testing"

	"go.ngs.io/climate-preproc/internal/preprocessor"
)

func TestParseFx(t *testing.T) {
	got, err := parseFx([]string{"areacella=fx/a.nc", "sftlf=", "areacella=fx/b.nc"})
	if err != nil {
		t.Fatalf("parseFx: %v", err)
	}
	want := preprocessor.FxFiles{
		{Name: "areacella", Path: "fx/a.nc"},
		{Name: "sftlf", Path: ""},
		{Name: "areacella", Path: "fx/b.nc"},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	for _, bad := range []string{"areacella", "=fx/a.nc"} {
		if _, err := parseFx([]string{bad}); err == nil {
			t.Errorf("parseFx(%q) succeeded, want error", bad)
		}
	}
}
