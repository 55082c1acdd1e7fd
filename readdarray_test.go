package pio

import (
	"context"
	"testing"
)

func TestReadDarrayRejectsShortDestination(t *testing.T) {
	c, f, ioid, _ := singleRankFixture(t, 4)
	ctx := context.Background()

	if err := c.WriteDarray(ctx, f, 1, ioid, 4, []float64{1, 2, 3, 4}, nil); err != nil {
		t.Fatalf("WriteDarray: %v", err)
	}

	short := make([]float64, 2)
	err := c.ReadDarray(ctx, f, 1, ioid, 2, short)
	if !IsCode(err, CodeBadArg) {
		t.Errorf("expected CodeBadArg for undersized destination, got %v", err)
	}
}

func TestReadDarrayUnknownDecompID(t *testing.T) {
	c, f, _, _ := singleRankFixture(t, 4)
	out := make([]float64, 4)
	err := c.ReadDarray(context.Background(), f, 1, DecompID(999), 4, out)
	if !IsCode(err, CodeBadID) {
		t.Errorf("expected CodeBadID, got %v", err)
	}
}

func TestReadDarrayOfUnwrittenVariableIsZero(t *testing.T) {
	c, f, ioid, _ := singleRankFixture(t, 4)
	f.DefineVar(2, false, 0, nil, false)

	out := []float64{9, 9, 9, 9}
	if err := c.ReadDarray(context.Background(), f, 2, ioid, 4, out); err != nil {
		t.Fatalf("ReadDarray: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Errorf("out[%d] = %v, want 0", i, v)
		}
	}
}
