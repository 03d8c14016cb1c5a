package tensor

import (
	"testing"
)

func assertEqualShape(t *testing.T, expected, actual Shape, msg string) {
	t.Helper()
	if !expected.Equal(actual) {
		t.Errorf("%s: expected shape %v, got %v", msg, expected, actual)
	}
}

func TestDataTypeSize(t *testing.T) {
	tests := []struct {
		dtype DataType
		size  int
	}{
		{Float32, 4},
		{Float64, 8},
	}

	for _, tt := range tests {
		if got := tt.dtype.Size(); got != tt.size {
			t.Errorf("%s.Size(): expected %d, got %d", tt.dtype, tt.size, got)
		}
	}
}

func TestShapeNumElements(t *testing.T) {
	tests := []struct {
		shape Shape
		want  int
	}{
		{Shape{}, 1}, // scalar
		{Shape{5}, 5},
		{Shape{2, 3}, 6},
		{Shape{1, 64, 56, 56}, 200704},
	}

	for _, tt := range tests {
		if got := tt.shape.NumElements(); got != tt.want {
			t.Errorf("NumElements(%v): expected %d, got %d", tt.shape, tt.want, got)
		}
	}
}

func TestShapeValidate(t *testing.T) {
	if err := (Shape{2, 3, 4}).Validate(); err != nil {
		t.Errorf("valid shape rejected: %v", err)
	}
	if err := (Shape{2, 0, 4}).Validate(); err == nil {
		t.Error("zero dimension accepted")
	}
	if err := (Shape{-1}).Validate(); err == nil {
		t.Error("negative dimension accepted")
	}
}

func TestShapeEqualAndClone(t *testing.T) {
	s := Shape{2, 3, 4}
	if !s.Equal(Shape{2, 3, 4}) {
		t.Error("equal shapes reported unequal")
	}
	if s.Equal(Shape{2, 3}) {
		t.Error("shapes with different rank reported equal")
	}
	if s.Equal(Shape{2, 3, 5}) {
		t.Error("different shapes reported equal")
	}

	clone := s.Clone()
	clone[0] = 99
	if s[0] != 2 {
		t.Error("clone shares memory with original")
	}
}

func TestComputeStrides(t *testing.T) {
	tests := []struct {
		shape Shape
		want  []int
	}{
		{Shape{2, 3}, []int{3, 1}},
		{Shape{2, 3, 4}, []int{12, 4, 1}},
		{Shape{5}, []int{1}},
	}

	for _, tt := range tests {
		got := (tt.shape).ComputeStrides()
		if len(got) != len(tt.want) {
			t.Fatalf("ComputeStrides(%v): expected %v, got %v", tt.shape, tt.want, got)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ComputeStrides(%v): expected %v, got %v", tt.shape, tt.want, got)
				break
			}
		}
	}
}

func TestBroadcastShapes(t *testing.T) {
	tests := []struct {
		a, b   Shape
		want   Shape
		needed bool
	}{
		{Shape{3, 5}, Shape{3, 5}, Shape{3, 5}, false},
		{Shape{3, 1}, Shape{3, 4}, Shape{3, 4}, true},
		{Shape{1, 64, 1, 1}, Shape{8, 64, 56, 56}, Shape{8, 64, 56, 56}, true},
		{Shape{64}, Shape{8, 64}, Shape{8, 64}, true},
	}

	for _, tt := range tests {
		got, needed, err := BroadcastShapes(tt.a, tt.b)
		if err != nil {
			t.Fatalf("BroadcastShapes(%v, %v): unexpected error %v", tt.a, tt.b, err)
		}
		assertEqualShape(t, tt.want, got, "broadcast result")
		if needed != tt.needed {
			t.Errorf("BroadcastShapes(%v, %v): needsBroadcast expected %v, got %v", tt.a, tt.b, tt.needed, needed)
		}
	}
}

func TestBroadcastShapesIncompatible(t *testing.T) {
	if _, _, err := BroadcastShapes(Shape{3, 4}, Shape{3, 5}); err == nil {
		t.Error("incompatible shapes accepted")
	}
}
