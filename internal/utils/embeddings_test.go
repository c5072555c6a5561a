package utils

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name    string
		a, b    []float32
		want    float32
		wantErr bool
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "zero magnitude", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "dimension mismatch", a: []float32{1}, b: []float32{1, 2}, wantErr: true},
		{name: "empty", a: nil, b: []float32{1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CosineSimilarity(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CosineSimilarity(%v, %v) expected error", tt.a, tt.b)
				}
				return
			}
			if err != nil {
				t.Fatalf("CosineSimilarity() error = %v", err)
			}
			if math.Abs(float64(got-tt.want)) > 1e-6 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVectorEncoding(t *testing.T) {
	raw, err := EncodeVector([]float32{0.5, -1, 2})
	if err != nil {
		t.Fatalf("EncodeVector() error = %v", err)
	}
	vec, err := DecodeVector(raw)
	if err != nil {
		t.Fatalf("DecodeVector() error = %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.5 || vec[1] != -1 || vec[2] != 2 {
		t.Errorf("DecodeVector() = %v", vec)
	}

	empty, err := DecodeVector("")
	if err != nil || empty != nil {
		t.Errorf("DecodeVector(\"\") = %v, %v; want nil, nil", empty, err)
	}
	if _, err := DecodeVector("not json"); err == nil {
		t.Error("DecodeVector(invalid) expected error")
	}
}
