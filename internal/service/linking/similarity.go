package linking

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch 两个向量维度不同，无法比较
var ErrDimensionMismatch = errors.New("vector dimensions differ")

// Cosine 余弦相似度；任一向量为零向量时返回 0
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}
