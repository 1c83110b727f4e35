package mysql

import (
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/mnemos-ai/mnemos-go/pkg/storage"
)

// placeholders returns n comma-joined "?" markers for an IN clause.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// checkFound converts a zero-row update into storage.ErrNotFound.
func checkFound(op string, result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// nullableTime maps a *time.Time to its SQL argument.
func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

// nullableInt64 maps a *int64 to its SQL argument.
func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// boolToInt maps a bool to the TINYINT(1) encoding.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// cosineSimilarity calculates the cosine similarity between two vectors.
// Mismatched dimensions or zero-norm vectors score 0.
func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
