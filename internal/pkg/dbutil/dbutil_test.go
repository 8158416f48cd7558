package dbutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFinalizeRewritesLimit(t *testing.T) {
	query, args := Finalize("SELECT id FROM documents WHERE has_embedding = ? ORDER BY created_at DESC LIMIT ?,?", []interface{}{false, 0, 50})
	require.Equal(t, "SELECT id FROM documents WHERE has_embedding = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3", query)
	require.Equal(t, []interface{}{false, 50, 0}, args)
}

func TestFinalizeWithoutLimit(t *testing.T) {
	query, args := Finalize("SELECT 1 WHERE a = ? AND b = ?", []interface{}{1, 2})
	require.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", query)
	require.Equal(t, []interface{}{1, 2}, args)
}

func TestJoinAnd(t *testing.T) {
	require.Equal(t, "", JoinAnd(nil))
	require.Equal(t, "(a = ?) AND (b = ?)", JoinAnd([]string{"a = ?", " ", "b = ?"}))
}
