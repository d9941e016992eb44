package dbutil

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestFinalize(t *testing.T) {
	query, args := Finalize("INSERT INTO t (a, b) VALUES (?, ?)", []interface{}{1, "x"})
	assert.Equal(t, "INSERT INTO t (a, b) VALUES ($1, $2)", query)
	assert.Equal(t, []interface{}{1, "x"}, args)
}

func TestIsConflict(t *testing.T) {
	unique := &pq.Error{Code: "23505"}
	assert.True(t, IsConflict(unique))
	assert.True(t, IsConflict(fmt.Errorf("insert concept pricing: %w", unique)))
	assert.False(t, IsConflict(&pq.Error{Code: "23503"}))
	assert.False(t, IsConflict(errors.New("plain")))
	assert.False(t, IsConflict(nil))
}
