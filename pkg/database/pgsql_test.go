package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewPgxPool_EmptyURL(t *testing.T) {
	pool, err := NewPgxPool(context.Background(), "")
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestNewPgxPool_MalformedURL(t *testing.T) {
	pool, err := NewPgxPool(context.Background(), "postgres://bad url with spaces")
	assert.Error(t, err)
	assert.Nil(t, pool)
}

func TestClosePgxPool_NilPoolIsNoop(t *testing.T) {
	ClosePgxPool(nil)
}
