package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	a := New()
	b := New()

	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	assert.Regexp(t, "^[0-9a-f]{8}$", a)
}

func TestRun(t *testing.T) {
	now := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	got := Run(now)

	assert.Regexp(t, "^20240315-[0-9a-f]{8}$", got)
}
