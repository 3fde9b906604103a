package xsr

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFTPSource_Fetch_DialFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	src := NewFTPSource("127.0.0.1:1", "anonymous", "", "/export.csv")

	_, err := src.Fetch(ctx)
	assert.Error(t, err)
}
