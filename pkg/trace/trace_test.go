package trace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), "abc")
	assert.Equal(t, "abc", FromContext(ctx))
	assert.Equal(t, "", FromContext(context.Background()))
}

func TestFromHeaderOrNew(t *testing.T) {
	assert.Equal(t, "given", FromHeaderOrNew("given"))
	assert.NotEmpty(t, FromHeaderOrNew(""))
}
