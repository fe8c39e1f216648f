package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: Unknown},
		{name: "plain", err: cause, want: Unknown},
		{name: "direct", err: Wrap(Network, "fetch", cause), want: Network},
		{name: "wrapped", err: fmt.Errorf("sync CSE: %w", New(DataNotFound, "fetch", "no document")), want: DataNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessageAndUnwrap(t *testing.T) {
	cause := errors.New("timeout")
	err := Wrap(Network, "redis.FetchDocument", cause)

	assert.Equal(t, "redis.FetchDocument: network: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsKind(err, Network))
	assert.False(t, IsKind(nil, Network))
}

func TestClassifyKeepsExistingKind(t *testing.T) {
	inner := New(DataParsing, "decode", "bad schedule")
	assert.Same(t, inner, Classify(Database, "store", inner))

	plain := errors.New("boom")
	assert.Equal(t, Database, KindOf(Classify(Database, "store", plain)))
	assert.NoError(t, Classify(Database, "store", nil))
}
