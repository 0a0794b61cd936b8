//go:build !darwin || !cgo

package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNativeSource_Unavailable(t *testing.T) {
	src := &NativeSource{}
	err := src.Run(context.Background(), &countingSink{})
	require.ErrorIs(t, err, ErrNativeUnavailable)
}
