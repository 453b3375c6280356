//go:build !sane

package native_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unisane/unisane-go/pkg/backend/sane/native"
)

func TestNewDriverUnavailable(t *testing.T) {
	assert.False(t, native.Available)
	drv, err := native.NewDriver()
	assert.Nil(t, drv)
	assert.ErrorIs(t, err, native.ErrUnavailable)
}
