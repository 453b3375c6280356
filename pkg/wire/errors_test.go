package wire

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisane/unisane-go/pkg/backend"
	"github.com/unisane/unisane-go/pkg/option"
	"github.com/unisane/unisane-go/pkg/scan"
	"github.com/unisane/unisane-go/pkg/transport"
)

// roundTrip sends err through an encoded response and returns the
// rebuilt error.
func roundTrip(t *testing.T, err error) error {
	t.Helper()
	data, encErr := EncodeResponse(NewErrorResponse(err))
	require.NoError(t, encErr)
	resp, decErr := DecodeResponse(data)
	require.NoError(t, decErr)
	require.False(t, resp.IsSuccess())
	return resp.Decode(nil)
}

func TestErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		kind     ErrorKind
		sentinel error
	}{
		{"inactive", fmt.Errorf("%w: threshold", option.ErrInactive), KindInactive, option.ErrInactive},
		{"not settable", fmt.Errorf("%w: lamp", option.ErrNotSettable), KindNotSettable, option.ErrNotSettable},
		{"not found", fmt.Errorf("%w: %q", option.ErrNotFound, "gamma"), KindNotFound, option.ErrNotFound},
		{"end of page", scan.ErrEndOfPage, KindEndOfPage, scan.ErrEndOfPage},
		{"end of session", fmt.Errorf("read: %w", scan.ErrEndOfSession), KindEndOfSession, scan.ErrEndOfSession},
		{"too large", fmt.Errorf("%w: page 0", transport.ErrMessageTooLarge), KindTooLarge, transport.ErrMessageTooLarge},
		{"internal", errors.New("boom"), KindInternal, ErrRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := FromError(tt.err)
			assert.Equal(t, tt.kind, info.Kind)

			got := roundTrip(t, tt.err)
			assert.True(t, errors.Is(got, tt.sentinel), "got %v", got)
			assert.Equal(t, tt.err.Error(), got.Error())
		})
	}
}

func TestInvalidValueErrorRebuilt(t *testing.T) {
	orig := &option.InvalidValueError{
		Option:     "resolution",
		Value:      200,
		Type:       option.TypeInt,
		Constraint: option.NewWordList(75, 150, 300),
		Reason:     "not in list",
	}

	got := roundTrip(t, fmt.Errorf("set resolution: %w", orig))
	require.True(t, errors.Is(got, option.ErrInvalidValue))

	var ive *option.InvalidValueError
	require.True(t, errors.As(got, &ive))
	assert.Equal(t, "resolution", ive.Option)
	assert.Equal(t, 200, ive.Value)
	assert.Equal(t, []int{75, 150, 300}, ive.Constraint.Words)
	assert.Equal(t, "not in list", ive.Reason)
}

func TestBackendErrorRebuilt(t *testing.T) {
	got := roundTrip(t, backend.NewError("start", backend.StatusCoverOpen))

	require.True(t, errors.Is(got, backend.ErrBackend))
	status, ok := backend.StatusOf(got)
	require.True(t, ok)
	assert.Equal(t, backend.StatusCoverOpen, status)
	assert.True(t, backend.IsTransient(got))
	assert.Contains(t, got.Error(), "start")
}

func TestFromErrorNil(t *testing.T) {
	assert.Nil(t, FromError(nil))
}

func TestUnknownKindIsRemote(t *testing.T) {
	err := (&ErrorInfo{Kind: "brand_new", Message: "from a newer daemon"}).Err()
	assert.True(t, errors.Is(err, ErrRemote))
	assert.Equal(t, "from a newer daemon", err.Error())
}
