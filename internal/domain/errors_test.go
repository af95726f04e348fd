package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOfClassifiesWrappedErrors(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{fmt.Errorf("add: %w", ErrInvalidQuantity), KindValidation},
		{fmt.Errorf("add: %w", Detail(ErrExceedsAvailable, "only %d left", 3)), KindStock},
		{&NetworkError{Op: "list products", Err: errors.New("dial tcp: refused")}, KindNetwork},
		{fmt.Errorf("save: %w", &APIError{Status: 400, Message: "items: required"}), KindAPI},
		{ErrMalformedResponse, KindMalformed},
		{errors.New("boom"), KindUnknown},
		{nil, ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func TestDetailStillMatchesSentinel(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Detail(ErrOutOfStock, "%s is out of stock", "Charger"))
	require.ErrorIs(t, err, ErrOutOfStock)
	require.NotErrorIs(t, err, ErrExceedsAvailable)
	require.Equal(t, "Charger is out of stock", UserMessage(err))
}

func TestFlattenFieldErrorsSortsKeys(t *testing.T) {
	got := FlattenFieldErrors(map[string][]string{
		"items":         {"This field is required."},
		"customer_name": {"too long", "invalid"},
	})
	require.Equal(t, "customer_name: too long, invalid; items: This field is required.", got)
	require.Empty(t, FlattenFieldErrors(nil))
}

func TestParseVariant(t *testing.T) {
	v, ok := ParseVariant(" Bill ")
	require.True(t, ok)
	require.Equal(t, VariantInvoice, v)

	_, ok = ParseVariant("receipt")
	require.False(t, ok)
}
