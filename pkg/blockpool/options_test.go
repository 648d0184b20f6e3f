package blockpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/blockpool/pkg/errors"
)

func TestParseOverflowPolicy(t *testing.T) {
	tests := []struct {
		in   string
		want OverflowPolicy
	}{
		{"", ReturnToSystem},
		{"return_to_system", ReturnToSystem},
		{"Return", ReturnToSystem},
		{"free", ReturnToSystem},
		{"fail", Fail},
		{" THROW ", Fail},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOverflowPolicy(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseOverflowPolicy("drop")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestOverflowPolicy_Text(t *testing.T) {
	var p OverflowPolicy
	require.NoError(t, p.UnmarshalText([]byte("fail")))
	assert.Equal(t, Fail, p)
	assert.Equal(t, "fail", p.String())

	b, err := ReturnToSystem.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "return_to_system", string(b))

	assert.Error(t, p.UnmarshalText([]byte("bogus")))
	assert.Equal(t, Fail, p)
	assert.Equal(t, "unknown", OverflowPolicy(9).String())
}

func TestOptions(t *testing.T) {
	p := New[record](
		WithName("opts"),
		WithMaxCachedFrees(-1),
		WithOverflowPolicy(Fail),
		WithStrictOverflow(true),
	)
	defer p.Close()

	assert.Equal(t, Config{
		Name:           "opts",
		MaxCachedFrees: 0,
		OverflowPolicy: Fail,
		StrictOverflow: true,
	}, p.Config())
}
