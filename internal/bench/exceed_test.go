package bench

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
	"github.com/ajitpratap0/blockpool/pkg/config"
	"github.com/ajitpratap0/blockpool/pkg/errors"
	"github.com/ajitpratap0/blockpool/pkg/logger"
	"github.com/ajitpratap0/blockpool/pkg/testutil"
)

func TestExceed(t *testing.T) {
	defer logger.SetLogger(testutil.TestLogger(t))()

	tests := []struct {
		name         string
		policy       string
		strict       bool
		wantRejected int
		wantLive     int
		wantDetached int
		wantOverflow int64
	}{
		{name: "return to system", policy: "return_to_system", wantOverflow: 1},
		{name: "fail", policy: "fail", wantRejected: 1, wantDetached: 1, wantOverflow: 1},
		{name: "fail strict", policy: "fail", strict: true, wantRejected: 1, wantLive: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pc := config.NewPoolConfig("exceed")
			pc.MaxCachedFrees = 8
			pc.OverflowPolicy = tt.policy
			pc.StrictOverflow = tt.strict

			res, err := Exceed(context.Background(), pc)
			require.NoError(t, err)

			assert.Equal(t, 9, res.Objects)
			assert.Equal(t, 9-tt.wantRejected, res.Deleted)
			assert.Equal(t, tt.wantRejected, res.Rejected)
			assert.Equal(t, tt.wantLive, res.Stats.Live)
			assert.Equal(t, tt.wantDetached, res.Stats.Detached)
			assert.Equal(t, 8, res.Stats.Cached)
			assert.Equal(t, tt.wantOverflow, res.Stats.Overflows)
			assert.Equal(t, int64(tt.wantRejected), res.Stats.Rejections)

			if tt.wantRejected == 0 {
				assert.NoError(t, res.Err)
				assert.Equal(t, int64(1), res.Stats.SystemFrees)
				return
			}
			assert.ErrorIs(t, res.Err, blockpool.ErrCapacityExceeded)
			maxFrees, ok := errors.Detail(res.Err, "max_cached_frees")
			require.True(t, ok)
			assert.Equal(t, 8, maxFrees)
		})
	}
}

func TestExceed_InvalidConfig(t *testing.T) {
	pc := config.NewPoolConfig("exceed")
	pc.OverflowPolicy = "explode"

	_, err := Exceed(context.Background(), pc)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExceed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Exceed(ctx, config.NewPoolConfig("exceed"))
	assert.ErrorIs(t, err, context.Canceled)
}
