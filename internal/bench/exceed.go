package bench

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/ajitpratap0/blockpool/pkg/blockpool"
	"github.com/ajitpratap0/blockpool/pkg/config"
	"github.com/ajitpratap0/blockpool/pkg/errors"
	"github.com/ajitpratap0/blockpool/pkg/logger"
	stringpool "github.com/ajitpratap0/blockpool/pkg/strings"
)

// ExceedResult describes what happened when more objects were deleted than
// the free cache can hold.
type ExceedResult struct {
	Objects  int             `json:"objects"`
	Deleted  int             `json:"deleted"`
	Rejected int             `json:"rejected"`
	Err      error           `json:"-"`
	Stats    blockpool.Stats `json:"stats"`
}

// Exceed allocates MaxCachedFrees+1 builders from a fresh pool configured by
// pc and deletes them all. Under ReturnToSystem every delete succeeds and one
// block goes back to the allocator; under Fail the last delete is rejected
// with ErrCapacityExceeded, which is reported in the result rather than
// returned. The returned error covers anything else, including blocks still
// held by the allocator after the pool is closed.
func Exceed(ctx context.Context, pc config.PoolConfig) (*ExceedResult, error) {
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	alloc := blockpool.NewTrackingAllocator[stringpool.Builder](nil)
	p := blockpool.NewWithAllocator[stringpool.Builder](alloc, pc.Options()...)
	builders := blockpool.Bind[stringpool.Builder](p, (*stringpool.Builder).Reset, nil)

	res := &ExceedResult{Objects: pc.MaxCachedFrees + 1}
	objs := make([]*stringpool.Builder, 0, res.Objects)
	for i := 0; i < res.Objects; i++ {
		if i%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				_ = p.Close()
				return nil, err
			}
		}
		b, err := builders.New()
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		b.WriteString("Test")
		objs = append(objs, b)
	}

	for _, b := range objs {
		err := builders.Delete(b)
		switch {
		case err == nil:
			res.Deleted++
		case stderrors.Is(err, blockpool.ErrCapacityExceeded):
			res.Rejected++
			if res.Err == nil {
				res.Err = err
			}
		default:
			_ = p.Close()
			return nil, err
		}
	}
	res.Stats = p.Stats()

	if err := p.Close(); err != nil {
		return nil, err
	}
	if err := alloc.Verify(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "pool leaked blocks").
			WithDetail("pool", pc.Name)
	}

	if res.Err != nil {
		logger.WithContext(ctx).Warn("delete rejected",
			zap.Int("rejected", res.Rejected),
			zap.Int("max_cached_frees", pc.MaxCachedFrees),
			zap.Error(res.Err))
	}
	return res, nil
}
