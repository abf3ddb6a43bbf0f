package schedule

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/tilesched/ir"
	"github.com/gomlx/tilesched/types/xslices"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// ResourceExhaustedError is returned by Schedule when some statement's
// refinements cannot simultaneously fit in cache under any placement
// strategy. The caller either raises capacity or restructures the IR;
// there is nothing to retry.
type ResourceExhaustedError struct {
	// Block names the block being scheduled.
	Block string

	// Statement names the sub-block whose IO could not be placed, when
	// the failing statement is a block.
	Statement string

	// MemBytes is the per-unit cache capacity that was exceeded.
	MemBytes uint64

	// Refs are the refinements simultaneously required by the failing
	// statement.
	Refs []string
}

func (e *ResourceExhaustedError) Error() string {
	where := e.Block
	if e.Statement != "" {
		where = fmt.Sprintf("%s (statement %s)", e.Block, e.Statement)
	}
	return fmt.Sprintf("block %s requires more memory than the %s cache can hold: needs %s simultaneously",
		where, humanize.IBytes(e.MemBytes), strings.Join(e.Refs, ", "))
}

// resourceExhausted reports the refs the failing statement needs and wraps
// them into the pass's single failure kind.
func (s *scheduler) resourceExhausted(currentBlock *ir.Block, ios []ioRecord) error {
	klog.Warningf("failed to create placement plan within %s of cache", humanize.IBytes(s.memBytes))
	failure := &ResourceExhaustedError{
		Block:    s.block.Name,
		MemBytes: s.memBytes,
	}
	if currentBlock != nil {
		failure.Statement = currentBlock.Name
	}
	failure.Refs = xslices.Map(ios, func(io ioRecord) string { return io.ri.name })
	for _, name := range failure.Refs {
		klog.Warningf("  requires: %s", s.riMap[name].ref)
	}
	return errors.WithStack(failure)
}
