// Package provenance reconstructs the ordered ownership history of a tokenized asset. The reconstruction is two-tier:
// the registry's full-history query when the deployment implements it, otherwise a synthesized chain from the current
// descriptive record. Every call site shares this one implementation.
package provenance

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/medtrace/psync/lib/contract"
	"github.com/medtrace/psync/lib/ledger/types"
	"github.com/medtrace/psync/lib/util"
)

// Reconstructor builds provenance chains. The clock is injectable because the fallback path stamps the current owner
// with the reconstruction time, the only permitted source of non-determinism.
type Reconstructor struct {
	now func() time.Time
}

// New returns a reconstructor using the wall clock.
func New() *Reconstructor {
	return &Reconstructor{now: time.Now}
}

// NewWithClock returns a reconstructor using the given clock.
func NewWithClock(now func() time.Time) *Reconstructor {
	return &Reconstructor{now: now}
}

// Reconstruct returns the ownership chain of the token, oldest first. Index 0 is always the minting event. When the
// full-history query is unavailable the chain is synthesized from the asset's descriptive record: the manufacturer at
// manufacture time and, if it differs from the manufacturer, the current owner stamped with the reconstruction time
// (an approximation, the true transfer time is unknown on that path). When even the fallback fails the chain is empty
// rather than an error, so callers can render a "no history available" state.
func (r *Reconstructor) Reconstruct(ctx context.Context, tokenID uint64, set *contract.Set) []types.OwnershipRecord {
	hist, err := set.OwnershipHistory(ctx, tokenID)
	if err == nil && len(hist) > 0 {
		recs := make([]types.OwnershipRecord, len(hist))
		for i, h := range hist {
			label := types.LabelMinting
			if i > 0 {
				label = fmt.Sprintf("Transfer #%d", i)
			}

			recs[i] = types.OwnershipRecord{Owner: h.Owner, TS: h.TS, Label: label}
		}

		return recs
	}

	if err != nil {
		log.Printf("[%s] full history of token %d unavailable, synthesizing: %v", set.Net(), tokenID, err)
	}

	rec, err := set.AssetDetails(ctx, tokenID)
	if err != nil {
		log.Printf("[%s] cannot synthesize history of token %d: %v", set.Net(), tokenID, err)

		return []types.OwnershipRecord{}
	}

	chain := []types.OwnershipRecord{
		{Owner: rec.Manufacturer, TS: rec.MfgTime, Label: types.LabelMinting},
	}

	if !util.EqualAddr(rec.Owner, rec.Manufacturer) {
		chain = append(chain, types.OwnershipRecord{Owner: rec.Owner, TS: r.now().Unix(), Label: types.LabelOwner})
	}

	return chain
}
