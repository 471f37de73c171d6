package ensemble

import (
	"context"

	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/contract-gardener/pkg/contractgardener/common"
)

// Collect queries both predictors concurrently and waits for both. A failed
// or missing predictor yields an unavailable output rather than an error.
func Collect(ctx context.Context, stationID string, sequence, tree Predictor) (ModelOutput, ModelOutput) {
	var seqOut, treeOut ModelOutput
	var g errgroup.Group

	g.Go(func() error {
		seqOut = query(ctx, common.ModelSequence, stationID, sequence)
		return nil
	})
	g.Go(func() error {
		treeOut = query(ctx, common.ModelTree, stationID, tree)
		return nil
	})
	_ = g.Wait()

	return seqOut, treeOut
}

func query(ctx context.Context, model, stationID string, p Predictor) ModelOutput {
	if p == nil {
		return ModelOutput{Error: "no predictor configured"}
	}
	out, err := p.Predict(ctx, stationID)
	if err != nil {
		klog.V(2).InfoS("Predictive model call failed", "model", model, "station", stationID, "error", err)
		return ModelOutput{Error: err.Error()}
	}
	if out == nil {
		return ModelOutput{Error: "empty prediction"}
	}
	return *out
}
