package gapgo_test

import (
	"context"
	"fmt"
	"log"

	gapgo "github.com/hupe1980/gapgo"
	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/gap"
	"github.com/hupe1980/gapgo/kernel"
	"github.com/hupe1980/gapgo/structure"
)

// Example fits an energy-only potential from a JSON dataset and
// precomputed features, then persists it.
func Example() {
	ctx := context.Background()

	structures, err := structure.LoadJSON("testdata/train.json")
	if err != nil {
		log.Fatal(err)
	}

	desc, err := descriptor.New(3.5, 0.5, 8, 6, func(o *descriptor.Options) {
		o.Species = descriptor.UserDefined(1, 8)
	})
	if err != nil {
		log.Fatal(err)
	}

	kern, err := kernel.New(desc, func(o *kernel.Options) { o.Zeta = 2 })
	if err != nil {
		log.Fatal(err)
	}

	// Features come from the external descriptor engine.
	var feats *descriptor.FeatureMatrix

	fitter, err := gapgo.NewFitter(kern, 500, gap.Baseline{1: -6.49, 8: -428.54},
		gapgo.WithEnergyRegularizer(1e-3),
		gapgo.WithDescription("water dimer potential"),
	)
	if err != nil {
		log.Fatal(err)
	}

	model, err := fitter.Fit(ctx, structures, feats)
	if err != nil {
		log.Fatal(err)
	}

	if err := gapgo.SaveModel("model.json", model); err != nil {
		log.Fatal(err)
	}

	fmt.Println(model.Description())
}
