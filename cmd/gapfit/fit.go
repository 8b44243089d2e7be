package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	gapgo "github.com/hupe1980/gapgo"
	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/gap"
	"github.com/hupe1980/gapgo/sparsify"
	"github.com/hupe1980/gapgo/structure"
)

func init() {
	rootCmd.AddCommand(fitCmd)

	f := fitCmd.Flags()
	f.IntSliceVarP(&fitFlags.nTrain, "n-train", "n", nil, "training set sizes (repeat for a learning curve)")
	f.IntVarP(&fitFlags.nTest, "n-test", "t", 0, "number of trailing structures held out for testing")
	f.BoolVarP(&fitFlags.printResiduals, "print-residuals", "p", false, "print test-set residual summaries")
	f.StringVarP(&fitFlags.writeResiduals, "write-residuals", "w", "", "write per-structure residuals to a templated JSON file ({n} expands to the training size)")
	f.StringVarP(&fitFlags.output, "output", "o", "", "model output file, templated by {n}")
	f.IntVarP(&fitFlags.power, "power", "z", 0, "kernel power (zeta)")
	f.StringVar(&fitFlags.energyName, "energy-parameter-name", "", "structure property holding reference energies")
	f.StringVar(&fitFlags.forceName, "force-parameter-name", "", "structure property holding reference forces")
	f.StringVar(&fitFlags.description, "description", "", "free-form model description")
	f.StringVar(&fitFlags.workDir, "working-directory", "", "directory paths in the parameter document are relative to")
	f.BoolVarP(&fitFlags.verbose, "verbose", "v", false, "enable debug logging")
}

var fitFlags struct {
	nTrain         []int
	nTest          int
	printResiduals bool
	writeResiduals string
	output         string
	power          int
	energyName     string
	forceName      string
	description    string
	workDir        string
	verbose        bool
}

var fitCmd = &cobra.Command{
	Use:   "fit <params.json>",
	Short: "Fit one or more potentials from a parameter document",
	Long: `Fit sparse kernel regression potentials as described by a JSON
parameter document. Flags override individual document values.

Several --n-train values produce a learning curve: one model is fitted
per training set size, each written to the templated output path. The
test set is always the last --n-test structures of the dataset, so all
models along the curve are scored against the same held-out data.`,
	Args: cobra.ExactArgs(1),
	RunE: runFit,
}

// residualReport summarizes one model's accuracy on the held-out set.
type residualReport struct {
	NTrain      int     `json:"n_train"`
	NTest       int     `json:"n_test"`
	EnergyRMSE  float64 `json:"energy_rmse"`
	PerAtomRMSE float64 `json:"per_atom_rmse"`
	ForceRMSE   float64 `json:"force_rmse,omitempty"`

	Structures []structureResidual `json:"structures"`
}

type structureResidual struct {
	Index     int     `json:"index"`
	NumAtoms  int     `json:"num_atoms"`
	Reference float64 `json:"reference"`
	Predicted float64 `json:"predicted"`
}

func runFit(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	params, err := loadParams(args[0])
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	applyOverrides(cmd, params)

	dir := fitFlags.workDir
	if dir == "" {
		dir = filepath.Dir(args[0])
	}

	structures, err := structure.LoadJSON(filepath.Join(dir, params.Dataset))
	if err != nil {
		exitWithError(ExitDataError, "loading dataset: %v", err)
	}

	desc, err := params.buildDescriptor()
	if err != nil {
		exitWithError(ExitConfigError, "descriptor: %v", err)
	}
	kern, err := params.buildKernel(desc)
	if err != nil {
		exitWithError(ExitConfigError, "kernel: %v", err)
	}
	baseline, err := params.baseline()
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}

	feats, err := params.loadFeatures(dir, structures, desc)
	if err != nil {
		exitWithError(ExitDataError, "loading features: %v", err)
	}

	nTest := params.NTest
	sizes := params.NTrain
	if len(sizes) == 0 {
		sizes = []int{len(structures) - nTest}
	}
	for _, n := range sizes {
		if n <= 0 || n+nTest > len(structures) {
			exitWithError(ExitConfigError,
				"n_train %d with n_test %d exceeds the %d dataset structures", n, nTest, len(structures))
		}
	}

	level := slog.LevelInfo
	if fitFlags.verbose {
		level = slog.LevelDebug
	}
	logger := gapgo.NewTextLogger(level)

	for _, n := range sizes {
		trainStructs, trainFeats := sliceBlock(structures, feats, 0, n)

		fitter, err := gapgo.NewFitter(kern, params.NSparse, baseline,
			gapgo.WithSparsifyMethod(sparsify.Method(params.SparsifyMethod)),
			gapgo.WithStartIndex(params.StartIndex),
			gapgo.WithEnergyParameterName(params.EnergyParameterName),
			gapgo.WithForceParameterName(params.ForceParameterName),
			gapgo.WithEnergyRegularizer(params.EnergyRegularizer),
			gapgo.WithForceRegularizer(params.ForceRegularizer),
			gapgo.WithDescription(params.Description),
			gapgo.WithLogger(logger),
		)
		if err != nil {
			exitWithError(ExitConfigError, "%v", err)
		}

		model, err := fitter.Fit(ctx, trainStructs, trainFeats)
		if err != nil {
			exitWithError(ExitError, "fitting with %d structures: %v", n, err)
		}

		out := filepath.Join(dir, outputPath(params.Output, n))
		if err := gapgo.SaveModel(out, model); err != nil {
			exitWithError(ExitError, "saving %s: %v", out, err)
		}
		fmt.Printf("n_train=%d model written to %s\n", n, out)

		if nTest > 0 {
			report, err := scoreModel(ctx, model, params, structures, feats, n, nTest)
			if err != nil {
				exitWithError(ExitError, "scoring with %d structures: %v", n, err)
			}
			if fitFlags.printResiduals {
				fmt.Printf("n_train=%d energy RMSE %.6g (%.6g per atom)\n",
					n, report.EnergyRMSE, report.PerAtomRMSE)
				if report.ForceRMSE > 0 {
					fmt.Printf("n_train=%d force RMSE %.6g\n", n, report.ForceRMSE)
				}
			}
			if fitFlags.writeResiduals != "" {
				path := filepath.Join(dir, outputPath(fitFlags.writeResiduals, n))
				if err := writeReport(path, report); err != nil {
					exitWithError(ExitError, "writing residuals: %v", err)
				}
			}
		}

		model.Close()
	}
	return nil
}

// applyOverrides copies changed flag values over the parameter document.
func applyOverrides(cmd *cobra.Command, p *fitParams) {
	flags := cmd.Flags()
	if flags.Changed("n-train") {
		p.NTrain = fitFlags.nTrain
	}
	if flags.Changed("n-test") {
		p.NTest = fitFlags.nTest
	}
	if flags.Changed("output") {
		p.Output = fitFlags.output
	}
	if flags.Changed("power") {
		p.Kernel.Zeta = fitFlags.power
	}
	if flags.Changed("energy-parameter-name") {
		p.EnergyParameterName = fitFlags.energyName
	}
	if flags.Changed("force-parameter-name") {
		p.ForceParameterName = fitFlags.forceName
	}
	if flags.Changed("description") {
		p.Description = fitFlags.description
	}
}

// sliceBlock views the contiguous structure range [from, to) of a dataset.
// Gradient rows follow atoms at three rows apiece, so the gradient block
// of a structure range is itself contiguous.
func sliceBlock(structures []*structure.Structure, feats *descriptor.FeatureMatrix, from, to int) ([]*structure.Structure, *descriptor.FeatureMatrix) {
	r0, r1 := 0, 0
	for i := 0; i < to; i++ {
		if i < from {
			r0 += feats.StructureSizes[i]
		}
		r1 += feats.StructureSizes[i]
	}

	cols := feats.NumFeatures()
	out := &descriptor.FeatureMatrix{
		X:              feats.X.Slice(r0, r1, 0, cols).(*mat.Dense),
		StructureSizes: feats.StructureSizes[from:to],
	}
	if feats.Grad != nil {
		out.Grad = feats.Grad.Slice(3*r0, 3*r1, 0, cols).(*mat.Dense)
	}
	return structures[from:to], out
}

// scoreModel predicts the held-out tail of the dataset and collects residuals.
func scoreModel(ctx context.Context, model *gap.KRR, p *fitParams, structures []*structure.Structure, feats *descriptor.FeatureMatrix, nTrain, nTest int) (*residualReport, error) {
	testStructs, testFeats := sliceBlock(structures, feats, len(structures)-nTest, len(structures))

	pred, err := gapgo.Predict(ctx, model, testStructs, testFeats)
	if err != nil {
		return nil, err
	}

	ref, err := structure.Energies(testStructs, p.EnergyParameterName)
	if err != nil {
		return nil, err
	}

	report := &residualReport{
		NTrain:      nTrain,
		NTest:       nTest,
		EnergyRMSE:  gap.RMSE(pred.Energies, ref),
		PerAtomRMSE: gap.PerAtomRMSE(pred.Energies, ref, testStructs),
	}
	for i, s := range testStructs {
		report.Structures = append(report.Structures, structureResidual{
			Index:     len(structures) - nTest + i,
			NumAtoms:  s.NumAtoms(),
			Reference: ref[i],
			Predicted: pred.Energies[i],
		})
	}

	if pred.Forces != nil && p.ForceParameterName != "" {
		refForces, err := structure.Forces(testStructs, p.ForceParameterName)
		if err != nil {
			return nil, err
		}
		report.ForceRMSE = gap.RMSE(pred.Forces, refForces)
	}
	return report, nil
}

func writeReport(path string, report *residualReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// exitWithError prints a message to stderr and terminates with the code.
func exitWithError(code int, format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(code)
}
