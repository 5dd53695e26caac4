package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/sugarme/gotch/nn"
	"go.uber.org/zap"

	"github.com/sugarme/fcn/fcn"
)

var pretrained bool

var varsCmd = &cobra.Command{
	Use:   "vars",
	Short: "Print model variables with their shapes",
	RunE: func(cmd *cobra.Command, args []string) error {
		mc, err := cfg.FCNConfig()
		if err != nil {
			return err
		}

		vs := nn.NewVarStore(device)
		if _, err := buildModel(vs, mc, pretrained); err != nil {
			return err
		}
		printVars(vs)

		return nil
	},
}

func init() {
	varsCmd.Flags().BoolVar(&pretrained, "pretrained", false, "load pretrained backbone weights from 'model.weights'")
}

// buildModel creates FCN in vs and loads configured pretrained weights.
func buildModel(vs *nn.VarStore, mc fcn.Config, loadWeights bool) (*fcn.FCN, error) {
	net, err := fcn.New(vs.Root(), mc)
	if err != nil {
		return nil, err
	}
	logger.Info("model created",
		zap.Stringer("variant", mc.Variant),
		zap.Stringer("backbone", mc.Backbone),
		zap.Int64("classes", mc.NClasses),
	)

	if !loadWeights {
		return net, nil
	}
	if cfg.Model.Weights == "" {
		return nil, fmt.Errorf("no pretrained weights configured. Set 'model.weights'")
	}

	weights, err := absPath(cfg.Model.Weights)
	if err != nil {
		return nil, err
	}
	missings, err := net.LoadPretrained(vs, weights)
	if err != nil {
		return nil, err
	}
	logger.Info("pretrained weights loaded", zap.String("path", weights), zap.Int("missing", len(missings)))
	for _, m := range missings {
		logger.Debug("missing variable", zap.String("name", m))
	}

	return net, nil
}

// printVars print variables sorted by name
func printVars(vs *nn.VarStore) {
	vars := vs.Vars.NamedVariables
	names := make([]string, 0, len(vars))
	for n := range vars {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		fmt.Printf("%v \t\t %v\n", n, vars[n].MustSize())
	}
}
