package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/sugarme/gotch"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sugarme/fcn/config"
)

var (
	// Global flags
	cfgFile string
	cuda    bool
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
	device gotch.Device
)

var rootCmd = &cobra.Command{
	Use:   "fcn",
	Short: "Fully convolutional networks for semantic segmentation",
	Long: `fcn builds FCN-32s, FCN-16s and FCN-8s segmentation networks on a VGG16
(or ResNet34) backbone, optionally initialised from ImageNet-pretrained
weights, and runs them through libtorch.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("cuda") {
			cfg.Device.Cuda = cuda
		}

		logger, err = newLogger(cfg.Log, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		device = gotch.CPU
		if cfg.Device.Cuda {
			device = gotch.NewCuda().CudaIfAvailable()
		}
		logger.Debug("configured", zap.String("config", cfgFile), zap.Bool("cuda", device != gotch.CPU))

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "fcn.yaml", "configuration file")
	rootCmd.PersistentFlags().BoolVar(&cuda, "cuda", false, "use CUDA if available")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(varsCmd, benchCmd, flopsCmd, predictCmd)
}

func newLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, err
		}
		zc.Level = level
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	return zc.Build()
}

// helper to get absolute file path
func absPath(p string) (string, error) {
	if p == "" {
		return p, nil
	}
	return filepath.Abs(p)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
