package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"chatbot-trainer/internal/paths"
)

// ErrCompareNotSupported is returned when more than one config reaches a mode
// other than core training.
var ErrCompareNotSupported = errors.New("comparing configs is only supported by core training")

// Dispatcher resolves command line arguments into a training invocation and
// hands it to the matching trainer.
type Dispatcher struct {
	Trainer   Trainer
	Compare   CompareTrainer
	Validator PathValidator

	// MkdirTemp creates the scratch directory for core training. Defaults to
	// os.MkdirTemp in the system temp dir.
	MkdirTemp func() (string, error)
}

func NewDispatcher(trainer Trainer, compare CompareTrainer) *Dispatcher {
	return &Dispatcher{
		Trainer:   trainer,
		Compare:   compare,
		Validator: paths.ValidatePath,
		MkdirTemp: func() (string, error) {
			return os.MkdirTemp("", "core-train-*")
		},
	}
}

// Dispatch runs the operation for the given mode.
func (d *Dispatcher) Dispatch(ctx context.Context, mode Mode, args Args) (string, error) {
	switch mode {
	case ModeCombined:
		return d.DispatchCombined(ctx, args)
	case ModeCore:
		return d.DispatchCore(ctx, args, "")
	case ModeNlu:
		return d.DispatchNlu(ctx, args, "")
	default:
		return "", fmt.Errorf("unknown training mode '%s'", mode)
	}
}

// DispatchCombined trains a combined core and nlu model.
func (d *Dispatcher) DispatchCombined(ctx context.Context, args Args) (string, error) {
	if err := requireSingleConfig(args); err != nil {
		return "", err
	}

	domain, err := d.Validator(args.Domain, "domain", paths.DefaultDomainPath, true)
	if err != nil {
		return "", err
	}

	config := singleConfigPath(args)

	trainingFiles := make([]string, 0, len(args.Data))
	for _, f := range args.Data {
		path, err := d.Validator(f, "data", paths.DefaultDataPath, true)
		if err != nil {
			return "", err
		}
		if path != "" {
			trainingFiles = append(trainingFiles, path)
		}
	}

	slog.Info("dispatching combined training", "domain", domain, "config", config, "training_files", trainingFiles, "output", args.Out)

	return d.Trainer.TrainCombined(ctx, CombinedRequest{
		Domain:         domain,
		Config:         config,
		TrainingFiles:  trainingFiles,
		Output:         args.Out,
		ForceTraining:  args.Force,
		FixedModelName: args.FixedModelName,
		Uncompress:     args.StoreUncompressed,
		Options:        ExtractAdditionalOptions(args),
	})
}

// DispatchCore trains a core model. When more than one config is selected the
// configs are compared instead and no model path is returned. A non-empty
// outputOverride replaces args.Out and is used as the scratch directory.
func (d *Dispatcher) DispatchCore(ctx context.Context, args Args, outputOverride string) (string, error) {
	domain, err := d.Validator(args.Domain, "domain", paths.DefaultDomainPath, true)
	if err != nil {
		return "", err
	}
	args.Domain = domain

	stories, err := d.Validator(args.Stories, "stories", paths.DefaultDataPath, true)
	if err != nil {
		return "", err
	}

	if compare, ok := args.Config.(CompareConfigs); ok {
		slog.Info("dispatching comparison training", "configs", compare.Paths, "stories", stories, "output", args.Out)
		if err := d.Compare.CompareTrain(ctx, args, stories, nil); err != nil {
			return "", err
		}
		return "", nil
	}

	config := singleConfigPath(args)
	output := effectiveOutput(args, outputOverride)

	trainPath := outputOverride
	if trainPath == "" {
		trainPath, err = d.MkdirTemp()
		if err != nil {
			return "", fmt.Errorf("error creating scratch directory: %w", err)
		}
	}

	slog.Info("dispatching core training", "domain", domain, "config", config, "stories", stories, "output", output)

	return d.Trainer.TrainCore(ctx, CoreRequest{
		Domain:         domain,
		Config:         config,
		Stories:        stories,
		Output:         output,
		TrainPath:      trainPath,
		FixedModelName: args.FixedModelName,
		Uncompress:     args.StoreUncompressed,
		Options:        ExtractAdditionalOptions(args),
	})
}

// DispatchNlu trains an nlu model. A non-empty outputOverride replaces args.Out.
func (d *Dispatcher) DispatchNlu(ctx context.Context, args Args, outputOverride string) (string, error) {
	if err := requireSingleConfig(args); err != nil {
		return "", err
	}

	output := effectiveOutput(args, outputOverride)
	config := singleConfigPath(args)

	nluData, err := d.Validator(args.Nlu, "nlu", paths.DefaultDataPath, true)
	if err != nil {
		return "", err
	}

	slog.Info("dispatching nlu training", "config", config, "nlu_data", nluData, "output", output)

	return d.Trainer.TrainNlu(ctx, NluRequest{
		Config:         config,
		NluData:        nluData,
		Output:         output,
		TrainPath:      outputOverride,
		FixedModelName: args.FixedModelName,
		Uncompress:     args.StoreUncompressed,
	})
}

// ExtractAdditionalOptions copies the optional fields present on args.
func ExtractAdditionalOptions(args Args) AdditionalOptions {
	return AdditionalOptions{
		AugmentationFactor: args.Augmentation,
		DumpStories:        args.DumpStories,
		DebugPlots:         args.DebugPlots,
	}
}

func requireSingleConfig(args Args) error {
	if compare, ok := args.Config.(CompareConfigs); ok {
		return fmt.Errorf("%w: got %d configs", ErrCompareNotSupported, len(compare.Paths))
	}
	return nil
}

// singleConfigPath returns the selected config, or the default location when
// none was given.
func singleConfigPath(args Args) string {
	if configs := args.ConfigPaths(); len(configs) > 0 && configs[0] != "" {
		return configs[0]
	}
	return paths.DefaultConfigPath
}

func effectiveOutput(args Args, outputOverride string) string {
	if outputOverride != "" {
		return outputOverride
	}
	return args.Out
}
