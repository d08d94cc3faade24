package train

import (
	"context"
)

type Mode string

const (
	ModeCombined Mode = "combined"
	ModeCore     Mode = "core"
	ModeNlu      Mode = "nlu"
)

// ConfigSelection is either a SingleConfig or a CompareConfigs.
type ConfigSelection interface {
	configPaths() []string
}

type SingleConfig struct {
	// Path is empty when no config was given.
	Path string
}

func (c SingleConfig) configPaths() []string {
	if c.Path == "" {
		return nil
	}
	return []string{c.Path}
}

// CompareConfigs holds two or more configs that are trained side by side.
type CompareConfigs struct {
	Paths []string
}

func (c CompareConfigs) configPaths() []string {
	return c.Paths
}

// SelectConfig picks the config variant for the given --config values. A
// single value, or none, selects SingleConfig.
func SelectConfig(values []string) ConfigSelection {
	switch len(values) {
	case 0:
		return SingleConfig{}
	case 1:
		return SingleConfig{Path: values[0]}
	default:
		return CompareConfigs{Paths: append([]string(nil), values...)}
	}
}

// Flags are the raw values collected by the command line. They are also the
// payload of remote train tasks, so they must stay JSON friendly.
type Flags struct {
	Domain            string   `json:"domain,omitempty"`
	Config            []string `json:"config,omitempty"`
	Data              []string `json:"data,omitempty"`
	Stories           string   `json:"stories,omitempty"`
	Nlu               string   `json:"nlu,omitempty"`
	Out               string   `json:"out,omitempty"`
	Force             bool     `json:"force,omitempty"`
	FixedModelName    string   `json:"fixed_model_name,omitempty"`
	StoreUncompressed bool     `json:"store_uncompressed,omitempty"`

	// Nil when the command does not define the flag.
	Augmentation *int  `json:"augmentation,omitempty"`
	DumpStories  *bool `json:"dump_stories,omitempty"`
	DebugPlots   *bool `json:"debug_plots,omitempty"`

	Runs        int   `json:"runs,omitempty"`
	Percentages []int `json:"percentages,omitempty"`
}

// Args converts the raw flags into dispatcher arguments.
func (f Flags) Args() Args {
	return Args{
		Domain:            f.Domain,
		Config:            SelectConfig(f.Config),
		Data:              append([]string(nil), f.Data...),
		Stories:           f.Stories,
		Nlu:               f.Nlu,
		Out:               f.Out,
		Force:             f.Force,
		FixedModelName:    f.FixedModelName,
		StoreUncompressed: f.StoreUncompressed,
		Augmentation:      f.Augmentation,
		DumpStories:       f.DumpStories,
		DebugPlots:        f.DebugPlots,
		Runs:              f.Runs,
		Percentages:       append([]int(nil), f.Percentages...),
	}
}

// Args are the inputs of a single dispatch.
type Args struct {
	Domain            string
	Config            ConfigSelection
	Data              []string
	Stories           string
	Nlu               string
	Out               string
	Force             bool
	FixedModelName    string
	StoreUncompressed bool

	Augmentation *int
	DumpStories  *bool
	DebugPlots   *bool

	// Only used by comparison runs.
	Runs        int
	Percentages []int
}

// ConfigPaths returns the configured config files in order.
func (a Args) ConfigPaths() []string {
	if a.Config == nil {
		return nil
	}
	return a.Config.configPaths()
}

// AdditionalOptions are the mode specific options forwarded to core training.
// A nil field was not present on the command.
type AdditionalOptions struct {
	AugmentationFactor *int  `json:"augmentation_factor,omitempty"`
	DumpStories        *bool `json:"dump_stories,omitempty"`
	DebugPlots         *bool `json:"debug_plots,omitempty"`
}

// Map renders the present options under their option names.
func (o AdditionalOptions) Map() map[string]any {
	options := make(map[string]any)
	if o.AugmentationFactor != nil {
		options["augmentation_factor"] = *o.AugmentationFactor
	}
	if o.DumpStories != nil {
		options["dump_stories"] = *o.DumpStories
	}
	if o.DebugPlots != nil {
		options["debug_plots"] = *o.DebugPlots
	}
	return options
}

type CombinedRequest struct {
	Domain         string
	Config         string
	TrainingFiles  []string
	Output         string
	ForceTraining  bool
	FixedModelName string
	Uncompress     bool
	Options        AdditionalOptions
}

type CoreRequest struct {
	Domain  string
	Config  string
	Stories string
	Output  string
	// TrainPath is the scratch directory the model is assembled in. The
	// trainer owns it once the request is made.
	TrainPath      string
	FixedModelName string
	Uncompress     bool
	Options        AdditionalOptions

	ExclusionPercentage int
}

type NluRequest struct {
	Config         string
	NluData        string
	Output         string
	TrainPath      string
	FixedModelName string
	Uncompress     bool
}

// Trainer trains single models. Each method returns the path of the produced
// model, or an empty path when nothing was produced.
type Trainer interface {
	TrainCombined(ctx context.Context, req CombinedRequest) (string, error)

	TrainCore(ctx context.Context, req CoreRequest) (string, error)

	TrainNlu(ctx context.Context, req NluRequest) (string, error)
}

// CompareTrainer trains several core configs against each other. It writes its
// models itself and reports nothing back.
type CompareTrainer interface {
	CompareTrain(ctx context.Context, args Args, stories string, options *AdditionalOptions) error
}

// PathValidator resolves a path flag, see paths.ValidatePath.
type PathValidator func(candidate, parameter, defaultPath string, noneIsValid bool) (string, error)
