package main

import (
	"fmt"

	"chatbot-trainer/internal/messaging"
	"chatbot-trainer/internal/paths"
	"chatbot-trainer/internal/train"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultAugmentation = 50

func (a *app) newTrainCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "train",
		Short: "Trains a model using your NLU data and stories",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return a.runTrain(c, train.ModeCombined)
		},
	}

	f := c.Flags()
	f.StringP("domain", "d", "", "domain specification (yml file)")
	f.StringP("config", "c", "", "the policy and NLU pipeline configuration of your bot")
	f.StringSlice("data", []string{paths.DefaultDataPath}, "paths to the Core and NLU data files")
	addOutputFlags(f)
	f.Bool("force", false, "force a model training even if the data has not changed")
	addCoreOptionFlags(f)
	f.Bool("remote", false, "queue the training for a worker instead of training locally")

	return c
}

func (a *app) newTrainCoreCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "core",
		Short: "Trains a Core model using your stories",
		Long: "Trains a Core model using your stories. Passing more than one --config " +
			"trains every config on increasingly reduced story sets so they can be compared.",
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return a.runTrain(c, train.ModeCore)
		},
	}

	f := c.Flags()
	f.StringP("stories", "s", "", "file or folder containing your training stories")
	f.StringP("domain", "d", "", "domain specification (yml file)")
	f.StringSliceP("config", "c", nil, "the policy configuration, pass it more than once to compare policies")
	addOutputFlags(f)
	addCoreOptionFlags(f)
	f.Int("runs", 0, "number of comparison runs (default 3)")
	f.IntSlice("percentages", nil, "story exclusion percentages of a comparison (default [0,5,25,50,70,95])")
	f.Bool("remote", false, "queue the training for a worker instead of training locally")

	return c
}

func (a *app) newTrainNluCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "nlu",
		Short: "Trains an NLU model using your NLU data",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return a.runTrain(c, train.ModeNlu)
		},
	}

	f := c.Flags()
	f.StringP("config", "c", "", "the NLU pipeline configuration")
	f.StringP("nlu", "u", "", "file or folder containing your NLU training data")
	addOutputFlags(f)
	f.Bool("remote", false, "queue the training for a worker instead of training locally")

	return c
}

func addOutputFlags(f *pflag.FlagSet) {
	f.StringP("out", "o", paths.DefaultModelsPath, "directory where your models are stored")
	f.String("fixed-model-name", "", "name of the model file, a timestamp is used if not given")
	f.Bool("store-uncompressed", false, "store the model as a directory instead of an archive")
}

func addCoreOptionFlags(f *pflag.FlagSet) {
	f.Int("augmentation", defaultAugmentation, "how much data augmentation to use during training")
	f.Bool("dump-stories", false, "dump flattened stories to a file")
	f.Bool("debug-plots", false, "plot the story graphs of the training data")
}

func (a *app) runTrain(c *cobra.Command, mode train.Mode) error {
	flags, err := flagsFromCommand(c.Flags())
	if err != nil {
		return err
	}

	remote, _ := c.Flags().GetBool("remote")
	if remote {
		publisher, err := a.newPublisher(a.cfg)
		if err != nil {
			return err
		}
		defer publisher.Close()

		if err := publisher.PublishTrainTask(c.Context(), messaging.TrainTaskPayload{Mode: mode, Flags: flags}); err != nil {
			return err
		}
		fmt.Fprintf(c.OutOrStdout(), "Queued %s training\n", mode)
		return nil
	}

	dispatcher, release, err := a.newDispatcher(c.Context(), a.cfg)
	if err != nil {
		return err
	}
	defer release()

	modelPath, err := dispatcher.Dispatch(c.Context(), mode, flags.Args())
	if err != nil {
		return err
	}

	if modelPath != "" {
		fmt.Fprintf(c.OutOrStdout(), "Your model is stored at '%s'\n", modelPath)
	}
	return nil
}

// flagsFromCommand collects the flags a command defines. Optional training
// options stay nil when the command has no such flag.
func flagsFromCommand(f *pflag.FlagSet) (train.Flags, error) {
	var flags train.Flags
	var err error

	str := func(name string, dest *string) {
		if err == nil && f.Lookup(name) != nil {
			*dest, err = f.GetString(name)
		}
	}
	boolean := func(name string, dest *bool) {
		if err == nil && f.Lookup(name) != nil {
			*dest, err = f.GetBool(name)
		}
	}

	str("domain", &flags.Domain)
	str("stories", &flags.Stories)
	str("nlu", &flags.Nlu)
	str("out", &flags.Out)
	str("fixed-model-name", &flags.FixedModelName)
	boolean("force", &flags.Force)
	boolean("store-uncompressed", &flags.StoreUncompressed)
	if err != nil {
		return train.Flags{}, err
	}

	if fl := f.Lookup("config"); fl != nil {
		if fl.Value.Type() == "stringSlice" {
			flags.Config, err = f.GetStringSlice("config")
		} else {
			var config string
			config, err = f.GetString("config")
			if config != "" {
				flags.Config = []string{config}
			}
		}
		if err != nil {
			return train.Flags{}, err
		}
	}

	if f.Lookup("data") != nil {
		if flags.Data, err = f.GetStringSlice("data"); err != nil {
			return train.Flags{}, err
		}
	}

	if f.Lookup("augmentation") != nil {
		v, err := f.GetInt("augmentation")
		if err != nil {
			return train.Flags{}, err
		}
		flags.Augmentation = &v
	}
	if f.Lookup("dump-stories") != nil {
		v, err := f.GetBool("dump-stories")
		if err != nil {
			return train.Flags{}, err
		}
		flags.DumpStories = &v
	}
	if f.Lookup("debug-plots") != nil {
		v, err := f.GetBool("debug-plots")
		if err != nil {
			return train.Flags{}, err
		}
		flags.DebugPlots = &v
	}

	if f.Lookup("runs") != nil {
		if flags.Runs, err = f.GetInt("runs"); err != nil {
			return train.Flags{}, err
		}
	}
	if f.Lookup("percentages") != nil {
		if flags.Percentages, err = f.GetIntSlice("percentages"); err != nil {
			return train.Flags{}, err
		}
	}

	return flags, nil
}
