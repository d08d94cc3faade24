package core

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"chatbot-trainer/internal/core/utils"
	"chatbot-trainer/internal/train"

	"github.com/hashicorp/go-multierror"
	"github.com/schollz/progressbar/v3"
)

const comparisonFile = "comparison.json"

var (
	DefaultCompareRuns          = 3
	DefaultExclusionPercentages = []int{0, 5, 25, 50, 70, 95}
)

// CompareTrainer trains every config against the same stories with a growing
// share of the stories held out, so the configs can be compared afterwards.
type CompareTrainer struct {
	Trainer     train.Trainer
	Concurrency int

	// ProgressOutput receives the progress bar. Nothing is drawn when nil.
	ProgressOutput io.Writer
}

var _ train.CompareTrainer = (*CompareTrainer)(nil)

type compareJob struct {
	Run        int    `json:"run"`
	Percentage int    `json:"exclusion_percentage"`
	Config     string `json:"config"`
	Model      string `json:"model"`
	Output     string `json:"output"`
}

type comparisonSummary struct {
	Stories     string       `json:"stories"`
	Configs     []string     `json:"configs"`
	Runs        int          `json:"runs"`
	Percentages []int        `json:"exclusion_percentages"`
	Models      []compareJob `json:"models"`
}

func (c *CompareTrainer) CompareTrain(ctx context.Context, args train.Args, stories string, options *train.AdditionalOptions) error {
	runs := args.Runs
	if runs <= 0 {
		runs = DefaultCompareRuns
	}
	percentages := args.Percentages
	if len(percentages) == 0 {
		percentages = DefaultExclusionPercentages
	}

	opts := train.AdditionalOptions{DumpStories: args.DumpStories}
	if options != nil {
		opts = *options
	}

	configs := args.ConfigPaths()
	jobs := make([]compareJob, 0, runs*len(percentages)*len(configs))
	for r := 1; r <= runs; r++ {
		output := filepath.Join(args.Out, fmt.Sprintf("run_%d", r))
		for _, p := range percentages {
			for _, config := range configs {
				jobs = append(jobs, compareJob{
					Run:        r,
					Percentage: p,
					Config:     config,
					Model:      fmt.Sprintf("%s_%d", configName(config), p),
					Output:     output,
				})
			}
		}
	}

	slog.Info("starting comparison training", "configs", configs, "runs", runs, "percentages", percentages, "models", len(jobs))

	bar := c.progressBar(len(jobs))

	worker := func(ctx context.Context, job compareJob) (string, error) {
		trainPath, err := os.MkdirTemp("", "compare-train-*")
		if err != nil {
			return "", fmt.Errorf("error creating scratch directory: %w", err)
		}
		return c.Trainer.TrainCore(ctx, train.CoreRequest{
			Domain:              args.Domain,
			Config:              job.Config,
			Stories:             stories,
			Output:              job.Output,
			TrainPath:           trainPath,
			FixedModelName:      job.Model,
			Uncompress:          args.StoreUncompressed,
			Options:             opts,
			ExclusionPercentage: job.Percentage,
		})
	}

	var merr *multierror.Error
	trained := make([]compareJob, 0, len(jobs))
	for task := range utils.RunInPool(ctx, worker, jobs, max(c.Concurrency, 1)) {
		if bar != nil {
			_ = bar.Add(1)
		}
		if task.Error != nil {
			slog.Error("comparison training failed", "run", task.Input.Run, "config", task.Input.Config, "exclusion_percentage", task.Input.Percentage, "error", task.Error)
			merr = multierror.Append(merr, fmt.Errorf("run %d, config '%s', exclusion %d%%: %w", task.Input.Run, task.Input.Config, task.Input.Percentage, task.Error))
			continue
		}
		job := task.Input
		job.Model = task.Result
		trained = append(trained, job)
	}

	if err := ctx.Err(); err != nil {
		merr = multierror.Append(merr, err)
	}

	slices.SortFunc(trained, func(a, b compareJob) int {
		return cmp.Or(
			cmp.Compare(a.Run, b.Run),
			cmp.Compare(a.Percentage, b.Percentage),
			slices.Index(configs, a.Config)-slices.Index(configs, b.Config),
		)
	})

	if err := writeSummary(args.Out, comparisonSummary{
		Stories:     stories,
		Configs:     configs,
		Runs:        runs,
		Percentages: percentages,
		Models:      trained,
	}); err != nil {
		merr = multierror.Append(merr, err)
	}

	if err := merr.ErrorOrNil(); err != nil {
		return err
	}

	slog.Info("finished comparison training", "output", args.Out, "models", len(trained))
	return nil
}

func (c *CompareTrainer) progressBar(total int) *progressbar.ProgressBar {
	if c.ProgressOutput == nil {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(c.ProgressOutput),
		progressbar.OptionSetDescription("⏳ training"),
		progressbar.OptionSetWidth(30),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func writeSummary(dir string, summary comparisonSummary) error {
	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return fmt.Errorf("error creating output directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, comparisonFile), data, 0644); err != nil {
		return fmt.Errorf("error writing comparison summary: %w", err)
	}
	return nil
}

// configName is the config file name without its extension.
func configName(config string) string {
	base := filepath.Base(config)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
