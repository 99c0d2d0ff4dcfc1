package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/extract"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/jobs"
	"github.com/MdYeasinSamadArnob/vLLM-Display/internal/metrics"
)

// jobFlags select text or schema mode for process and submit.
type jobFlags struct {
	docType    string
	schemaFile string
}

func (f *jobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.docType, "type", "t", "", fmt.Sprintf("built-in schema: %v", extract.PresetNames()))
	cmd.Flags().StringVar(&f.schemaFile, "schema", "", "YAML or JSON file mapping field names to descriptions")
	cmd.MarkFlagsMutuallyExclusive("type", "schema")
}

// schema returns the requested field schema, or nil for text mode.
func (f *jobFlags) schema() (map[string]string, error) {
	switch {
	case f.docType != "":
		return extract.Preset(f.docType)
	case f.schemaFile != "":
		return loadSchema(f.schemaFile)
	default:
		return nil, nil
	}
}

// job reads the image at path and builds a job for it.
func (f *jobFlags) job(path string) (*jobs.Job, error) {
	image, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if len(image) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}
	schema, err := f.schema()
	if err != nil {
		return nil, err
	}
	mode := jobs.ModeText
	if schema != nil {
		mode = jobs.ModeSchema
	}
	return jobs.New(mode, schema, filepath.Base(path), image), nil
}

func loadSchema(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	var schema map[string]string
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	if len(schema) == 0 {
		return nil, fmt.Errorf("schema %s has no fields", path)
	}
	return schema, nil
}

var (
	processFlags   jobFlags
	processNoJudge bool
)

var processCmd = &cobra.Command{
	Use:   "process <image>",
	Short: "Run one image through the pipeline without the queue",
	Long: `Run the full pipeline on a local image and print the result.

Without --type or --schema the merged text is returned. With a schema the
fields are extracted and, unless --no-judge is set, verified by the judge
model. Nothing is written to the result store.

Examples:
  idscan process card.jpg
  idscan process front.jpg --type nid_front
  idscan process back.png --schema fields.yaml -o json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		l := logger(cmd)

		job, err := processFlags.job(args[0])
		if err != nil {
			return err
		}

		cm, err := loadConfig(l)
		if err != nil {
			return err
		}
		cfg := cm.Get()

		svc, err := buildOrchestrator(cfg, nil, cfg.Pipeline.JudgeEnabled && !processNoJudge, l)
		if err != nil {
			return err
		}

		out := svc.orch.Run(ctx, job)
		payload, err := out.Payload()
		if err != nil {
			return err
		}
		usage := svc.metrics.Summary(metrics.Filter{JobID: out.JobID})
		l.Info("processed",
			"job_id", out.JobID,
			"views", out.Views,
			"succeeded", out.Succeeded,
			"model_calls", usage.Count,
			"tokens", usage.TotalTokens,
			"duration", out.Duration.Round(time.Millisecond),
		)
		if err := printer(cmd).PrintJSON(payload); err != nil {
			return err
		}
		if out.Err != nil {
			return errors.Join(fmt.Errorf("job %s failed", out.JobID), out.Err)
		}
		return nil
	},
}

func init() {
	processFlags.register(processCmd)
	processCmd.Flags().BoolVar(&processNoJudge, "no-judge", false, "skip verification of extracted fields")

	rootCmd.AddCommand(processCmd)
}
