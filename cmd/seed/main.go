package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"huntcurator/internal/app"
	"huntcurator/internal/config"
	"huntcurator/internal/curation"
	"huntcurator/internal/model"
	"huntcurator/internal/service"
)

const demoRubric = `Rubric for the capital-city hunt:
[
  {"id": "C1", "criteria1": "Names Canberra as the capital of Australia"},
  {"id": "C2", "criteria1": "Does not claim Sydney is the capital"},
  {"id": "C3", "criteria1": "Answers in a single sentence"}
]`

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	root := &cobra.Command{
		Use:           "seed",
		Short:         "Seed and validate curation data",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(sessionCmd(), rubricCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func sessionCmd() *cobra.Command {
	var (
		modelName string
		runs      int
	)
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Create a demo session with a passed reference gate and sample runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			// The in-process store dies with this command, so the id would be useless.
			if cfg.RedisAddr == "" {
				return errors.New("REDIS_URI is not set: a seeded session would vanish when seed exits")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			a, err := app.New(ctx, cfg, config.DefaultAIConfig())
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			curatorID := service.CuratorID(cfg.CuratorUsername)
			sess, err := a.Curation.CreateSession(ctx, curatorID, demoRubric)
			if err != nil {
				return fmt.Errorf("create session: %w", err)
			}

			grades := make(map[string]model.Grade)
			for _, c := range sess.CurrentRubric.Criteria {
				grades[c.ID] = model.GradePass
			}
			if _, err := a.Curation.RecordReferenceGrades(ctx, curatorID, sess.ID, grades); err != nil {
				return fmt.Errorf("reference gate: %w", err)
			}

			for run := 0; run < runs; run++ {
				if _, _, err := a.Curation.AppendRun(ctx, curatorID, sess.ID, modelName, demoBatch()); err != nil {
					return fmt.Errorf("append run %d: %w", run+1, err)
				}
			}

			fmt.Fprintln(cmd.OutOrStdout(), sess.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "demo-model", "model name recorded on the runs")
	cmd.Flags().IntVar(&runs, "runs", 2, "number of sample runs to append")
	return cmd
}

func rubricCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rubric <file>",
		Short: "Validate a rubric file with the strict extractor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			criteria, err := curation.ExtractRubric(string(data))
			if err != nil {
				return fmt.Errorf("%s: %w", curation.Kind(err), err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%d criteria\n", len(criteria))
			for _, c := range criteria {
				fmt.Fprintf(out, "  %s  %s\n", c.ID, c.Description)
			}
			return nil
		},
	}
}

// demoBatch mixes breaking and passing attempts with split criterion grades
func demoBatch() []model.AttemptInput {
	zero, two := 0, 2
	return []model.AttemptInput{
		{RunLocalID: 1, AutomatedScore: &zero, ResponseText: "Sydney is the capital.",
			AutomatedCriteriaGrades: map[string]model.Grade{"C1": model.GradeFail, "C2": model.GradeFail, "C3": model.GradePass}},
		{RunLocalID: 2, AutomatedScore: &two, ResponseText: "The capital of Australia is Canberra.",
			AutomatedCriteriaGrades: map[string]model.Grade{"C1": model.GradePass, "C2": model.GradePass, "C3": model.GradePass}},
		{RunLocalID: 3, AutomatedScore: &zero, ResponseText: "Melbourne. It was the capital once, and Sydney is bigger.",
			AutomatedCriteriaGrades: map[string]model.Grade{"C1": model.GradeFail, "C2": model.GradeFail, "C3": model.GradeFail}},
		{RunLocalID: 4, AutomatedScore: &zero, ResponseText: "Probably Sydney.",
			AutomatedCriteriaGrades: map[string]model.Grade{"C1": model.GradeFail, "C2": model.GradeFail, "C3": model.GradePass}},
	}
}
