package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/example/survival-check/internal/logging"
	"github.com/example/survival-check/internal/passenger"
	"github.com/example/survival-check/internal/projector"
	"github.com/example/survival-check/internal/scorer"
	"github.com/example/survival-check/internal/session"
)

type batchEntry struct {
	input passenger.Input
	err   error
}

func newBatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "batch <file|->",
		Short: "Predict survival for every passenger listed in a YAML file",
		Long: "Predict survival for every passenger listed in a YAML file. The file holds a " +
			"list of mappings from attribute name to value; omitted attributes keep their defaults.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.scorerClient()
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			entries, err := readBatch(r)
			if err != nil {
				return err
			}

			states, err := runBatch(cmd.Context(), client, entries, a.cfg.Batch.Concurrency, a.cfg.Validation.Strict)
			if err != nil {
				return err
			}
			return writeBatch(cmd.OutOrStdout(), entries, states)
		},
	}
}

func readBatch(r io.Reader) ([]batchEntry, error) {
	var rows []map[string]string
	if err := yaml.NewDecoder(r).Decode(&rows); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode batch file: %w", err)
	}

	entries := make([]batchEntry, len(rows))
	for i, row := range rows {
		names := make([]string, 0, len(row))
		for name := range row {
			names = append(names, name)
		}
		sort.Strings(names)

		m := passenger.NewModel()
		for _, name := range names {
			if err := m.SetField(name, row[name]); err != nil {
				entries[i].err = err
				break
			}
		}
		entries[i].input = m.Snapshot()
	}
	return entries, nil
}

// runBatch predicts every entry independently, at most limit at a time.
// Individual failures are recorded in the returned states.
func runBatch(ctx context.Context, predictor session.Predictor, entries []batchEntry, limit int, strict bool) ([]session.State, error) {
	states := make([]session.State, len(entries))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, entry := range entries {
		requestID := uuid.NewString()
		if entry.err != nil {
			states[i] = session.Outcome(requestID, scorer.Result{}, entry.err)
			continue
		}
		if strict {
			if err := entry.input.Validate(); err != nil {
				states[i] = session.Outcome(requestID, scorer.Result{}, err)
				continue
			}
		}
		i, entry := i, entry
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := predictor.Predict(logging.ContextWithRequestID(ctx, requestID), entry.input)
			states[i] = session.Outcome(requestID, res, err)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return states, nil
}

func writeBatch(w io.Writer, entries []batchEntry, states []session.State) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tCLASS\tSEX\tAGE\tVERDICT\tPROBABILITY\tCONFIDENCE")

	failures := 0
	for i, st := range states {
		in := entries[i].input
		prefix := fmt.Sprintf("%d\t%d\t%s\t%g", i+1, in.Pclass, in.Sex, in.Age)
		if st.Phase == session.PhaseSucceeded && st.Result != nil {
			v := projector.Project(*st.Result)
			fmt.Fprintf(tw, "%s\t%s\t%s%%\t%s%%\n", prefix, v.Label, v.Probability, v.Confidence)
			continue
		}
		failures++
		fmt.Fprintf(tw, "%s\tfailed: %s\t-\t-\n", prefix, failureText(st))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\n%d predicted, %d failed\n", len(states)-failures, failures)
	return nil
}

func failureText(st session.State) string {
	if st.Failure == nil {
		return string(st.Phase)
	}
	return fmt.Sprintf("%s: %s", st.Failure.Kind, st.Failure.Message)
}
