package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/survival-check/internal/passenger"
	"github.com/example/survival-check/internal/projector"
	"github.com/example/survival-check/internal/session"
)

var predictFlags = []struct {
	flag  string
	field passenger.Field
	usage string
}{
	{"class", passenger.FieldPclass, "passenger class (1, 2 or 3)"},
	{"sex", passenger.FieldSex, "male or female"},
	{"age", passenger.FieldAge, "age in years"},
	{"sibsp", passenger.FieldSibSp, "siblings and spouses aboard"},
	{"parch", passenger.FieldParch, "parents and children aboard"},
	{"fare", passenger.FieldFare, "ticket fare"},
	{"embarked", passenger.FieldEmbarked, "port of embarkation (C, Q or S)"},
}

func newPredictCommand(a *app) *cobra.Command {
	values := make(map[string]*string, len(predictFlags))
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict survival for one passenger",
		Long: "Predict survival for one passenger. Unset attributes keep their defaults " +
			"(first class, male, 30 years, no relatives, fare 50, embarked at Southampton).",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.scorerClient()
			if err != nil {
				return err
			}

			opts := a.cfg.SessionOptions()
			opts.Logger = a.logger
			s := session.New(client, opts)
			defer s.Close()

			for _, f := range predictFlags {
				if !cmd.Flags().Changed(f.flag) {
					continue
				}
				if err := s.SetField(string(f.field), *values[f.flag]); err != nil {
					return err
				}
			}

			seq, err := s.Submit()
			if err != nil {
				return err
			}
			st, err := s.Wait(cmd.Context(), seq)
			if err != nil {
				return err
			}
			return printState(cmd.OutOrStdout(), st, asJSON)
		},
	}

	for _, f := range predictFlags {
		values[f.flag] = cmd.Flags().String(f.flag, "", f.usage)
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the state and derived values as JSON")
	return cmd
}

func printState(w io.Writer, st session.State, asJSON bool) error {
	var view *projector.View
	if st.Phase == session.PhaseSucceeded && st.Result != nil {
		v := projector.Project(*st.Result)
		view = &v
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			State session.State   `json:"state"`
			View  *projector.View `json:"view,omitempty"`
		}{st, view}); err != nil {
			return err
		}
	} else if view != nil {
		fmt.Fprintf(w, "%s\n", view.Label)
		fmt.Fprintf(w, "Survival probability: %s%%\n", view.Probability)
		fmt.Fprintf(w, "Confidence: %s%%\n", view.Confidence)
	}

	if st.Phase == session.PhaseFailed && st.Failure != nil {
		return fmt.Errorf("prediction failed (%s): %s", st.Failure.Kind, st.Failure.Message)
	}
	return nil
}
