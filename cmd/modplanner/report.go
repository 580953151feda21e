package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/udisondev/modplanner/internal/model"
	"github.com/udisondev/modplanner/internal/planner"
	"github.com/udisondev/modplanner/internal/reconcile"
)

func writeReport(w io.Writer, res planner.Result, seq reconcile.Sequence, digest string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "CHARACTER\tSTATUS\tTARGET\tSCORE\tSET BONUS\tLOADOUT\tNOTES")
	for _, a := range res.Assignments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%s\t%s\n",
			a.Character, a.Status, a.Target, a.Score.Total(), a.Score.SetBonus,
			loadoutString(a.Loadout), notes(a))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\nleftover mods: %d\n", len(res.Leftover))
	if !res.Complete {
		fmt.Fprintln(w, "pass aborted: showing completed characters only")
	}

	fmt.Fprintf(w, "\noperations: %d (unequip %d, move %d, equip %d)\n",
		len(seq), seq.Count(reconcile.OpUnequip), seq.Count(reconcile.OpMove), seq.Count(reconcile.OpEquip))
	for i, op := range seq {
		fmt.Fprintf(w, "%4d. %s\n", i+1, op)
	}

	_, err := fmt.Fprintf(w, "\ndigest: %s\n", digest)
	return err
}

func loadoutString(l model.Loadout) string {
	parts := make([]string, 0, model.NumShapes)
	for i, id := range l {
		if id == "" {
			id = "-"
		}
		parts = append(parts, fmt.Sprintf("%s=%s", model.AllShapes[i], id))
	}
	return strings.Join(parts, " ")
}

func notes(a model.Assignment) string {
	var n []string
	if a.Kept {
		n = append(n, "kept current mods")
	}
	if len(a.Shortfalls) > 0 {
		shapes := make([]string, len(a.Shortfalls))
		for i, s := range a.Shortfalls {
			shapes[i] = string(s)
		}
		n = append(n, "no mods for "+strings.Join(shapes, ","))
	}
	return strings.Join(n, "; ")
}

type jsonReport struct {
	planner.Result
	Operations reconcile.Sequence `json:"operations"`
	Digest     string             `json:"digest"`
}

func writeJSON(w io.Writer, res planner.Result, seq reconcile.Sequence, digest string) error {
	if seq == nil {
		seq = reconcile.Sequence{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonReport{Result: res, Operations: seq, Digest: digest})
}
