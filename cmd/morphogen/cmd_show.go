package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"morphogen/internal/artifact"
	"morphogen/internal/store"
)

var showCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one artifact, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var propsCmd = &cobra.Command{
	Use:   "props [id]",
	Short: "Show the traits derived from an artifact's DNA",
	Args:  cobra.ExactArgs(1),
	RunE:  runProps,
}

var lineageCmd = &cobra.Command{
	Use:   "lineage [id]",
	Short: "List every ancestor of an artifact",
	Args:  cobra.ExactArgs(1),
	RunE:  runLineage,
}

var eventsCmd = &cobra.Command{
	Use:   "events [id]",
	Short: "Show journaled events, optionally for one artifact",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runEvents,
}

// statusCmd shows the scheduler state
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry and evolution cadence",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func runShow(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	var list []artifact.Artifact
	if len(args) == 1 {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		a, err := s.engine.Artifact(ids[0])
		if err != nil {
			return err
		}
		list = []artifact.Artifact{a}
	} else {
		list = s.engine.Artifacts()
	}

	if asJSON {
		return writeJSON(cmd.OutOrStdout(), list)
	}
	fmt.Fprintln(cmd.OutOrStdout(), artifactTable(list))
	return nil
}

func runProps(cmd *cobra.Command, args []string) error {
	withMetadata, _ := cmd.Flags().GetBool("metadata")
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	if withMetadata {
		md, err := s.engine.Metadata(ids[0])
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), md)
	}

	p, err := s.engine.Properties(ids[0])
	if err != nil {
		return err
	}
	body := strings.Join([]string{
		titleStyle.Render(fmt.Sprintf("Morphogen #%d", ids[0])),
		kv("color hue", p.ColorHue),
		kv("pattern", p.Pattern),
		kv("complexity", p.Complexity),
		kv("size multiplier", p.SizeMultiplier),
	}, "\n")
	fmt.Fprintln(cmd.OutOrStdout(), boxStyle.Render(body))
	return nil
}

func runLineage(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	anc, err := s.engine.Lineage(ids[0])
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(cmd.OutOrStdout(), anc)
	}
	if len(anc) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(fmt.Sprintf("#%d is a genesis artifact", ids[0])))
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render(fmt.Sprintf("Ancestors of #%d", ids[0])))
	fmt.Fprintln(cmd.OutOrStdout(), artifactTable(anc))
	return nil
}

func runEvents(cmd *cobra.Command, args []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	q := store.EventQuery{Limit: limit}
	if len(args) == 1 {
		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		q.ArtifactID = ids[0]
	}

	db, err := store.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	evs, err := db.Events(cmd.Context(), q)
	if err != nil {
		return err
	}
	rows := make([][]string, len(evs))
	for i, ev := range evs {
		detail := ""
		switch {
		case ev.InteractionCount > 0:
			detail = fmt.Sprintf("count=%d", ev.InteractionCount)
		case ev.ParentA != 0:
			detail = fmt.Sprintf("parents=%d,%d", ev.ParentA, ev.ParentB)
		}
		rows[i] = []string{strconv.FormatUint(ev.Tick, 10), string(ev.Kind), "#" + strconv.FormatUint(ev.ArtifactID, 10), detail}
	}
	fmt.Fprintln(cmd.OutOrStdout(), table([]int{8, 22, 8, 20}, []string{"TICK", "KIND", "ID", "DETAIL"}, rows))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer s.close()

	st := s.engine.Stats()
	cadence := warnStyle.Render(fmt.Sprintf("dormant (%d ticks left)", st.TicksUntilEvolution))
	if st.Due {
		cadence = successStyle.Render("due")
	}
	lines := []string{
		titleStyle.Render("morphogen"),
		kv("database", s.store.Path()),
		kv("artifacts", st.TotalSupply),
		kv("genesis", st.GenesisCount),
		kv("generation", st.CurrentGeneration),
		kv("tick", st.CurrentTick),
		kv("last evolution", st.LastEvolutionTick),
		kv("next evolution", st.NextEvolutionTick),
		kv("interval", st.Interval),
		kv("cadence", cadence),
	}
	if st.MostPopular != 0 {
		a, _ := s.engine.Artifact(st.MostPopular)
		lines = append(lines, kv("most popular", fmt.Sprintf("#%d (%d interactions)", a.ID, a.InteractionCount)))
	}
	fmt.Fprintln(cmd.OutOrStdout(), boxStyle.Render(strings.Join(lines, "\n")))
	return nil
}

func artifactTable(list []artifact.Artifact) string {
	rows := make([][]string, len(list))
	for i, a := range list {
		parents := "-"
		if a.HasParents() {
			parents = fmt.Sprintf("%d+%d", a.ParentA, a.ParentB)
		}
		rows[i] = []string{
			"#" + strconv.FormatUint(a.ID, 10),
			strconv.FormatUint(a.Generation, 10),
			strconv.FormatUint(a.InteractionCount, 10),
			parents,
			strconv.FormatUint(a.BirthTick, 10),
			a.Genome.String(),
		}
	}
	return table([]int{7, 5, 8, 10, 8, 24}, []string{"ID", "GEN", "VOTES", "PARENTS", "BORN", "GENOME"}, rows)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
