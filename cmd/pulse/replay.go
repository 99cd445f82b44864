package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/JaimeStill/pulse/internal/api"
	"github.com/JaimeStill/pulse/internal/clusters"
	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/internal/documents"
	"github.com/JaimeStill/pulse/internal/reconcile"
	"github.com/JaimeStill/pulse/internal/results"
	"github.com/JaimeStill/pulse/internal/stats"
)

// Event types accepted by replay.
const (
	EventDocument        = "document"
	EventCluster         = "cluster"
	EventResult          = "result"
	EventReassign        = "reassign"
	EventMerge           = "cluster_merged"
	EventDocumentDeleted = "document_deleted"
	EventClusterDeleted  = "cluster_deleted"
	EventProjectDeleted  = "project_deleted"
)

const maxEventSize = 1 << 20

// Event is one line of a replay stream.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type reassignEvent struct {
	DocumentID uuid.UUID  `json:"document_id"`
	ClusterID  *uuid.UUID `json:"cluster_id"`
}

type mergeEvent struct {
	SourceID uuid.UUID `json:"source_id"`
	TargetID uuid.UUID `json:"target_id"`
}

type deleteEvent struct {
	ID uuid.UUID `json:"id"`
}

// ProjectOutcome is the final aggregate state of one replayed project.
type ProjectOutcome struct {
	Stats    *stats.ProjectStats    `json:"stats"`
	Clusters []stats.ClusterSummary `json:"clusters"`
	Terms    []stats.RankedTerm     `json:"terms"`
}

// ReplayReport summarizes a replay run.
type ReplayReport struct {
	Events    int                          `json:"events"`
	Applied   int                          `json:"applied"`
	Duplicate int                          `json:"duplicate"`
	Failed    int                          `json:"failed"`
	Reconcile *reconcile.Report            `json:"reconcile"`
	Projects  map[uuid.UUID]ProjectOutcome `json:"projects"`
}

func replayCmd() *cobra.Command {
	var terms int

	cmd := &cobra.Command{
		Use:   "replay <events.jsonl>",
		Short: "Replay an event stream through an in-memory engine",
		Long: `Feed a JSON lines stream of {"type","data"} events through an in-memory
engine, then flush term tables, run a reconciliation pass, and print the
resulting per-project stats. Use "-" to read from stdin.

Event types: document, cluster, result, reassign, cluster_merged,
document_deleted, cluster_deleted, project_deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var cfg config.EngineConfig
			if err := cfg.Finalize(); err != nil {
				return fmt.Errorf("engine config: %w", err)
			}

			_, domain := api.NewMemory(cfg, logger)

			rep, err := replay(cmd.Context(), in, domain, terms)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}

	cmd.Flags().IntVar(&terms, "terms", 10, "number of ranked terms per project")
	return cmd
}

func replay(ctx context.Context, in io.Reader, domain *api.Domain, terms int) (*ReplayReport, error) {
	rep := &ReplayReport{Projects: make(map[uuid.UUID]ProjectOutcome)}
	var projects []uuid.UUID

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		rep.Events++

		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			rep.Failed++
			logger.Warn("skipping malformed event", "line", line, "error", err)
			continue
		}

		applied, projectID, err := apply(ctx, domain, ev)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			rep.Failed++
			logger.Warn("event rejected", "line", line, "type", ev.Type, "error", err)
			continue
		case !applied:
			rep.Duplicate++
		default:
			rep.Applied++
		}

		if projectID != uuid.Nil && !slices.Contains(projects, projectID) {
			projects = append(projects, projectID)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}

	if err := domain.Frequency.Flush(ctx); err != nil {
		return nil, fmt.Errorf("flush terms: %w", err)
	}

	recon, err := domain.Reconciler.Run(ctx)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	rep.Reconcile = recon

	for _, id := range projects {
		ps, err := domain.Stats.ProjectStats(ctx, id)
		if errors.Is(err, stats.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}

		cs, err := domain.Stats.ListClusters(ctx, id)
		if err != nil {
			return nil, err
		}

		ranked, err := domain.Stats.TopTerms(ctx, id, terms)
		if err != nil {
			return nil, err
		}

		rep.Projects[id] = ProjectOutcome{Stats: ps, Clusters: cs, Terms: ranked}
	}

	return rep, nil
}

// apply dispatches one event. It reports whether the event changed state
// and the project a document event introduced.
func apply(ctx context.Context, domain *api.Domain, ev Event) (bool, uuid.UUID, error) {
	switch ev.Type {
	case EventDocument:
		var cmd documents.RegisterCommand
		if err := json.Unmarshal(ev.Data, &cmd); err != nil {
			return false, uuid.Nil, err
		}
		doc, created, err := domain.Documents.Register(ctx, cmd)
		if err != nil {
			return false, uuid.Nil, err
		}
		return created, doc.ProjectID, nil

	case EventCluster:
		var cmd clusters.CreateCommand
		if err := json.Unmarshal(ev.Data, &cmd); err != nil {
			return false, uuid.Nil, err
		}
		_, err := domain.Clusters.Create(ctx, cmd)
		return err == nil, uuid.Nil, err

	case EventResult:
		var cmd results.RecordCommand
		if err := json.Unmarshal(ev.Data, &cmd); err != nil {
			return false, uuid.Nil, err
		}
		_, created, err := domain.Engine.Record(ctx, cmd)
		return created, uuid.Nil, err

	case EventReassign:
		var re reassignEvent
		if err := json.Unmarshal(ev.Data, &re); err != nil {
			return false, uuid.Nil, err
		}
		_, err := domain.Engine.Reassign(ctx, re.DocumentID, re.ClusterID)
		return err == nil, uuid.Nil, err

	case EventMerge:
		var me mergeEvent
		if err := json.Unmarshal(ev.Data, &me); err != nil {
			return false, uuid.Nil, err
		}
		_, err := domain.Engine.MergeClusters(ctx, me.SourceID, me.TargetID)
		return err == nil, uuid.Nil, err

	case EventDocumentDeleted, EventClusterDeleted, EventProjectDeleted:
		var de deleteEvent
		if err := json.Unmarshal(ev.Data, &de); err != nil {
			return false, uuid.Nil, err
		}
		var err error
		switch ev.Type {
		case EventDocumentDeleted:
			err = domain.Engine.RemoveDocument(ctx, de.ID)
		case EventClusterDeleted:
			err = domain.Engine.DeleteCluster(ctx, de.ID)
		default:
			err = domain.Engine.RemoveProject(ctx, de.ID)
		}
		return err == nil, uuid.Nil, err
	}

	return false, uuid.Nil, fmt.Errorf("unknown event type %q", ev.Type)
}
