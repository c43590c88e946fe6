package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"specimentrack/internal/blob"
)

// ErrNoBlobStore is returned by ExportProjectReport when no blob store is configured.
var ErrNoBlobStore = errors.New("report export: no blob store configured")

// ProjectReport is the exported snapshot of a project and its specimens.
type ProjectReport struct {
	Project     ProjectView    `json:"project"`
	GeneratedAt time.Time      `json:"generated_at"`
	Specimens   []SpecimenView `json:"specimens"`
}

// reportKey places reports under reports/<project>/<timestamp>.json.
func reportKey(projectToken string, at time.Time) string {
	return fmt.Sprintf("reports/%s/%s.json", projectToken, at.UTC().Format("20060102T150405Z"))
}

// ExportProjectReport writes a JSON report of the project's verified
// specimens, each with its lineage path, to the blob store.
func (s *Service) ExportProjectReport(ctx context.Context, projectToken string) (blob.Info, error) {
	var info blob.Info
	err := s.run(ctx, opExportProjectReport, func(ctx context.Context) (string, error) {
		if s.blobs == nil {
			return projectToken, ErrNoBlobStore
		}
		project, err := s.authorizedProject(ctx, projectToken)
		if err != nil {
			return projectToken, err
		}
		specimens, err := s.projectSpecimens(ctx, projectToken)
		if err != nil {
			return projectToken, err
		}
		report := ProjectReport{
			Project:     s.projectView(project),
			GeneratedAt: s.clock.Now().UTC(),
			Specimens:   make([]SpecimenView, 0, len(specimens)),
		}
		for _, sp := range specimens {
			view := s.specimenView(sp)
			view.LineagePath = s.rootFirstPath(ctx, sp)
			report.Specimens = append(report.Specimens, view)
		}
		payload, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return projectToken, fmt.Errorf("encode report: %w", err)
		}
		key := reportKey(report.Project.ID, report.GeneratedAt)
		info, err = s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
			ContentType: "application/json",
			Metadata:    map[string]string{"project": report.Project.ID},
		})
		if err != nil {
			return projectToken, fmt.Errorf("store report %s: %w", key, err)
		}
		s.logger.Info("exported project report", "project_id", project.ID, "key", key, "specimens", len(report.Specimens))
		return projectToken, nil
	})
	return info, err
}
