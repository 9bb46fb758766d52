// Package tracking records pipeline runs and versioned artifacts.
//
// A Client pairs a blob Store (local directory or S3-compatible bucket) with a
// metadata Registry (JSON index file or PostgreSQL). Every pipeline step opens a
// Run, consumes artifacts by reference ("name:alias", "name:vN") and logs new
// artifact versions. Identical content is never stored twice: artifacts are
// addressed by the sha256 of their files.
package tracking

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// LatestAlias always points at the most recently logged version of an artifact.
const LatestAlias = "latest"

// RunState is the lifecycle state of a run.
type RunState string

const (
	RunRunning  RunState = "running"
	RunFinished RunState = "finished"
	RunFailed   RunState = "failed"
)

// RunOptions configure a new run.
type RunOptions struct {
	Project string
	// Group collects the runs of one pipeline execution, usually the experiment name.
	Group string
	// JobType is the pipeline step the run executes.
	JobType string
	Config  map[string]any
}

// RunRecord is the persisted state of a run.
type RunRecord struct {
	ID         string               `json:"id"`
	Project    string               `json:"project"`
	Group      string               `json:"group,omitempty"`
	JobType    string               `json:"job_type,omitempty"`
	Config     map[string]any       `json:"config,omitempty"`
	State      RunState             `json:"state"`
	Summary    map[string]float64   `json:"summary,omitempty"`
	History    []map[string]float64 `json:"history,omitempty"`
	Used       []string             `json:"used,omitempty"`
	Logged     []string             `json:"logged,omitempty"`
	Error      string               `json:"error,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt time.Time            `json:"finished_at,omitzero"`
}

// ArtifactFile is one file of an artifact version. Blobs are stored by Digest.
type ArtifactFile struct {
	Path   string `json:"path"`
	Size   int64  `json:"size"`
	Digest string `json:"digest"`
}

// ArtifactVersion is an immutable, numbered version of a named artifact.
type ArtifactVersion struct {
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Index       int            `json:"index"`
	Digest      string         `json:"digest"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Aliases     []string       `json:"aliases,omitempty"`
	Files       []ArtifactFile `json:"files"`
	RunID       string         `json:"run_id"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Version returns the "vN" label of the version.
func (v *ArtifactVersion) Version() string {
	return "v" + strconv.Itoa(v.Index)
}

// Ref returns the fully qualified "name:vN" reference.
func (v *ArtifactVersion) Ref() string {
	return v.Name + ":" + v.Version()
}

// HasAlias reports whether alias is attached to v.
func (v *ArtifactVersion) HasAlias(alias string) bool {
	for _, a := range v.Aliases {
		if a == alias {
			return true
		}
	}
	return false
}

// ParseRef splits "name:version" into its parts. A missing version means latest.
func ParseRef(ref string) (name, version string, err error) {
	name, version, _ = strings.Cut(ref, ":")
	if name == "" {
		return "", "", errors.NewValidationError("artifact", "reference has no name", ref)
	}
	if version == "" {
		version = LatestAlias
	}
	return name, version, nil
}

// parseVersion returns N for a "vN" label.
func parseVersion(version string) (int, bool) {
	if len(version) < 2 || version[0] != 'v' {
		return 0, false
	}
	n, err := strconv.Atoi(version[1:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// validateAlias rejects aliases that would shadow version labels.
func validateAlias(alias string) error {
	if alias == "" || strings.ContainsAny(alias, ":/ ") {
		return errors.NewValidationError("alias", "must be a non-empty word", alias)
	}
	if _, ok := parseVersion(alias); ok {
		return errors.NewValidationError("alias", fmt.Sprintf("%q looks like a version label", alias), alias)
	}
	return nil
}
