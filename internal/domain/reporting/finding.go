package reporting

import (
	"time"

	"github.com/google/uuid"
)

// Severity enum, encoded by symbolic name on the wire
type Severity string

const (
	SeverityDebug  Severity = "DEBUG"
	SeverityInfo   Severity = "INFO"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Source enum: which subsystem produced the finding
type Source string

const (
	SourceKubernetesAPI Source = "kubernetes_api_server"
	SourcePrometheus    Source = "prometheus"
	SourceManual        Source = "manual"
	SourceCallback      Source = "callback"
	SourceScanner       Source = "scanner"
)

// FindingType enum (category)
type FindingType string

const (
	TypeIssue        FindingType = "issue"
	TypeConfigChange FindingType = "configuration_change"
	TypeHealthCheck  FindingType = "health_check"
	TypeReport       FindingType = "report"
)

// SubjectType enum untuk resource yang kena finding
type SubjectType string

const (
	SubjectTypeDeployment  SubjectType = "deployment"
	SubjectTypeDaemonSet   SubjectType = "daemonset"
	SubjectTypeStatefulSet SubjectType = "statefulset"
	SubjectTypeJob         SubjectType = "job"
	SubjectTypePod         SubjectType = "pod"
	SubjectTypeNode        SubjectType = "node"
	SubjectTypeNone        SubjectType = "none"
)

// Subject is the resource a finding is about
type Subject struct {
	Name        string      `json:"name"`
	Namespace   string      `json:"namespace"`
	SubjectType SubjectType `json:"subject_type"`
}

// Enrichment is an ordered set of presentation blocks attached to a Finding.
// Category is optional; empty means uncategorized.
type Enrichment struct {
	Blocks   []Block `json:"blocks"`
	Category string  `json:"category,omitempty"`
}

// Aggregate Root: Finding
// Findings are produced upstream by the reporting subsystem and are read-only here.
type Finding struct {
	Fingerprint    string       `json:"fingerprint"`
	AggregationKey string       `json:"aggregation_key"`
	Severity       Severity     `json:"severity"`
	Source         Source       `json:"source"`
	Category       FindingType  `json:"category"`
	Title          string       `json:"title"`
	Description    string       `json:"description"`
	Failure        bool         `json:"failure"`
	Subject        Subject      `json:"subject"`
	CreatedAt      time.Time    `json:"created_at"`
	Enrichments    []Enrichment `json:"enrichments"`
}

// NewFinding fills the identity defaults: a finding without a fingerprint
// gets a random one, so every report stays individually addressable.
func NewFinding(f Finding) *Finding {
	if f.Fingerprint == "" {
		f.Fingerprint = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}
	if f.Subject.SubjectType == "" {
		f.Subject.SubjectType = SubjectTypeNone
	}
	return &f
}
