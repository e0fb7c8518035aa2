package wire

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-relay/internal/callbacks"
	"github.com/bryanwahyu/automaton-relay/internal/domain/reporting"
	"github.com/bryanwahyu/automaton-relay/internal/domain/services"
)

// Record is the flattened JSON-serializable form sent to the remote store.
// Ephemeral: built per call, discarded after transmission.
type Record map[string]any

// ServiceKeyResolver guesses the owning service for a finding subject
type ServiceKeyResolver interface {
	GuessServiceKey(name, namespace string) string
}

// Encoder converts domain objects into wire records. Pure: no I/O, no
// shared mutable state; every record it produces carries the tenant's
// account id and, where applicable, the cluster name.
type Encoder struct {
	AccountID string
	Cluster   string
	Resolver  ServiceKeyResolver
	Signer    *callbacks.Signer
}

// Issue maps a Finding one-to-one onto an Issues row. start_date is the
// encode-time UTC timestamp; end_date is always null at creation.
func (e *Encoder) Issue(f *reporting.Finding, now time.Time) Record {
	serviceKey := ""
	if e.Resolver != nil {
		serviceKey = e.Resolver.GuessServiceKey(f.Subject.Name, f.Subject.Namespace)
	}
	return Record{
		"name":              f.AggregationKey,
		"account_id":        e.AccountID,
		"priority":          string(f.Severity),
		"service_key":       serviceKey,
		"source":            string(f.Source),
		"category":          string(f.Category),
		"fingerprint":       f.Fingerprint,
		"title":             f.Title,
		"start_date":        now.UTC().Format(time.RFC3339Nano),
		"end_date":          nil,
		"description":       f.Description,
		"is_failure":        f.Failure,
		"subject_type":      string(f.Subject.SubjectType),
		"subject_name":      f.Subject.Name,
		"subject_namespace": f.Subject.Namespace,
		"subject_cluster":   e.Cluster,
	}
}

// Evidence maps one Enrichment onto an Evidence row. The block sequence is
// serialized into the data column as a JSON string.
func (e *Encoder) Evidence(findingID string, enrichment *reporting.Enrichment) (Record, error) {
	structured := e.Blocks(enrichment.Blocks)
	data, err := json.Marshal(structured)
	if err != nil {
		return nil, fmt.Errorf("marshal structured data: %w", err)
	}

	var category any
	if enrichment.Category != "" {
		category = enrichment.Category
	}
	return Record{
		"finding_id": findingID,
		"data":       string(data),
		"account_id": e.AccountID,
		"category":   category,
	}, nil
}

// Blocks translates each block variant to its {type, data} entry. A block
// that cannot be converted is dropped with an error log; one bad block never
// aborts the rest of the report.
func (e *Encoder) Blocks(blocks []reporting.Block) []map[string]any {
	structured := make([]map[string]any, 0, len(blocks))
	for _, block := range blocks {
		switch b := block.(type) {
		case reporting.MarkdownBlock:
			if b.Text == "" {
				continue
			}
			structured = append(structured, map[string]any{
				"type": "markdown",
				"data": ToGitHubMarkdown(b.Text),
			})
		case reporting.DividerBlock:
			structured = append(structured, map[string]any{"type": "divider"})
		case reporting.FileBlock:
			structured = append(structured, map[string]any{
				"type": fileType(b.Filename),
				"data": base64.StdEncoding.EncodeToString(b.Contents),
			})
		case reporting.HeaderBlock:
			structured = append(structured, map[string]any{
				"type": "header",
				"data": b.Text,
			})
		case reporting.ListBlock:
			structured = append(structured, map[string]any{
				"type": "list",
				"data": b.Items,
			})
		case reporting.TableBlock:
			structured = append(structured, map[string]any{
				"type": "table",
				"data": map[string]any{
					"headers":          b.Headers,
					"rows":             b.Rows,
					"column_renderers": b.ColumnRenderers,
				},
			})
		case reporting.KubernetesDiffBlock:
			paths := make([]string, 0, len(b.Diffs))
			for _, d := range b.Diffs {
				paths = append(paths, d.FormattedPath)
			}
			structured = append(structured, map[string]any{
				"type": "diff",
				"data": map[string]any{
					"old":               b.Old,
					"new":               b.New,
					"resource_name":     b.ResourceName,
					"num_additions":     b.NumAdditions,
					"num_deletions":     b.NumDeletions,
					"num_modifications": b.NumModifications,
					"updated_paths":     paths,
				},
			})
		case reporting.CallbackBlock:
			entries, err := e.callbackEntries(b)
			if err != nil {
				log.Printf("cannot issue callback tokens, dropping block: %v", err)
				continue
			}
			structured = append(structured, map[string]any{
				"type": "callbacks",
				"data": entries,
			})
		default:
			log.Printf("cannot convert block of type %T to platform format, dropping block", block)
			continue
		}
	}
	return structured
}

// Service maps a ServiceInfo onto a Services row. update_time is the
// sentinel the backend replaces with its own clock.
func (e *Encoder) Service(s *services.ServiceInfo) Record {
	return Record{
		"name":           s.Name,
		"type":           s.ServiceType,
		"namespace":      s.Namespace,
		"classification": s.Classification,
		"cluster":        e.Cluster,
		"account_id":     e.AccountID,
		"deleted":        s.Deleted,
		"service_key":    s.ServiceKey(),
		"update_time":    "now()",
	}
}

func (e *Encoder) callbackEntries(b reporting.CallbackBlock) ([]map[string]any, error) {
	if e.Signer == nil {
		return nil, fmt.Errorf("no callback signer configured")
	}
	entries := make([]map[string]any, 0, len(b.Choices))
	for _, choice := range b.Choices {
		token, err := e.Signer.Issue(choice.Action, choice.Text, b.Context)
		if err != nil {
			return nil, err
		}
		entries = append(entries, map[string]any{
			"text":     choice.Text,
			"callback": token,
		})
	}
	return entries, nil
}

// fileType derives the type tag from the filename extension; a name with no
// extension falls back to "bin" instead of failing the block.
func fileType(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return "bin"
	}
	return filename[idx+1:]
}
