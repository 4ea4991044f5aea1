package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleType identifies what a deliverable rule checks.
type RuleType string

const (
	RuleMaxSizeFile      RuleType = "MAX_SIZE_FILE"
	RuleFilePresence     RuleType = "FILE_PRESENCE"
	RuleFileContentMatch RuleType = "FILE_CONTENT_MATCH"
	RuleFolderStructure  RuleType = "FOLDER_STRUCTURE"
)

// Valid reports whether t is a known rule type.
func (t RuleType) Valid() bool {
	switch t {
	case RuleMaxSizeFile, RuleFilePresence, RuleFileContentMatch, RuleFolderStructure:
		return true
	}
	return false
}

// MatchType selects how FILE_CONTENT_MATCH compares content.
type MatchType string

const (
	MatchText  MatchType = "TEXT"
	MatchRegex MatchType = "REGEX"
)

// MaxSizeFileRule limits the archive size in bytes.
type MaxSizeFileRule struct {
	MaxSize int64 `json:"max_size"`
}

// FilePresenceRule requires a file to exist in the archive.
type FilePresenceRule struct {
	FileName string `json:"file_name"`
}

// FileContentMatchRule requires a file's content to contain a string or
// match a pattern.
type FileContentMatchRule struct {
	FileName  string    `json:"file_name"`
	Match     string    `json:"match"`
	MatchType MatchType `json:"match_type"`
}

// StructureNode describes one expected entry of a folder tree.
type StructureNode struct {
	Type     string          `json:"type"` // "folder" or "file"
	Name     string          `json:"name"`
	Required bool            `json:"required"`
	Pattern  string          `json:"pattern,omitempty"`
	Children []StructureNode `json:"children,omitempty"`
}

// FolderStructureRule requires the archive to contain a tree.
type FolderStructureRule struct {
	ExpectedStructure StructureNode `json:"expected_structure"`
}

// DeliverableRule is a teacher-defined check run against uploaded archives.
// Payload holds one of the *Rule structs above, as JSON.
type DeliverableRule struct {
	ID                 uuid.UUID       `json:"id"`
	RuleType           RuleType        `json:"rule_type"`
	Payload            json.RawMessage `json:"payload"`
	CreatedByTeacherID uuid.UUID       `json:"created_by_teacher_id"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NewDeliverableRule validates payload against ruleType and builds a rule.
func NewDeliverableRule(ruleType RuleType, payload json.RawMessage, teacherID uuid.UUID) (*DeliverableRule, error) {
	now := time.Now().UTC()
	r := &DeliverableRule{
		ID:                 uuid.New(),
		RuleType:           ruleType,
		Payload:            payload,
		CreatedByTeacherID: teacherID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// Validate checks the type and decodes the payload strictly.
func (r *DeliverableRule) Validate() error {
	if !r.RuleType.Valid() {
		return NewValidationError("rule_type", "is not a supported rule type", nil)
	}
	_, err := r.Decode()
	return err
}

// Decode unmarshals the payload into the struct matching RuleType and
// validates it.
func (r *DeliverableRule) Decode() (any, error) {
	if len(bytes.TrimSpace(r.Payload)) == 0 {
		return nil, NewValidationError("payload", "is required", nil)
	}
	switch r.RuleType {
	case RuleMaxSizeFile:
		var p MaxSizeFileRule
		if err := decodeStrict(r.Payload, &p); err != nil {
			return nil, err
		}
		if p.MaxSize < 1 {
			return nil, NewValidationError("payload.max_size", "must be at least 1", nil)
		}
		return p, nil
	case RuleFilePresence:
		var p FilePresenceRule
		if err := decodeStrict(r.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.FileName) == "" {
			return nil, NewValidationError("payload.file_name", "cannot be empty", nil)
		}
		return p, nil
	case RuleFileContentMatch:
		var p FileContentMatchRule
		if err := decodeStrict(r.Payload, &p); err != nil {
			return nil, err
		}
		if strings.TrimSpace(p.FileName) == "" {
			return nil, NewValidationError("payload.file_name", "cannot be empty", nil)
		}
		if p.Match == "" {
			return nil, NewValidationError("payload.match", "cannot be empty", nil)
		}
		switch p.MatchType {
		case MatchText:
		case MatchRegex:
			if _, err := regexp.Compile(p.Match); err != nil {
				return nil, NewValidationError("payload.match", "is not a valid regular expression", nil)
			}
		default:
			return nil, NewValidationError("payload.match_type", "must be TEXT or REGEX", nil)
		}
		return p, nil
	case RuleFolderStructure:
		var p FolderStructureRule
		if err := decodeStrict(r.Payload, &p); err != nil {
			return nil, err
		}
		if err := validateNode(p.ExpectedStructure, "payload.expected_structure"); err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, NewValidationError("rule_type", "is not a supported rule type", nil)
}

func validateNode(n StructureNode, path string) error {
	if n.Type != "folder" && n.Type != "file" {
		return NewValidationError(path+".type", "must be folder or file", nil)
	}
	if n.Name == "" && n.Pattern == "" {
		return NewValidationError(path+".name", "cannot be empty", nil)
	}
	if n.Pattern != "" {
		if _, err := regexp.Compile(n.Pattern); err != nil {
			return NewValidationError(path+".pattern", "is not a valid regular expression", nil)
		}
	}
	if n.Type == "file" && len(n.Children) > 0 {
		return NewValidationError(path+".children", "are only allowed on folders", nil)
	}
	for i, c := range n.Children {
		if err := validateNode(c, fmt.Sprintf("%s.children[%d]", path, i)); err != nil {
			return err
		}
	}
	return nil
}

func decodeStrict(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return NewValidationError("payload", "does not match the rule type: "+err.Error(), nil)
	}
	return nil
}

// RuleResult is the outcome of one rule against one archive.
type RuleResult struct {
	RuleID   uuid.UUID      `json:"rule_id"`
	RuleType RuleType       `json:"rule_type"`
	IsValid  bool           `json:"is_valid"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// ValidationSummary counts rule outcomes.
type ValidationSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ValidationReport is the outcome of every rule against one archive.
type ValidationReport struct {
	IsValid     bool              `json:"is_valid"`
	Results     []RuleResult      `json:"results"`
	Summary     ValidationSummary `json:"summary"`
	ValidatedAt *time.Time        `json:"validated_at,omitempty"`
}

// NewValidationReport aggregates results. An empty rule set is valid.
func NewValidationReport(results []RuleResult) ValidationReport {
	if results == nil {
		results = []RuleResult{}
	}
	report := ValidationReport{IsValid: true, Results: results}
	for _, r := range results {
		report.Summary.Total++
		if r.IsValid {
			report.Summary.Passed++
		} else {
			report.Summary.Failed++
			report.IsValid = false
		}
	}
	return report
}

// Compliance is the rule compliance view of a deliverable.
type Compliance struct {
	Compliant   bool         `json:"compliant"`
	TotalRules  int          `json:"total_rules"`
	PassedRules int          `json:"passed_rules"`
	FailedRules int          `json:"failed_rules"`
	Rules       []RuleResult `json:"rules"`
}

// ComplianceFrom derives the compliance view from a report.
func ComplianceFrom(r ValidationReport) Compliance {
	return Compliance{
		Compliant:   r.IsValid,
		TotalRules:  r.Summary.Total,
		PassedRules: r.Summary.Passed,
		FailedRules: r.Summary.Failed,
		Rules:       r.Results,
	}
}
