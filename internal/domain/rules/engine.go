package rules

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/mygeslike/api/internal/domain"
)

// Validate runs every rule against the archive, in the given order.
func Validate(a *Archive, rules []domain.DeliverableRule) domain.ValidationReport {
	results := make([]domain.RuleResult, 0, len(rules))
	for _, r := range rules {
		results = append(results, Evaluate(a, r))
	}
	return domain.NewValidationReport(results)
}

// Evaluate runs a single rule.
func Evaluate(a *Archive, r domain.DeliverableRule) (result domain.RuleResult) {
	result = domain.RuleResult{RuleID: r.ID, RuleType: r.RuleType}
	defer func() {
		if p := recover(); p != nil {
			result.IsValid = false
			result.Message = fmt.Sprintf("Validation error: %v", p)
		}
	}()

	payload, err := r.Decode()
	if err != nil {
		result.Message = "Validation error: " + err.Error()
		return result
	}

	switch p := payload.(type) {
	case domain.MaxSizeFileRule:
		return maxSize(result, a, p)
	case domain.FilePresenceRule:
		return presence(result, a, p)
	case domain.FileContentMatchRule:
		return contentMatch(result, a, p)
	case domain.FolderStructureRule:
		return structure(result, a, p)
	}
	result.Message = fmt.Sprintf("Unsupported rule type: %s", r.RuleType)
	return result
}

func maxSize(res domain.RuleResult, a *Archive, p domain.MaxSizeFileRule) domain.RuleResult {
	res.IsValid = a.Size <= p.MaxSize
	if res.IsValid {
		res.Message = fmt.Sprintf("File size %s is within limit", FormatBytes(a.Size))
	} else {
		res.Message = fmt.Sprintf("File size %s exceeds maximum of %s", FormatBytes(a.Size), FormatBytes(p.MaxSize))
	}
	res.Details = map[string]any{
		"actual_size":           a.Size,
		"max_size":              p.MaxSize,
		"actual_size_formatted": FormatBytes(a.Size),
		"max_size_formatted":    FormatBytes(p.MaxSize),
	}
	return res
}

func presence(res domain.RuleResult, a *Archive, p domain.FilePresenceRule) domain.RuleResult {
	if err := a.Err(); err != nil {
		res.Message = "Validation error: " + err.Error()
		return res
	}
	found, ok := a.Find(p.FileName)
	res.IsValid = ok
	if ok {
		res.Message = fmt.Sprintf("File %s is present", p.FileName)
		res.Details = map[string]any{"file_name": p.FileName, "path": found}
	} else {
		res.Message = fmt.Sprintf("File %s is missing", p.FileName)
		res.Details = map[string]any{"file_name": p.FileName}
	}
	return res
}

func contentMatch(res domain.RuleResult, a *Archive, p domain.FileContentMatchRule) domain.RuleResult {
	if err := a.Err(); err != nil {
		res.Message = "Validation error: " + err.Error()
		return res
	}
	res.Details = map[string]any{"file_name": p.FileName, "match": p.Match, "match_type": string(p.MatchType)}

	found, ok := a.Find(p.FileName)
	if !ok {
		res.Message = fmt.Sprintf("File %s is missing", p.FileName)
		return res
	}
	data, err := a.ReadFile(found)
	if err != nil {
		res.Message = "Validation error: " + err.Error()
		return res
	}

	switch p.MatchType {
	case domain.MatchRegex:
		re, err := regexp.Compile(p.Match)
		if err != nil {
			res.Message = "Validation error: " + err.Error()
			return res
		}
		res.IsValid = re.Match(data)
	default:
		res.IsValid = strings.Contains(string(data), p.Match)
	}

	if res.IsValid {
		res.Message = fmt.Sprintf("File %s matches the expected content", found)
	} else {
		res.Message = fmt.Sprintf("File %s does not match the expected content", found)
	}
	return res
}

func structure(res domain.RuleResult, a *Archive, p domain.FolderStructureRule) domain.RuleResult {
	if err := a.Err(); err != nil {
		res.Message = "Validation error: " + err.Error()
		return res
	}

	roots := []string{""}
	if wrapper, ok := a.wrapperDir(); ok {
		roots = append(roots, wrapper)
	}

	var best []string
	bestRoot := ""
	for i, root := range roots {
		missing := checkRoot(a, root, p.ExpectedStructure)
		if i == 0 || len(missing) < len(best) {
			best, bestRoot = missing, root
		}
		if len(missing) == 0 {
			break
		}
	}

	res.IsValid = len(best) == 0
	res.Details = map[string]any{"missing": best, "root": bestRoot}
	if res.IsValid {
		res.Message = "Folder structure matches the expected layout"
	} else {
		res.Message = fmt.Sprintf("Folder structure is missing %d required entr%s: %s",
			len(best), plural(len(best), "y", "ies"), strings.Join(best, ", "))
	}
	return res
}

// checkRoot treats a folder node named "." or "/" as the archive root
// itself.
func checkRoot(a *Archive, root string, node domain.StructureNode) []string {
	if node.Type == "folder" && node.Pattern == "" && (node.Name == "." || node.Name == "/") {
		var missing []string
		for _, child := range node.Children {
			missing = append(missing, checkNode(a, root, child)...)
		}
		return missing
	}
	return checkNode(a, root, node)
}

// checkNode returns the display paths of required entries missing under
// dir. A folder matched several times passes if any match satisfies its
// children.
func checkNode(a *Archive, dir string, node domain.StructureNode) []string {
	want := kindFile
	if node.Type == "folder" {
		want = kindFolder
	}

	var re *regexp.Regexp
	if node.Pattern != "" {
		re = regexp.MustCompile(node.Pattern)
	}

	var matches []string
	for name, kind := range a.children(dir) {
		if kind != want {
			continue
		}
		if (re != nil && re.MatchString(name)) || (re == nil && name == node.Name) {
			matches = append(matches, name)
		}
	}
	sort.Strings(matches)

	label := node.Name
	if label == "" {
		label = node.Pattern
	}
	if len(matches) == 0 {
		if node.Required {
			return []string{joinDisplay(dir, label)}
		}
		return nil
	}
	if want == kindFile || len(node.Children) == 0 {
		return nil
	}

	var best []string
	for i, m := range matches {
		sub := joinPath(dir, m)
		var missing []string
		for _, child := range node.Children {
			missing = append(missing, checkNode(a, sub, child)...)
		}
		if i == 0 || len(missing) < len(best) {
			best = missing
		}
		if len(missing) == 0 {
			break
		}
	}
	return best
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

func joinDisplay(dir, name string) string {
	return "/" + joinPath(dir, name)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

var byteUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatBytes renders a size with 1024-based units and at most two
// decimals, dropping trailing zeros.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 Bytes"
	}
	v := float64(n)
	i := 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}
