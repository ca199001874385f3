package curation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"huntcurator/internal/model"
)

// MinCriteria is the smallest rubric accepted for grading
const MinCriteria = 3

const criteriaFieldPrefix = "criteria"

// ExtractRubric parses rubric text in strict mode. The first balanced JSON
// array in text is decoded and every element must be an object carrying an
// id and a description (the first criteria* field, else "description").
// Surrounding prose is ignored. It never guesses: any defect is an error.
func ExtractRubric(text string) ([]model.Criterion, error) {
	raw, err := locateArray(text)
	if err != nil {
		return nil, err
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, &RubricFormatError{Reason: "rubric is not a JSON array", Err: err}
	}
	if len(items) == 0 {
		return nil, &RubricFormatError{Reason: "rubric array is empty"}
	}
	if len(items) < MinCriteria {
		return nil, &RubricFormatError{Reason: fmt.Sprintf("rubric has %d criteria, need at least %d", len(items), MinCriteria)}
	}

	criteria := make([]model.Criterion, 0, len(items))
	seen := make(map[string]int, len(items))
	for i, item := range items {
		c, err := parseCriterion(i, item)
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[c.ID]; dup {
			return nil, &RubricItemError{Index: i, Reason: fmt.Sprintf("duplicate id %q (first used by item %d)", c.ID, prev)}
		}
		seen[c.ID] = i
		criteria = append(criteria, c)
	}
	return criteria, nil
}

// locateArray returns the first top-level bracketed span of text that is valid JSON.
// Spans nested inside an earlier balanced span are never considered.
func locateArray(text string) (string, error) {
	var firstErr error
	balanced := false

	for pos := 0; pos < len(text); {
		start := strings.IndexByte(text[pos:], '[')
		if start < 0 {
			break
		}
		start += pos

		end := matchBracket(text, start)
		if end < 0 {
			pos = start + 1
			continue
		}
		balanced = true

		candidate := text[start : end+1]
		var probe interface{}
		err := json.Unmarshal([]byte(candidate), &probe)
		if err == nil {
			return candidate, nil
		}
		if firstErr == nil {
			firstErr = err
		}
		pos = end + 1
	}

	if !balanced {
		return "", &RubricFormatError{Reason: "no JSON array found"}
	}
	return "", &RubricFormatError{Reason: "rubric array is not valid JSON", Err: firstErr}
}

// matchBracket returns the index of the ']' closing the '[' at start, or -1.
// Brackets inside JSON string literals are skipped.
func matchBracket(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// parseCriterion walks the object tokens in document order so that the first
// criteria* key wins regardless of Go map ordering.
func parseCriterion(index int, raw json.RawMessage) (model.Criterion, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return model.Criterion{}, &RubricItemError{Index: index, Reason: err.Error()}
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return model.Criterion{}, &RubricItemError{Index: index, Reason: "expected an object"}
	}

	var (
		id, criteriaText, description  string
		hasID, hasCriteria, hasDescKey bool
	)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return model.Criterion{}, &RubricItemError{Index: index, Reason: err.Error()}
		}
		key, _ := keyTok.(string)

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return model.Criterion{}, &RubricItemError{Index: index, Reason: err.Error()}
		}

		switch {
		case key == "id" && !hasID:
			s, ok := scalarString(value)
			if !ok {
				return model.Criterion{}, &RubricItemError{Index: index, Reason: "id must be a string or number"}
			}
			id, hasID = s, true
		case strings.HasPrefix(strings.ToLower(key), criteriaFieldPrefix) && !hasCriteria:
			s, ok := scalarString(value)
			if !ok {
				return model.Criterion{}, &RubricItemError{Index: index, Reason: fmt.Sprintf("field %q must be a string", key)}
			}
			criteriaText, hasCriteria = s, true
		case key == "description" && !hasDescKey:
			s, ok := scalarString(value)
			if !ok {
				return model.Criterion{}, &RubricItemError{Index: index, Reason: `field "description" must be a string`}
			}
			description, hasDescKey = s, true
		}
	}

	if !hasID || id == "" {
		return model.Criterion{}, &RubricItemError{Index: index, Reason: "missing id"}
	}
	text := criteriaText
	if !hasCriteria {
		if !hasDescKey {
			return model.Criterion{}, &RubricItemError{Index: index, Reason: fmt.Sprintf("criterion %s has no criteria* or description field", id)}
		}
		text = description
	}
	if text == "" {
		return model.Criterion{}, &RubricItemError{Index: index, Reason: fmt.Sprintf("criterion %s has an empty description", id)}
	}
	return model.Criterion{ID: id, Description: text}, nil
}

func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t), true
	case json.Number:
		return t.String(), true
	default:
		return "", false
	}
}

type serializedCriterion struct {
	ID       string `json:"id"`
	Criteria string `json:"criteria1"`
}

// FormatRubric renders criteria back into rubric text that ExtractRubric accepts
func FormatRubric(criteria []model.Criterion) (string, error) {
	out := make([]serializedCriterion, len(criteria))
	for i, c := range criteria {
		out[i] = serializedCriterion{ID: c.ID, Criteria: c.Description}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// PreviewRubric is the lenient parser used for showing a rubric before grading.
// It repairs broken JSON, invents C<n> ids, and returns nil when nothing usable
// is found. Never feed its output into grading.
func PreviewRubric(text string) []model.Criterion {
	candidate, err := locateArray(text)
	if err != nil {
		start := strings.IndexByte(text, '[')
		if start < 0 {
			return nil
		}
		candidate = text[start:]
	}

	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return nil
	}
	var items []map[string]interface{}
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return nil
	}

	criteria := make([]model.Criterion, 0, len(items))
	for i, item := range items {
		id, _ := scalarString(item["id"])
		if id == "" {
			id = fmt.Sprintf("C%d", i+1)
		}
		criteria = append(criteria, model.Criterion{ID: id, Description: previewDescription(item)})
	}
	return criteria
}

func previewDescription(item map[string]interface{}) string {
	keys := make([]string, 0, len(item))
	for k := range item {
		if strings.HasPrefix(strings.ToLower(k), criteriaFieldPrefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if s, ok := scalarString(item[k]); ok && s != "" {
			return s
		}
	}
	s, _ := scalarString(item["description"])
	return s
}

// MissingCriteria returns ids present in initial but absent from current, in
// initial order. Matching is by exact id; a renumbered criterion reads as missing.
func MissingCriteria(current, initial []model.Criterion) []string {
	have := make(map[string]struct{}, len(current))
	for _, c := range current {
		have[c.ID] = struct{}{}
	}
	var missing []string
	for _, c := range initial {
		if _, ok := have[c.ID]; !ok {
			missing = append(missing, c.ID)
		}
	}
	return missing
}

// CheckReference verifies that a reference response passed every criterion.
// Ids absent from grades, or graded MISSING, count as missing.
func CheckReference(criteria []model.Criterion, grades map[string]model.Grade) error {
	if len(criteria) == 0 {
		return ErrNoRubric
	}
	var failed, missing []string
	for _, c := range criteria {
		switch grades[c.ID] {
		case model.GradePass:
		case model.GradeFail:
			failed = append(failed, c.ID)
		default:
			missing = append(missing, c.ID)
		}
	}
	if len(failed) > 0 || len(missing) > 0 {
		return &ReferenceGateError{Failed: failed, Missing: missing}
	}
	return nil
}
