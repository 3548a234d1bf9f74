package catalog

import (
	"fmt"
	"strings"

	"github.com/relata-go/relata/dialect/sql/schema"
)

// tagTerm is one `key` or `key=value` segment of a `relata:"..."` tag.
type tagTerm struct {
	key, value string
}

// tagTerms is the parsed, order-preserving term list of one struct tag,
// supporting repeated keys (e.g. multiple `index=` entries on the
// table-level marker field).
type tagTerms []tagTerm

func parseTerms(raw string) (tagTerms, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var terms tagTerms
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if eq := strings.IndexByte(part, '='); eq >= 0 {
			terms = append(terms, tagTerm{key: strings.TrimSpace(part[:eq]), value: strings.TrimSpace(part[eq+1:])})
		} else {
			terms = append(terms, tagTerm{key: part})
		}
	}
	return terms, nil
}

func (t tagTerms) has(key string) bool {
	for _, term := range t {
		if term.key == key {
			return true
		}
	}
	return false
}

func (t tagTerms) value(key string) (string, bool) {
	for _, term := range t {
		if term.key == key {
			return term.value, true
		}
	}
	return "", false
}

func (t tagTerms) values(key string) []string {
	var out []string
	for _, term := range t {
		if term.key == key {
			out = append(out, term.value)
		}
	}
	return out
}

// applyTableTerms processes the table-level marker field's terms, mutating
// spec in place and returning any composite indexes declared via
// `index=name:col1,col2` / `uniqueindex=name:col1,col2`.
func applyTableTerms(spec *schema.TableSpec, terms tagTerms) ([]schema.IndexSpec, error) {
	var idxs []schema.IndexSpec
	for _, term := range terms {
		switch term.key {
		case "table":
			spec.TableName = term.value
		case "schema":
			spec.SchemaName = term.value
		case "engine":
			spec.Engine = term.value
		case "charset":
			spec.Charset = term.value
		case "collation":
			spec.Collation = term.value
		case "comment":
			spec.Comment = term.value
		case "index", "uniqueindex":
			idx, err := parseCompositeIndex(term.value, term.key == "uniqueindex")
			if err != nil {
				return nil, err
			}
			idxs = append(idxs, idx)
		}
	}
	return idxs, nil
}

// parseCompositeIndex parses "name:col1,col2" into an IndexSpec.
func parseCompositeIndex(raw string, unique bool) (schema.IndexSpec, error) {
	parts := strings.SplitN(raw, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return schema.IndexSpec{}, fmt.Errorf("index annotation %q must be name:col1,col2", raw)
	}
	cols := strings.Split(parts[1], ",")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return schema.IndexSpec{Name: parts[0], Unique: unique, Columns: cols}, nil
}
