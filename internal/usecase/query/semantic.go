package query

import (
	"strings"

	dq "github.com/kailas-cloud/modeldex/internal/domain/query"
)

// parseSemantics matches the role rules against the raw query and derives
// concepts, relations and a structure object from what it finds.
func parseSemantics(raw string, toks dq.Tokens, ents dq.Entities) dq.Semantics {
	var out dq.Semantics
	for _, rule := range roleRules {
		for _, m := range rule.re.FindAllStringSubmatchIndex(raw, -1) {
			start, end := m[2*rule.group], m[2*rule.group+1]
			if start < 0 {
				continue
			}
			out.Roles = append(out.Roles, dq.RoleMatch{
				Role:  rule.role,
				Text:  strings.TrimSpace(raw[start:end]),
				Start: start,
				End:   end,
			})
		}
	}

	st := &out.Structure
	for _, r := range out.Roles {
		text := strings.ToLower(r.Text)
		switch r.Role {
		case dq.RoleSubject:
			if st.Subject == "" {
				st.Subject = text
			}
		case dq.RolePredicate:
			if st.Predicate == "" {
				st.Predicate = text
			}
		case dq.RoleObject:
			if st.Object == "" {
				st.Object = text
			}
		case dq.RoleModifier:
			st.Modifiers = append(st.Modifiers, text)
		case dq.RoleConstraint:
			st.Constraints = append(st.Constraints, text)
		}
	}

	seen := make(map[string]struct{})
	addConcept := func(c string) {
		if _, dup := seen[c]; c != "" && !dup {
			seen[c] = struct{}{}
			out.Concepts = append(out.Concepts, c)
		}
	}
	for _, e := range ents.Items {
		addConcept(strings.ToLower(e.Normalized))
	}
	for _, t := range toks.Tagged {
		if t.POS == dq.POSNoun && !t.Stop {
			addConcept(t.Normalized)
		}
	}

	for i, e := range ents.Items {
		for _, j := range e.Related {
			if j > i {
				out.Relations = append(out.Relations, dq.Relation{
					From: e.Normalized, To: ents.Items[j].Normalized, Type: "near",
				})
			}
		}
	}
	if st.Predicate != "" && st.Object != "" {
		out.Relations = append(out.Relations, dq.Relation{From: st.Predicate, To: st.Object, Type: "acts_on"})
	}
	return out
}
