package core

import "strings"

// DBOrdering is a single ORDER BY term. Field must be checked against a whitelist before use.
type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderingClause joins the allowed orderings into an ORDER BY clause, falling back to `def`.
func OrderingClause(orderings []DBOrdering, allowed map[string]string, def ...DBOrdering) string {
	terms := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if col, ok := allowed[ord.Field]; ok {
			terms = append(terms, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	if len(terms) == 0 {
		for _, ord := range def {
			terms = append(terms, ord.String())
		}
	}
	return strings.Join(terms, ", ")
}
