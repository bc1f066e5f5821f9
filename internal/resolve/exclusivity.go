package resolve

import (
	"fmt"
	"regexp"
	"strings"
)

// Exclusivity holds groups of mutually exclusive technology terms. Two texts
// collide when they each name a different term from the same group.
type Exclusivity struct {
	groups   [][]string
	patterns map[string]*regexp.Regexp
}

// DefaultGroups covers the technology choices the resolver sees most often.
// Projects override the table in configuration.
func DefaultGroups() [][]string {
	return [][]string{
		{"postgresql", "mysql", "mongodb", "sqlite", "dynamodb"},
		{"airflow", "dagster", "prefect", "luigi"},
		{"kubernetes", "ecs", "nomad"},
		{"terraform", "cloudformation", "pulumi"},
		{"kafka", "rabbitmq", "kinesis", "pubsub"},
		{"mlflow", "kubeflow", "sagemaker"},
		{"grafana", "datadog", "cloudwatch"},
		{"rest", "grpc", "graphql"},
	}
}

// NewExclusivity compiles an exclusivity table. Terms are matched
// case-insensitively on word boundaries.
func NewExclusivity(groups [][]string) (*Exclusivity, error) {
	e := &Exclusivity{patterns: make(map[string]*regexp.Regexp)}
	for i, group := range groups {
		if len(group) < 2 {
			return nil, fmt.Errorf("exclusivity group %d needs at least two terms, got %v", i, group)
		}
		normalized := make([]string, 0, len(group))
		for _, term := range group {
			term = strings.ToLower(strings.TrimSpace(term))
			if term == "" {
				return nil, fmt.Errorf("exclusivity group %d contains an empty term", i)
			}
			if _, ok := e.patterns[term]; !ok {
				re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
				if err != nil {
					return nil, fmt.Errorf("compile pattern for term %q: %w", term, err)
				}
				e.patterns[term] = re
			}
			normalized = append(normalized, term)
		}
		e.groups = append(e.groups, normalized)
	}
	return e, nil
}

// Collision reports the first pair of mutually exclusive terms where one
// appears in a and the other in b. Naming the same term is agreement, not a
// collision.
func (e *Exclusivity) Collision(a, b string) (termA, termB string, found bool) {
	for _, group := range e.groups {
		var inA, inB []string
		for _, term := range group {
			re := e.patterns[term]
			if re.MatchString(a) {
				inA = append(inA, term)
			}
			if re.MatchString(b) {
				inB = append(inB, term)
			}
		}
		for _, ta := range inA {
			for _, tb := range inB {
				if ta != tb {
					return ta, tb, true
				}
			}
		}
	}
	return "", "", false
}
