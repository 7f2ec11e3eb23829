// internal/access/gate.go
package access

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"querydesk/internal/common/logger"
	"querydesk/internal/models"
)

// OrganizationResolver is the directory surface the gate needs.
type OrganizationResolver interface {
	Lookup(domain string) models.OrganizationRecord
	AllNamesAndAliases() map[string][]string
}

// Gate blocks queries that reference organizations other than the
// requester's own. Matching is whole-word and case-insensitive over every
// directory organization's name and derived aliases.
type Gate struct {
	directory OrganizationResolver
	log       logger.Logger
}

func NewGate(directory OrganizationResolver, log logger.Logger) *Gate {
	if log == nil {
		log = logger.Nop()
	}
	return &Gate{directory: directory, log: log}
}

// Check evaluates a query against the requester's organization. An unknown
// requester fails open: cross-organization references cannot be judged
// without knowing which organization is the requester's own.
func (g *Gate) Check(query, requesterDomain string) models.AccessDecision {
	requester := g.directory.Lookup(requesterDomain)
	if !requester.Known {
		g.log.Warn("access gate failing open for unknown requester", map[string]interface{}{
			"domain": requesterDomain,
		})
		return models.AccessDecision{Allowed: true}
	}

	var blocked []string
	for name, terms := range g.directory.AllNamesAndAliases() {
		if name == requester.Organization {
			continue
		}
		for _, term := range terms {
			if len(term) < 2 {
				continue
			}
			if matchWholeWord(query, term) {
				blocked = append(blocked, name)
				break
			}
		}
	}

	if len(blocked) == 0 {
		return models.AccessDecision{Allowed: true}
	}

	sort.Strings(blocked)
	g.log.Info("query blocked by access gate", map[string]interface{}{
		"requester":    requester.Organization,
		"blocked_orgs": blocked,
	})

	return models.AccessDecision{
		Allowed:              false,
		BlockedOrganizations: blocked,
		Message:              denialMessage(requester, blocked),
	}
}

func matchWholeWord(query, term string) bool {
	pattern := `(?i)\b` + regexp.QuoteMeta(term) + `\b`
	matched, err := regexp.MatchString(pattern, query)
	return err == nil && matched
}

func denialMessage(requester models.OrganizationRecord, blocked []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I can only help with questions about your own organization, %s.", requester.Organization)
	fmt.Fprintf(&b, " Your request mentions %s, which I don't have access to share information about.", strings.Join(blocked, ", "))
	if requester.ProdVersion != "" {
		fmt.Fprintf(&b, " For reference, %s is currently on production version %s.", requester.Organization, requester.ProdVersion)
	}
	return b.String()
}
