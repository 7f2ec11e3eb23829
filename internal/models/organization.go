// internal/models/organization.go
package models

// OrganizationRecord is one row of the customer directory, keyed by the
// requester's email domain.
type OrganizationRecord struct {
	Domain       string   `json:"domain"`
	Organization string   `json:"organization"`
	Platform     string   `json:"platform"`
	Role         string   `json:"role"`
	ProdVersion  string   `json:"prod_version"`
	Grouping     string   `json:"grouping"`
	Aliases      []string `json:"aliases,omitempty"`
	SupportDesk  bool     `json:"support_desk"`
	Known        bool     `json:"known"`
}

// AccessDecision is the result of the cross-organization gate check.
type AccessDecision struct {
	Allowed              bool     `json:"allowed"`
	BlockedOrganizations []string `json:"blocked_organizations,omitempty"`
	Message              string   `json:"message,omitempty"`
}
