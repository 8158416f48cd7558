package model

// TenantScope restricts reads either to the documents claimed by one
// organization or, when OrganizationID is empty, to the global catalog.
type TenantScope struct {
	OrganizationID string `json:"organization_id,omitempty"`
}

func GlobalScope() TenantScope {
	return TenantScope{}
}

func OrganizationScope(orgID string) TenantScope {
	return TenantScope{OrganizationID: orgID}
}

func (s TenantScope) IsGlobal() bool {
	return s.OrganizationID == ""
}

func (s TenantScope) String() string {
	if s.IsGlobal() {
		return "global"
	}
	return "org:" + s.OrganizationID
}

// OwnsSummary reports whether a score summary was produced for this scope.
func (s TenantScope) OwnsSummary(summary *ScoreSummary) bool {
	if s.IsGlobal() {
		return summary.OrganizationID == nil
	}
	return summary.OrganizationID != nil && *summary.OrganizationID == s.OrganizationID
}
