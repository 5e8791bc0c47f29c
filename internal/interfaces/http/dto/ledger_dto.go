package dto

// ScopeRequest carries the optional organization a request is narrowed to.
type ScopeRequest struct {
	OrganizationID string `json:"organization_id" form:"organization_id" binding:"omitempty,max=64"`
}

// IntegrityCheckRequest is the body of POST /integrity/check
type IntegrityCheckRequest struct {
	ScopeRequest
}

// FundingAnalysisRequest holds the funding analysis query
type FundingAnalysisRequest struct {
	ScopeRequest
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// CacheInvalidationResponse reports which compatibility cache entries were dropped.
type CacheInvalidationResponse struct {
	Key     string `json:"key,omitempty"`
	Cleared bool   `json:"cleared"`
}
