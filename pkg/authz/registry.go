package authz

const (
	RoleGovernanceAdmin = "governance-admin"
	RoleRiskAnalyst     = "risk-analyst"
	RoleConsumerService = "consumer-service"
	RoleAnonymous       = "anonymous"
)

const (
	ActionRead    = "read"
	ActionWrite   = "write"
	ActionPublish = "publish"
)

const (
	ObjectConfigDrafts      = "config.drafts"
	ObjectConfigVersions    = "config.versions"
	ObjectConfigBindings    = "config.bindings"
	ObjectPriorityPolicies  = "priority.policies"
	ObjectPriorityOverrides = "priority.overrides"
	ObjectTimeframeMatrix   = "priority.timeframes"
)
