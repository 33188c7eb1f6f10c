package gif

// Operation names used in diagnostics and the run journal.
const (
	OpProposeType        = "proposeType"
	OpApproveType        = "approveType"
	OpDeployOracle       = "deployOracle"
	OpApproveOracle      = "approveOracle"
	OpAssignOracleToType = "assignOracleToType"
	OpDeployProduct      = "deployProduct"
	OpApproveProduct     = "approveProduct"
	OpGetContract        = "getContract"
)

// Wire methods understood by the backend.
const (
	MethodGetContract              = "getContract"
	MethodProposeOracleType        = "proposeOracleType"
	MethodApproveOracleType        = "approveOracleType"
	MethodDeployOracle             = "deployOracle"
	MethodApproveOracle            = "approveOracle"
	MethodAssignOracleToOracleType = "assignOracleToOracleType"
	MethodDeployProduct            = "deployProduct"
	MethodApproveProduct           = "approveProduct"
)
