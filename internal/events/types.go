package events

const (
	TypeTokenTransfer       = "token.transfer"
	TypeTokenApproval       = "token.approval"
	TypeTokenApprovalForAll = "token.approval_for_all"

	TypePortfolioAdded    = "portfolio.added"
	TypePortfolioUpdated  = "portfolio.updated"
	TypePortfolioEnabled  = "portfolio.enabled"
	TypePortfolioDisabled = "portfolio.disabled"

	TypePortfolioPurchased = "portfolio.purchased"
	TypePortfolioSold      = "portfolio.sold"

	TypeRegistryUpdated   = "broker.registry_updated"
	TypeServiceFeeUpdated = "broker.service_fee_updated"
	TypeLookbackUpdated   = "broker.lookback_updated"
	TypeWithdrawn         = "broker.withdrawn"

	TypeActionsMinted          = "actions.minted"
	TypeActionsBurned          = "actions.burned"
	TypeActionsBurnParamsSaved = "actions.burn_params_updated"
)
