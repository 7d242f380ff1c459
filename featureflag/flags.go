package featureflag

type Flag string

const (
	FlagDisableWebsocketQueries Flag = "DISABLE_WEBSOCKET_QUERIES"
	FlagDisableNodeMutations    Flag = "DISABLE_NODE_MUTATIONS"
	FlagCompactAfterRemove      Flag = "COMPACT_AFTER_REMOVE"
	FlagValidateAfterMutation   Flag = "VALIDATE_AFTER_MUTATION"
	FlagDisableSmokeTest        Flag = "DISABLE_SMOKE_TEST"
)
