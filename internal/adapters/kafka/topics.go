package kafka

// Topic definitions for fund event streaming
const (
	TopicNav           = "fund.nav"
	TopicSubscriptions = "fund.subscriptions"
	TopicRedemptions   = "fund.redemptions"
	TopicYield         = "fund.yield"
	TopicGovernance    = "fund.governance"
)

// Topics lists every topic the service writes, for provisioning.
var Topics = []string{
	TopicNav,
	TopicSubscriptions,
	TopicRedemptions,
	TopicYield,
	TopicGovernance,
}
