package routernode

import (
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

// Precedence levels used by negotiation. Higher wins; equal levels cannot
// settle a conflict.
const (
	precedenceInformational = 10
	precedenceSafety        = 100
)

func precedenceFor(in contractx.Intent) int {
	if in == contractx.IntentEscalate {
		return precedenceSafety
	}
	return precedenceInformational
}

// readsRecord reports whether intent only reports stored records, so it must
// observe an earlier update.
func readsRecord(in contractx.Intent) bool {
	switch in {
	case contractx.IntentLookup, contractx.IntentHistory, contractx.IntentList:
		return true
	default:
		return false
	}
}

// outranks reports whether candidate wins over current.
func outranks(candidate, current int) bool {
	return candidate > current
}

// routes is the fixed intent to agent table.
var routes = map[contractx.Intent][]contractx.AgentRole{
	contractx.IntentLookup:   {contractx.RoleData},
	contractx.IntentUpdate:   {contractx.RoleData},
	contractx.IntentList:     {contractx.RoleData},
	contractx.IntentHistory:  {contractx.RoleData},
	contractx.IntentEscalate: {contractx.RoleData, contractx.RoleSupport},
	contractx.IntentUpgrade:  {contractx.RoleData, contractx.RoleSupport},
	contractx.IntentMixed:    {contractx.RoleData, contractx.RoleSupport},
}
