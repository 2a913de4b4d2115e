package tool

import (
	"slices"

	"github.com/cloudwego/eino/schema"
	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

// ParamSpec is the wire form of one operation parameter.
type ParamSpec struct {
	Type     schema.DataType `json:"type"`
	Desc     string          `json:"description,omitempty"`
	Required bool            `json:"required,omitempty"`
	Enum     []string        `json:"enum,omitempty"`
	Min      *int64          `json:"minimum,omitempty"`
	Max      *int64          `json:"maximum,omitempty"`
}

// OperationSpec describes one operation exposed by the tool endpoint.
type OperationSpec struct {
	Name    contractx.Operation  `json:"name"`
	Desc    string               `json:"description"`
	Params  map[string]ParamSpec `json:"params"`
	Mutates bool                 `json:"mutates"`
}

type operation struct {
	name    contractx.Operation
	desc    string
	params  map[string]*schema.ParameterInfo
	bounds  map[string][2]int64
	mutates bool
}

var (
	customerStatuses = []string{"active", "inactive", "suspended", "disabled"}
	ticketStatuses   = []string{"open", "in_progress", "resolved", "escalated"}
	ticketPriorities = []string{"low", "medium", "high"}
	positiveID       = [2]int64{1, 0}
)

var operations = []operation{
	{
		name: contractx.OpGetCustomer,
		desc: "Retrieve one customer by id.",
		params: map[string]*schema.ParameterInfo{
			"customer_id": {Type: schema.Integer, Desc: "Customer id", Required: true},
		},
		bounds: map[string][2]int64{"customer_id": positiveID},
	},
	{
		name: contractx.OpListCustomers,
		desc: "List customers, newest first, optionally filtered by status.",
		params: map[string]*schema.ParameterInfo{
			"status": {Type: schema.String, Desc: "Customer status filter", Enum: customerStatuses},
			"limit":  {Type: schema.Integer, Desc: "Maximum number of customers"},
		},
		bounds: map[string][2]int64{"limit": {1, 1000}},
	},
	{
		name: contractx.OpUpdateCustomer,
		desc: "Update contact details or status of a customer.",
		params: map[string]*schema.ParameterInfo{
			"customer_id": {Type: schema.Integer, Desc: "Customer id", Required: true},
			"name":        {Type: schema.String, Desc: "New name"},
			"email":       {Type: schema.String, Desc: "New email"},
			"phone":       {Type: schema.String, Desc: "New phone"},
			"status":      {Type: schema.String, Desc: "New status", Enum: customerStatuses},
		},
		bounds:  map[string][2]int64{"customer_id": positiveID},
		mutates: true,
	},
	{
		name: contractx.OpCreateTicket,
		desc: "Open a support ticket for an existing customer.",
		params: map[string]*schema.ParameterInfo{
			"customer_id": {Type: schema.Integer, Desc: "Customer id", Required: true},
			"issue":       {Type: schema.String, Desc: "Issue description", Required: true},
			"priority":    {Type: schema.String, Desc: "Ticket priority", Enum: ticketPriorities, Required: true},
			"status":      {Type: schema.String, Desc: "Initial status, defaults to open", Enum: ticketStatuses},
		},
		bounds:  map[string][2]int64{"customer_id": positiveID},
		mutates: true,
	},
	{
		name: contractx.OpUpdateTicket,
		desc: "Change status or priority of a ticket.",
		params: map[string]*schema.ParameterInfo{
			"ticket_id": {Type: schema.Integer, Desc: "Ticket id", Required: true},
			"status":    {Type: schema.String, Desc: "New status", Enum: ticketStatuses},
			"priority":  {Type: schema.String, Desc: "New priority", Enum: ticketPriorities},
		},
		bounds:  map[string][2]int64{"ticket_id": positiveID},
		mutates: true,
	},
	{
		name: contractx.OpGetCustomerHistory,
		desc: "List the tickets of a customer, newest first.",
		params: map[string]*schema.ParameterInfo{
			"customer_id": {Type: schema.Integer, Desc: "Customer id", Required: true},
		},
		bounds: map[string][2]int64{"customer_id": positiveID},
	},
}

// Catalog returns the wire specs of every operation in declaration order.
func Catalog() []OperationSpec {
	out := make([]OperationSpec, 0, len(operations))
	for _, op := range operations {
		out = append(out, op.spec())
	}
	return out
}

func Names() []contractx.Operation {
	out := make([]contractx.Operation, 0, len(operations))
	for _, op := range operations {
		out = append(out, op.name)
	}
	return out
}

func Lookup(name contractx.Operation) (OperationSpec, bool) {
	i := slices.IndexFunc(operations, func(op operation) bool { return op.name == name })
	if i < 0 {
		return OperationSpec{}, false
	}
	return operations[i].spec(), true
}

// ToolInfos exposes the operations as eino tool descriptions.
func ToolInfos() []*schema.ToolInfo {
	out := make([]*schema.ToolInfo, 0, len(operations))
	for _, op := range operations {
		out = append(out, &schema.ToolInfo{
			Name:        string(op.name),
			Desc:        op.desc,
			ParamsOneOf: schema.NewParamsOneOfByParams(op.params),
		})
	}
	return out
}

func (op operation) spec() OperationSpec {
	params := make(map[string]ParamSpec, len(op.params))
	for name, info := range op.params {
		p := ParamSpec{
			Type:     info.Type,
			Desc:     info.Desc,
			Required: info.Required,
			Enum:     slices.Clone(info.Enum),
		}
		if b, ok := op.bounds[name]; ok {
			lo := b[0]
			p.Min = &lo
			if b[1] > 0 {
				hi := b[1]
				p.Max = &hi
			}
		}
		params[name] = p
	}
	return OperationSpec{
		Name:    op.name,
		Desc:    op.desc,
		Params:  params,
		Mutates: op.mutates,
	}
}
