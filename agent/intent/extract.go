package intent

import (
	"regexp"
	"strconv"
	"strings"

	contractx "github.com/gylee17/Multi-Agent-Customer-Service-System-w-A2A-and-MCP/agent/contract"
)

var customerRefs = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bcustomer\s*(?:id|#|no\.?|number)?\s*[:#]?\s*(\d+)\b`),
	regexp.MustCompile(`(?i)\bid\s*[:#]?\s*(\d+)\b`),
	regexp.MustCompile(`(?:^|[^\w&])#(\d+)\b`),
}

var (
	ticketRef     = regexp.MustCompile(`(?i)\btickets?\s*(?:id\s*)?(?:#|no\.?|number)?\s*(\d+)\b`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern  = regexp.MustCompile(`(?i)\bphone(?:\s+number)?\s+(?:to|is|=)\s*(\+?\d[\d\-\s().]{5,}\d)`)
	namePattern   = regexp.MustCompile(`(?i)\bname\s+to\s+([A-Za-z][A-Za-z'.\-]*(?:\s+[A-Za-z][A-Za-z'.\-]*){0,3})`)
	statusPattern = regexp.MustCompile(`(?i)\bstatus\s+to\s+(active|inactive|suspended)\b`)

	listStatus     = regexp.MustCompile(`(?i)\b(active|inactive|suspended|premium)\s+customers\b`)
	ticketStatus   = regexp.MustCompile(`(?i)\b(open|escalated|resolved|unresolved|in[\s_-]progress)\s+tickets?\b`)
	ticketPriority = regexp.MustCompile(`(?i)\b(high|medium|low)[\s-]+priority\b`)
	nameStop       = regexp.MustCompile(`(?i)\s+(and|then|but|please|so)\b`)
)

// Params holds everything the Router extracts from the query text. Zero values
// mean the query did not mention the field.
type Params struct {
	CustomerID int64
	// InvalidCustomerID is the raw text of a customer id that was mentioned
	// but is not a positive int64, such as "0" or an overflowing number.
	InvalidCustomerID string
	TicketID          int64
	Email             string
	Phone             string
	Name              string
	Status            contractx.CustomerStatus
	List              ListFilter
}

// UpdateFields returns the customer fields an update intent should write.
func (p Params) UpdateFields() map[string]any {
	out := make(map[string]any, 4)
	if p.Email != "" {
		out["email"] = p.Email
	}
	if p.Phone != "" {
		out["phone"] = p.Phone
	}
	if p.Name != "" {
		out["name"] = p.Name
	}
	if p.Status != "" {
		out["status"] = string(p.Status)
	}
	return out
}

// ListFilter narrows a list intent. "premium" customers are the active ones.
type ListFilter struct {
	CustomerStatus contractx.CustomerStatus
	TicketStatus   contractx.TicketStatus
	Unresolved     bool
	TicketPriority contractx.TicketPriority
}

// NeedsTickets reports whether the filter can only be answered with ticket history.
func (f ListFilter) NeedsTickets() bool {
	return f.TicketStatus != "" || f.Unresolved || f.TicketPriority != ""
}

// Matching returns the tickets that satisfy the ticket part of the filter.
func (f ListFilter) Matching(tickets []contractx.Ticket) []contractx.Ticket {
	out := make([]contractx.Ticket, 0, len(tickets))
	for _, t := range tickets {
		if f.TicketStatus != "" && t.Status != f.TicketStatus {
			continue
		}
		if f.Unresolved && !t.Status.Unresolved() {
			continue
		}
		if f.TicketPriority != "" && t.Priority != f.TicketPriority {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Extract pulls ids, contact fields and list filters out of query.
func Extract(query string) Params {
	var p Params

	rest := query
	if m := ticketRef.FindStringSubmatchIndex(query); m != nil {
		p.TicketID, _ = parseID(query[m[2]:m[3]])
		rest = query[:m[0]] + strings.Repeat(" ", m[1]-m[0]) + query[m[1]:]
	}
	// Emails can contain digits that look like ids.
	rest = emailPattern.ReplaceAllStringFunc(rest, func(s string) string { return strings.Repeat(" ", len(s)) })
	for _, re := range customerRefs {
		m := re.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		if id, ok := parseID(m[1]); ok {
			p.CustomerID = id
		} else {
			p.InvalidCustomerID = m[1]
		}
		break
	}

	p.Email = emailPattern.FindString(query)
	if m := phonePattern.FindStringSubmatch(query); m != nil {
		p.Phone = strings.TrimSpace(m[1])
	}
	if m := namePattern.FindStringSubmatch(query); m != nil {
		name := m[1]
		if loc := nameStop.FindStringIndex(name); loc != nil {
			name = name[:loc[0]]
		}
		p.Name = strings.TrimSpace(name)
	}
	if m := statusPattern.FindStringSubmatch(query); m != nil {
		p.Status = contractx.CustomerStatus(strings.ToLower(m[1]))
	}

	p.List = extractFilter(query)
	return p
}

func extractFilter(query string) ListFilter {
	var f ListFilter
	if m := listStatus.FindStringSubmatch(query); m != nil {
		switch s := strings.ToLower(m[1]); s {
		case "premium":
			f.CustomerStatus = contractx.CustomerActive
		default:
			f.CustomerStatus = contractx.CustomerStatus(s)
		}
	}
	if m := ticketStatus.FindStringSubmatch(query); m != nil {
		switch s := strings.ToLower(m[1]); s {
		case "unresolved":
			f.Unresolved = true
		case "open", "escalated", "resolved":
			f.TicketStatus = contractx.TicketStatus(s)
		default:
			f.TicketStatus = contractx.TicketInProgress
		}
	}
	if m := ticketPriority.FindStringSubmatch(query); m != nil {
		f.TicketPriority = contractx.TicketPriority(strings.ToLower(m[1]))
	}
	return f
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
