package agent

import (
	"fmt"
	"strings"

	"github.com/coolfix/service-desk/internal/domain"
)

const dateLayout = "02 Jan 2006"

// FormatStatus renders the full status summary of one ticket.
func FormatStatus(t *domain.ServiceTicket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s\n", t.TicketNumber)
	fmt.Fprintf(&b, "Problem: %s\n", t.ProblemDescription)
	fmt.Fprintf(&b, "Created: %s\n", t.CreatedAt.Format(dateLayout))
	fmt.Fprintf(&b, "Priority: %s\n", t.Priority)
	fmt.Fprintf(&b, "Status: %s", humanStatus(t.Status))
	if t.AssignedTechnician != nil {
		fmt.Fprintf(&b, "\nTechnician: %s", t.AssignedTechnician.Name)
		if t.AssignedTechnician.Phone != "" {
			fmt.Fprintf(&b, " (%s)", t.AssignedTechnician.Phone)
		}
	}
	if !t.Status.IsTerminal() && t.EstimatedResponseTime != "" {
		fmt.Fprintf(&b, "\nExpected response: %s", t.EstimatedResponseTime)
	}
	if t.ScheduledAt != nil {
		fmt.Fprintf(&b, "\nScheduled: %s", t.ScheduledAt.Format("02 Jan 2006 15:04"))
	}
	return b.String()
}

// FormatList renders one line per ticket.
func FormatList(tickets []domain.ServiceTicket) string {
	lines := make([]string, 0, len(tickets))
	for i, t := range tickets {
		lines = append(lines, fmt.Sprintf("%d. %s - %s - %s (%s)",
			i+1, t.TicketNumber, summarize(t.ProblemDescription, 40), humanStatus(t.Status), t.CreatedAt.Format(dateLayout)))
	}
	return strings.Join(lines, "\n")
}

func humanStatus(s domain.TicketStatus) string {
	return strings.ReplaceAll(string(s), "_", " ")
}

func summarize(text string, max int) string {
	r := []rune(strings.TrimSpace(text))
	if len(r) <= max {
		return string(r)
	}
	return strings.TrimSpace(string(r[:max])) + "..."
}
