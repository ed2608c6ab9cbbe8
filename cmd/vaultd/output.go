package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/oakmere/vaultd/internal/model"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}

func printSessionTable(s *model.VaultSession) {
	fmt.Printf("ID:              %s\n", s.ID)
	fmt.Printf("Owner:           %s\n", s.Owner)
	fmt.Printf("Agent:           %s\n", s.Agent)
	fmt.Printf("Vault Account:   %s\n", s.VaultAccount)
	fmt.Printf("Active:          %t\n", s.IsActive)
	fmt.Printf("Start:           %s\n", s.SessionStart.Format(timeLayout))
	fmt.Printf("Expiry:          %s\n", s.SessionExpiry.Format(timeLayout))
	fmt.Printf("Max Deposit:     %d\n", s.MaxDeposit)
	fmt.Printf("Total Deposited: %d\n", s.TotalDeposited)
	fmt.Printf("Total Spent:     %d\n", s.TotalSpent)
}

func printSessionListTable(sessions []*model.VaultSession, total int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOWNER\tAGENT\tACTIVE\tDEPOSITED\tSPENT\tEXPIRY")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%d\t%d\t%s\n",
			s.ID,
			s.Owner,
			s.Agent,
			s.IsActive,
			s.TotalDeposited,
			s.TotalSpent,
			s.SessionExpiry.Format(timeLayout),
		)
	}
	w.Flush()
	fmt.Printf("\n%d sessions (%d total)\n", len(sessions), total)
}

func printEntriesTable(entries []*model.LedgerEntry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tAMOUNT\tACTOR\tAT")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n",
			e.ID, e.Kind, e.Amount, e.Actor, e.CreatedAt.Format(timeLayout))
	}
	w.Flush()
	fmt.Printf("\n%d entries\n", len(entries))
}

func printGrantTable(g *model.DelegationGrant) {
	fmt.Printf("ID:          %s\n", g.ID)
	fmt.Printf("Session:     %s\n", g.SessionID)
	fmt.Printf("Delegate:    %s\n", g.Delegate)
	fmt.Printf("Approved At: %s\n", g.ApprovedAt.Format(timeLayout))
	if g.RevokedAt != nil {
		fmt.Printf("Revoked At:  %s\n", g.RevokedAt.Format(timeLayout))
	}
}

func printMirrorTable(m *model.SessionMirror) {
	fmt.Printf("Session:       %s\n", m.SessionID)
	fmt.Printf("Owner:         %s\n", m.Owner)
	fmt.Printf("Agent:         %s\n", m.Agent)
	fmt.Printf("Status:        %s\n", m.Status)
	fmt.Printf("Expiry:        %s\n", m.SessionExpiry.Format(timeLayout))
	fmt.Printf("Last Observed: %s\n", m.LastObserved.Format(timeLayout))
}

func printAccountTable(a *model.Account) {
	fmt.Printf("Wallet:  %s\n", a.Wallet)
	fmt.Printf("Balance: %d\n", a.Balance)
	if !a.UpdatedAt.IsZero() {
		fmt.Printf("Updated: %s\n", a.UpdatedAt.Format(timeLayout))
	}
}

// parseDurationArg accepts Go duration strings ("2h45m") for session windows.
func parseDurationArg(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive")
	}
	return d, nil
}
