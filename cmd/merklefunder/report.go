package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/ligun0805/merkle-funder/internal/funder"
	"github.com/ligun0805/merkle-funder/internal/units"
)

var (
	header = color.New(color.FgCyan, color.Bold)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func statusColor(s funder.Status) *color.Color {
	switch s {
	case funder.StatusSubmitted:
		return green
	case funder.StatusSkipped:
		return yellow
	default:
		return red
	}
}

func printRunReport(reports []funder.ChainReport) {
	for _, r := range reports {
		header.Printf("=== %s (%d) ===\n", r.Name, r.ChainID)
		for _, g := range r.Groups {
			statusColor(g.Status).Printf("  %-8s %-17s", g.Group, g.Status)
			switch g.Status {
			case funder.StatusSubmitted:
				fmt.Printf(" depository=%s recipients=%d/%d nonce=%d tx=%s\n",
					g.Depository.Hex(), g.Included(), len(g.Outcomes), g.Nonce, g.Tx.Hex())
			case funder.StatusSkipped:
				fmt.Printf(" depository=%s recipients=0/%d\n", g.Depository.Hex(), len(g.Outcomes))
			default:
				fmt.Printf(" %v\n", g.Err)
			}
			for _, o := range g.Outcomes {
				if !o.Included {
					fmt.Printf("    - %s: %s\n", o.Call.Recipient.Hex(), o.Reason)
				}
			}
		}
		fmt.Printf("  took %s\n", r.Finished.Sub(r.Started).Round(time.Millisecond))
	}
}

func printDeployReport(name string, reports []funder.DeployReport) {
	header.Printf("=== %s ===\n", name)
	for _, r := range reports {
		switch r.Status {
		case funder.DeployStatusDeployed:
			green.Printf("  %-8s deployed          %s tx=%s\n", r.Group, r.Depository.Hex(), r.Tx.Hex())
		case funder.DeployStatusAlreadyDeployed:
			yellow.Printf("  %-8s already deployed  %s\n", r.Group, r.Depository.Hex())
		default:
			red.Printf("  %-8s failed            %v\n", r.Group, r.Err)
		}
	}
}

func printBalances(name string, reports []funder.BalanceReport) {
	header.Printf("=== %s ===\n", name)
	for _, r := range reports {
		switch {
		case r.Err != nil:
			red.Printf("  %-8s %v\n", r.Group, r.Err)
		case !r.Deployed:
			yellow.Printf("  %-8s %s not deployed\n", r.Group, r.Depository.Hex())
		default:
			green.Printf("  %-8s %s %s ETH\n", r.Group, r.Depository.Hex(), units.FormatETH(r.Balance))
		}
	}
}

func printTrees(name string, reports []funder.TreeReport) {
	header.Printf("=== %s ===\n", name)
	for _, r := range reports {
		if r.Err != nil {
			red.Printf("  %-8s %v\n", r.Group, r.Err)
			continue
		}
		fmt.Printf("  %s owner=%s\n", r.Group, r.Owner.Hex())
		fmt.Printf("    root       %s\n", r.Root.Hex())
		fmt.Printf("    depository %s\n", r.Depository.Hex())
		for _, e := range r.Entries {
			fmt.Printf("    [%d] node=%d %s low=%s high=%s leaf=%s\n", e.Index, e.NodeIndex,
				e.Leaf.Recipient.Hex(), units.FormatETH(e.Leaf.Low), units.FormatETH(e.Leaf.High), e.Hash.Hex())
		}
		fmt.Println(r.Rendered)
	}
}
