package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"garpconnect/internal/config"
	"garpconnect/internal/journal"
)

const timeDisplayFormat = "2006-01-02 15:04:05"

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var showShipments bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently processed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *journal.Store) error {
				stdout := cmd.OutOrStdout()

				if showShipments {
					records, err := store.RecentShipments(cmd.Context(), limit)
					if err != nil {
						return err
					}
					if len(records) == 0 {
						fmt.Fprintln(stdout, "No shipments recorded")
						return nil
					}
					fmt.Fprintln(stdout, renderTable(
						[]string{"Order", "Carrier", "Shipment", "Tracking", "Booked"},
						shipmentRows(records)))
					return nil
				}

				items, err := store.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(items) == 0 {
					fmt.Fprintln(stdout, "No files processed yet")
					return nil
				}
				fmt.Fprintln(stdout, renderTable(
					[]string{"ID", "File", "Status", "Attempts", "Error", "Updated"},
					historyRows(items), 0, 3))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of rows")
	cmd.Flags().BoolVar(&showShipments, "shipments", false, "Show booked shipments instead of files")
	return cmd
}

func historyRows(items []*journal.WorkItem) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		errText := item.ErrorKind
		if errText == "" && item.Status == journal.StatusFailed {
			errText = "unknown"
		}
		rows = append(rows, []string{
			strconv.FormatInt(item.ID, 10),
			item.FileName,
			string(item.Status),
			strconv.Itoa(item.Attempts),
			errText,
			item.UpdatedAt.Local().Format(timeDisplayFormat),
		})
	}
	return rows
}

func shipmentRows(records []*journal.ShipmentRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.OrderNo,
			rec.Carrier,
			rec.ShipmentID,
			rec.TrackingNumber,
			rec.CreatedAt.Local().Format(timeDisplayFormat),
		})
	}
	return rows
}
