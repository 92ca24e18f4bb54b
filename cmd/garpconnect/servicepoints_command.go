package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"garpconnect/internal/carrier"
	"garpconnect/internal/carrier/dhl"
	"garpconnect/internal/carrier/postnord"
	"garpconnect/internal/logging"
	"garpconnect/internal/shipment"
)

func newServicePointsCommand(ctx *commandContext) *cobra.Command {
	var carrierFlag string
	var countryFlag string
	var limitFlag int

	cmd := &cobra.Command{
		Use:   "servicepoints <zipcode>",
		Short: "Look up nearby pickup locations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			code, ok := shipment.ParseCarrier(carrierFlag)
			if !ok {
				return fmt.Errorf("unknown carrier %q (use DHL or PN)", carrierFlag)
			}

			logger := logging.NewNop()
			var client carrier.Client
			switch code {
			case shipment.CarrierDHL:
				if !cfg.DHL.Enabled {
					return fmt.Errorf("carrier DHL is not enabled in the configuration")
				}
				client = dhl.New(cfg.DHL, cfg.Sender, logger)
			case shipment.CarrierPostNord:
				if !cfg.PostNord.Enabled {
					return fmt.Errorf("carrier PN is not enabled in the configuration")
				}
				client = postnord.New(cfg.PostNord, cfg.Sender, cfg.Printing.LabelFormat, logger)
			}

			country := strings.TrimSpace(countryFlag)
			if country == "" {
				country = cfg.Sender.Country
			}

			points, err := client.FindServicePoints(cmd.Context(), args[0], country, limitFlag)
			if err != nil {
				return fmt.Errorf("find service points: %w", err)
			}
			if len(points) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No service points found")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Address", "City", "Zipcode"},
				servicePointRows(points)))
			return nil
		},
	}

	cmd.Flags().StringVar(&carrierFlag, "carrier", "DHL", "Carrier to query (DHL or PN)")
	cmd.Flags().StringVar(&countryFlag, "country", "", "Country code (defaults to the sender country)")
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 5, "Maximum number of service points")
	return cmd
}

func servicePointRows(points []carrier.ServicePoint) [][]string {
	rows := make([][]string, 0, len(points))
	for _, p := range points {
		rows = append(rows, []string{p.ID, p.Name, p.Address, p.City, p.Zipcode})
	}
	return rows
}
