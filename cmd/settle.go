package cmd

import (
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"payflo/settle"
)

var inputPath string
var outputPath string

func settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settle",
		Short:   "settle a CSV of expenses into transfers",
		Long:    `accept two CSV file paths, one for input and one for output. It reads the expenses from the input CSV, nets them into a minimal transfer plan and writes the plan to the output file.`,
		Example: `payflo settle --input expenses.csv --output plan.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" || outputPath == "" {
				return cmd.Help()
			}

			inputFile, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer func(inputFile *os.File) {
				err := inputFile.Close()
				if err != nil {
					log.Fatalf("Failed to close input file: %v", err)
				}
			}(inputFile)

			csvContent, err := csv.NewReader(inputFile).ReadAll()
			if err != nil {
				return err
			}

			payments, err := ParseCSVToPayments(csvContent)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(payments) == 0 {
				return fmt.Errorf("no valid expenses found in the CSV")
			}

			plan, unsettled, err := settle.SharePayments(payments, strings.TrimSuffix(inputPath, ".csv"))
			if err != nil {
				return fmt.Errorf("failed to build transfer plan: %w", err)
			}
			if unsettled > 0 {
				fmt.Printf("Warning: %.2f of the paid amounts is not covered by any share\n", unsettled)
			}

			outputFile, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			defer func(outputFile *os.File) {
				err := outputFile.Close()
				if err != nil {
					log.Fatalf("Failed to close output file: %v", err)
				}
			}(outputFile)

			_, err = outputFile.Write([]byte(plan.String()))
			if err != nil {
				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "csv input file path (required)")
	err := cmd.MarkFlagRequired("input")
	if err != nil {
		log.Fatal(err)
		return nil
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "csv output file path (required)")
	err = cmd.MarkFlagRequired("output")
	if err != nil {
		log.Fatal(err)
		return nil
	}

	return cmd
}

// ParseCSVToPayments parses CSV rows into settlement payments. Columns are
// name, amount, paidBy and a comma separated participant list; the amount is
// split evenly among the participants.
func ParseCSVToPayments(csvContent [][]string) ([]settle.Payment, error) {
	if len(csvContent) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]

	var payments []settle.Payment
	for i, row := range dataRows {
		if len(row) != 4 {
			return nil, fmt.Errorf("row %d: expected 4 columns, but got %d", i+2, len(row)) // +2 to account for the header row
		}

		amount, err := strconv.ParseFloat(row[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: failed to convert amount '%s' to float: %w", i+2, row[1], err)
		}

		participants := strings.Split(row[3], ",")
		for j := range participants {
			participants[j] = strings.TrimSpace(participants[j])
		}

		split, err := settle.EvenSplit(amount, participants)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		shares := make(map[string]float64, len(split))
		for participant, share := range split {
			shares[participant] = settle.TruncateCents(share)
		}

		payments = append(payments, settle.Payment{
			Name:   row[0],
			Amount: amount,
			PaidBy: strings.TrimSpace(row[2]),
			Shares: shares,
		})
	}

	return payments, nil
}
