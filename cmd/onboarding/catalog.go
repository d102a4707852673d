package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/insurewright/onboarding/internal/catalog"
)

var catalogFile string

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Work with the decision catalog",
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the embedded catalog, or a catalog file, for structural errors",
	Args:  cobra.NoArgs,
	RunE:  runCatalogValidate,
}

func init() {
	catalogValidateCmd.Flags().StringVar(&catalogFile, "file", "", "Validate this YAML catalog instead of the embedded one")
	catalogCmd.AddCommand(catalogValidateCmd)
}

func runCatalogValidate(cmd *cobra.Command, args []string) error {
	var (
		cat    *catalog.Catalog
		source = "embedded catalog"
	)
	if catalogFile == "" {
		cat = catalog.Default()
	} else {
		data, err := os.ReadFile(catalogFile)
		if err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
		if cat, err = catalog.Load(data); err != nil {
			return fmt.Errorf("%s: %w", catalogFile, err)
		}
		source = catalogFile
	}

	if err := cat.Validate(); err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"valid":      true,
			"source":     source,
			"categories": len(cat.Categories()),
			"decisions":  cat.Len(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s OK: %d categories, %d decisions\n", source, len(cat.Categories()), cat.Len())
	return nil
}
