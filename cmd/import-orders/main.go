package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/mmdatafocus/orders_importer/config"
	"bitbucket.org/mmdatafocus/orders_importer/importer"
	"bitbucket.org/mmdatafocus/orders_importer/models"
)

func main() {
	dir := flag.String("dir", "", "Required: directory containing .xlsx order exports")
	replaceItems := flag.Bool("replace-items", false, "Delete each order's existing items before inserting (makes reruns idempotent for items)")
	flag.Parse()

	if strings.TrimSpace(*dir) == "" {
		fmt.Fprintln(os.Stderr, "--dir is required")
		os.Exit(1)
	}

	if err := config.ConnectDatabase(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	db := config.GetDB()

	if err := models.MigrateTable(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate tables: %v\n", err)
		os.Exit(1)
	}

	err := importer.Run(db, config.GetLogger(), strings.TrimSpace(*dir), importer.Options{
		ReplaceItems: *replaceItems,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
