// Package importer drives the per-file pipeline: read a workbook, parse its
// rows, hand the batch to the store, and report completion.
package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/orders_importer/models"
	"bitbucket.org/mmdatafocus/orders_importer/parser"
	"bitbucket.org/mmdatafocus/orders_importer/utils"
)

const fileSuffix = ".xlsx"

// phoneRegion is the country code used for the warn-only phone plausibility
// check; the export's phone numbers are local Russian numbers.
const phoneRegion = "RU"

type Options struct {
	Layout       parser.Layout
	ReplaceItems bool
}

type Stats struct {
	Orders int
	Items  int
}

// ReadFile opens one workbook and parses the first sheet into order and item
// records. Errors carry the file name; an open/read failure is an I/O problem
// with that file only.
func ReadFile(layout parser.Layout, path string) ([]models.Order, []models.Item, error) {
	name := filepath.Base(path)

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to open workbook: %v", name, err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: unable to read sheet: %v", name, err)
	}

	if len(rows) <= layout.HeaderRows {
		return nil, nil, nil
	}
	rows = padRows(rows[layout.HeaderRows:], layout.Width())

	orders, items, err := parser.ParseRows(layout, rows)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %v", name, err)
	}
	return orders, items, nil
}

// padRows widens rows to the layout width. GetRows drops trailing blank
// cells, so a row whose last populated column sits left of the layout's
// rightmost column comes back short; the missing cells are empty, not a
// format violation.
func padRows(rows [][]string, width int) [][]string {
	for i, cells := range rows {
		if len(cells) >= width {
			continue
		}
		padded := make([]string, width)
		copy(padded, cells)
		rows[i] = padded
	}
	return rows
}

// Run processes every workbook in dir, in name order. A file that cannot be
// read or parsed is logged and skipped; a store failure aborts the run, since
// nothing after it could be persisted either. Returns an error if any file
// failed.
func Run(db *gorm.DB, log *logrus.Logger, dir string, opts Options) error {
	layout := opts.Layout
	if layout.Width() <= 1 {
		layout = parser.DefaultLayout()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("unable to read directory %s: %v", dir, err)
	}

	runID := uuid.NewString()
	failed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileSuffix) {
			continue
		}

		orders, items, err := ReadFile(layout, filepath.Join(dir, entry.Name()))
		if err != nil {
			log.WithFields(logrus.Fields{
				"runId": runID,
				"file":  entry.Name(),
			}).Error(err.Error())
			failed++
			continue
		}

		warnImplausiblePhones(log, runID, entry.Name(), orders)

		err = models.SaveImportBatch(db, orders, items, models.SaveOptions{ReplaceItems: opts.ReplaceItems})
		if err != nil {
			return fmt.Errorf("%s: %v", entry.Name(), err)
		}

		fmt.Printf("Processed %s\n", entry.Name())
		log.WithFields(logrus.Fields{
			"runId":  runID,
			"file":   entry.Name(),
			"orders": len(orders),
			"items":  len(items),
		}).Info("file imported")
	}

	if failed > 0 {
		return fmt.Errorf("%d file(s) failed", failed)
	}
	return nil
}

// warnImplausiblePhones flags extracted phone numbers that do not parse as
// real numbers. Extraction keeps the value either way; the warning exists so
// an operator can spot a shifted column before the bad data spreads.
func warnImplausiblePhones(log *logrus.Logger, runID, file string, orders []models.Order) {
	for _, o := range orders {
		phone := utils.DereferencePtr(o.PhoneNumber)
		if phone == "" {
			continue
		}
		if err := utils.ValidatePhoneNumber(phone, phoneRegion); err != nil {
			log.WithFields(logrus.Fields{
				"runId":   runID,
				"file":    file,
				"orderId": o.OrderID,
				"phone":   phone,
			}).Warn("phone number failed plausibility check")
		}
	}
}
