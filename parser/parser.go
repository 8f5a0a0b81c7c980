// Package parser turns the raw rows of a purchase-order export into Order
// and Item records.
//
// The export has no header the parser could validate against: the first
// HeaderRows rows are boilerplate and every data column is identified by
// position only. Classification is a two-state machine folded over the row
// sequence — either no order is active, or the most recent order-id row is
// the current order and non-order rows are its line items.
package parser

import (
	"fmt"
	"strings"

	"bitbucket.org/mmdatafocus/orders_importer/models"
	"bitbucket.org/mmdatafocus/orders_importer/utils"
)

const (
	// footerMarker flags subtotal/summary rows in the export ("Итого" is
	// Russian for "Total"); such rows carry no record data.
	footerMarker = "Итого"

	// excludedCodePrefix marks rows that look like product lines but are
	// reserved codes, never line items.
	excludedCodePrefix = "G000R"

	orderIDLen = 12
)

// Layout names the column positions of the fixed upstream export. The
// customer id lives in one of several candidate columns depending on how the
// row was filled in; CustomerIDCols is scanned in order and the first cell
// that parses as an integer wins.
type Layout struct {
	OrderIDCol     int
	NameCol        int
	CustomerIDCols []int
	PhoneCol       int
	QuantityCol    int
	HeaderRows     int
}

// DefaultLayout is the column order of the current export format.
func DefaultLayout() Layout {
	return Layout{
		OrderIDCol:     0,
		NameCol:        3,
		CustomerIDCols: []int{5, 6},
		PhoneCol:       7,
		QuantityCol:    8,
		HeaderRows:     9,
	}
}

// Width returns the cell count a row must have for every layout column to be
// addressable.
func (l Layout) Width() int {
	w := l.OrderIDCol
	for _, c := range []int{l.NameCol, l.PhoneCol, l.QuantityCol} {
		if c > w {
			w = c
		}
	}
	for _, c := range l.CustomerIDCols {
		if c > w {
			w = c
		}
	}
	return w + 1
}

// RowError reports a row too narrow for the layout. Column positions are a
// fixed contract with the upstream export, so a short row means the file does
// not follow the expected format and the whole file is rejected.
type RowError struct {
	Row   int // zero-based, relative to the first data row
	Cells int
	Want  int
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d has %d cells, layout needs %d", e.Row, e.Cells, e.Want)
}

// State is the classifier state: the zero value means no order is active yet,
// otherwise OrderID is the current order that item rows attach to.
type State struct {
	OrderID string
}

func (s State) Active() bool {
	return s.OrderID != ""
}

// IsOrderID reports whether a cell holds an order identifier: "R" followed by
// exactly 11 digits.
func IsOrderID(s string) bool {
	if len(s) != orderIDLen || s[0] != 'R' {
		return false
	}
	for i := 1; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// DateFromOrderID derives the order date encoded in the identifier:
// R<yy><mm><dd>.... The caller must have checked IsOrderID.
func DateFromOrderID(id string) string {
	return fmt.Sprintf("20%s-%s-%s", id[1:3], id[3:5], id[5:7])
}

// Step applies the classification policy to one row and returns the next
// state plus the record the row produced, if any. Rules, in order:
//
//  1. a footer/subtotal row (any cell containing the footer marker) is
//     skipped;
//  2. an order-id in the first cell starts a new order, replacing any
//     current one;
//  3. with an order active, a non-empty first cell that is neither an
//     order-id nor a reserved code is a line item of the current order;
//  4. anything else is dropped.
func Step(l Layout, s State, cells []string) (State, *models.Order, *models.Item) {
	for _, cell := range cells {
		if strings.Contains(cell, footerMarker) {
			return s, nil, nil
		}
	}

	first := cells[l.OrderIDCol]
	if IsOrderID(first) {
		order := &models.Order{
			OrderID:      first,
			CustomerName: utils.NilIfEmpty(cells[l.NameCol]),
			CustomerID:   scanCustomerID(l, cells),
			PhoneNumber:  extractPhone(cells[l.PhoneCol]),
			OrderDate:    DateFromOrderID(first),
		}
		return State{OrderID: first}, order, nil
	}

	if s.Active() && first != "" && !strings.HasPrefix(first, excludedCodePrefix) {
		item := &models.Item{
			OrderID:     s.OrderID,
			ProductCode: first,
			ProductName: utils.NilIfEmpty(cells[l.NameCol]),
			Quantity:    extractQuantity(cells[l.QuantityCol]),
		}
		return s, nil, item
	}

	return s, nil, nil
}

// ParseRows folds Step over the data rows of one file (header rows already
// skipped). Every row is width-validated up front; a short row fails the
// whole file with a RowError.
func ParseRows(l Layout, rows [][]string) ([]models.Order, []models.Item, error) {
	width := l.Width()
	for i, cells := range rows {
		if len(cells) < width {
			return nil, nil, &RowError{Row: i, Cells: len(cells), Want: width}
		}
	}

	var (
		orders []models.Order
		items  []models.Item
		state  State
	)
	for _, cells := range rows {
		next, order, item := Step(l, state, cells)
		state = next
		if order != nil {
			orders = append(orders, *order)
		}
		if item != nil {
			items = append(items, *item)
		}
	}
	return orders, items, nil
}

// scanCustomerID takes the first candidate column whose cell parses as an
// integer; none parsing means the id is absent, never an error.
func scanCustomerID(l Layout, cells []string) *int {
	for _, col := range l.CustomerIDCols {
		if id, ok := utils.ParseIntCell(cells[col]); ok {
			return &id
		}
	}
	return nil
}

// extractPhone truncates a phone cell at the first decimal point; spreadsheet
// exports render numeric phone cells as floats ("5551234.0").
func extractPhone(cell string) *string {
	if cell == "" {
		return nil
	}
	if i := strings.IndexByte(cell, '.'); i >= 0 {
		cell = cell[:i]
	}
	return &cell
}

func extractQuantity(cell string) int {
	qty, ok := utils.ParseIntCell(cell)
	if !ok {
		return 0
	}
	return qty
}
