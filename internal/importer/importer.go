// Package importer loads bank statement CSV files into the store.
//
// Statement lines enter the system either by manual entry or by bank
// import; this package is the import half. It tolerates the usual
// variety of bank exports: aliased column headers, mixed date formats
// and decorated amounts.
package importer

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"bank-reconciliation-engine/internal/models"
	"bank-reconciliation-engine/internal/store"
	"bank-reconciliation-engine/pkg/errors"
	"bank-reconciliation-engine/pkg/logger"
)

// Config controls how a statement CSV is interpreted
type Config struct {
	AmountColumn     string
	CurrencyColumn   string
	DateColumn       string
	PaymentRefColumn string
	NarrationColumn  string
	RefColumn        string
	PartnerColumn    string
	Delimiter        rune
	ColumnAliases    map[string]string
}

// DefaultConfig returns a configuration covering common bank exports
func DefaultConfig() *Config {
	return &Config{
		AmountColumn:     "amount",
		CurrencyColumn:   "currency",
		DateColumn:       "date",
		PaymentRefColumn: "payment_ref",
		NarrationColumn:  "narration",
		RefColumn:        "ref",
		PartnerColumn:    "partner_id",
		Delimiter:        ',',
		ColumnAliases: map[string]string{
			"amt":              "amount",
			"value":            "amount",
			"ccy":              "currency",
			"transaction_date": "date",
			"posting_date":     "date",
			"value_date":       "date",
			"label":            "payment_ref",
			"description":      "payment_ref",
			"memo":             "narration",
			"reference":        "ref",
			"partner":          "partner_id",
		},
	}
}

// Stats summarizes one import run
type Stats struct {
	RowsRead     int
	RowsImported int
	Errors       []error
}

// Importer parses statement CSV files and persists the resulting lines
type Importer struct {
	store  store.Store
	config *Config
	log    logger.Logger
}

// NewImporter creates a statement importer
func NewImporter(st store.Store, config *Config) *Importer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Importer{
		store:  st,
		config: config,
		log:    logger.WithComponent("importer"),
	}
}

// ImportFile parses the CSV at path and inserts its statement lines for
// the given company. Rows that fail to parse are collected in the stats
// and skipped; a missing required column fails the whole import.
func (imp *Importer) ImportFile(ctx context.Context, path string, companyID int64) (*Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, 0, "", "", err).
			WithSuggestion("check that the file exists and is readable")
	}
	defer file.Close()

	stats, lines, err := imp.parse(file, path, companyID)
	if err != nil {
		return stats, err
	}

	if len(lines) > 0 {
		if err := imp.store.InsertStatementLines(ctx, lines); err != nil {
			return stats, err
		}
	}
	stats.RowsImported = len(lines)

	imp.log.WithFields(logger.Fields{
		"file":     path,
		"read":     stats.RowsRead,
		"imported": stats.RowsImported,
		"errors":   len(stats.Errors),
	}).Info("statement import finished")

	return stats, nil
}

func (imp *Importer) parse(r io.Reader, path string, companyID int64) (*Stats, []*models.StatementLine, error) {
	reader := csv.NewReader(r)
	reader.Comma = imp.config.Delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return &Stats{}, nil, errors.ParseError(errors.CodeInvalidFormat, path, 1, "", "", err)
	}

	columns := imp.resolveColumns(header)
	for _, required := range []string{imp.config.AmountColumn, imp.config.CurrencyColumn, imp.config.DateColumn} {
		if _, ok := columns[required]; !ok {
			return &Stats{}, nil, errors.ParseError(errors.CodeMissingColumn, path, 1, required, "", nil)
		}
	}

	stats := &Stats{}
	var lines []*models.StatementLine
	lineNo := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		lineNo++
		if err != nil {
			stats.Errors = append(stats.Errors,
				errors.ParseError(errors.CodeInvalidFormat, path, lineNo, "", "", err))
			continue
		}
		stats.RowsRead++

		sl, parseErr := imp.parseRecord(record, columns, path, lineNo, companyID)
		if parseErr != nil {
			stats.Errors = append(stats.Errors, parseErr)
			continue
		}
		lines = append(lines, sl)
	}

	return stats, lines, nil
}

// resolveColumns maps canonical column names to record indexes,
// applying header aliases case-insensitively.
func (imp *Importer) resolveColumns(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := imp.config.ColumnAliases[name]; ok {
			name = canonical
		}
		if _, taken := columns[name]; !taken {
			columns[name] = i
		}
	}
	return columns
}

func (imp *Importer) parseRecord(record []string, columns map[string]int, path string, lineNo int, companyID int64) (*models.StatementLine, error) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	amount, err := models.ParseDecimalFromString(field(imp.config.AmountColumn))
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidData, path, lineNo,
			imp.config.AmountColumn, field(imp.config.AmountColumn), err)
	}

	date, err := models.ParseTimeWithFormats(field(imp.config.DateColumn))
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidData, path, lineNo,
			imp.config.DateColumn, field(imp.config.DateColumn), err)
	}

	var partnerID int64
	if raw := field(imp.config.PartnerColumn); raw != "" {
		partnerID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidData, path, lineNo,
				imp.config.PartnerColumn, raw, err)
		}
	}

	sl := &models.StatementLine{
		CompanyID:  companyID,
		PartnerID:  partnerID,
		Amount:     amount,
		Currency:   strings.ToUpper(field(imp.config.CurrencyColumn)),
		Date:       date,
		PaymentRef: field(imp.config.PaymentRefColumn),
		Narration:  field(imp.config.NarrationColumn),
		Ref:        field(imp.config.RefColumn),
	}

	if err := sl.Validate(); err != nil {
		return nil, errors.ParseError(errors.CodeInvalidData, path, lineNo, "",
			fmt.Sprintf("%v", record), err)
	}
	return sl, nil
}
