package csvsource

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"tradeledger/internal/domain"
	"tradeledger/internal/ports"
)

// timeLayout matches broker exports: local date-time with second precision.
const timeLayout = "2006-01-02 15:04:05"

// expected CSV header, in order.
var header = []string{"exec_id", "instrument", "account", "side", "quantity", "price", "time", "commission"}

// Source reads broker execution records from a CSV export file.
// Implements ports.ExecutionSource.
type Source struct {
	path   string
	logger ports.Logger
}

// New creates a CSV execution source for the given file.
func New(path string, logger ports.Logger) (*Source, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for CSV source")
	}
	if path == "" {
		return nil, fmt.Errorf("path is required for CSV source")
	}
	return &Source{path: path, logger: logger}, nil
}

// Executions parses the whole file. A malformed row fails the call with a
// ValidationError naming the offending field and raw record; no partial
// output is returned.
func (s *Source) Executions(ctx context.Context) ([]*domain.Execution, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV source %q: %w", s.path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header from %q: %w", s.path, err)
	}
	if err := checkHeader(first); err != nil {
		return nil, err
	}

	sourceFile := filepath.Base(s.path)
	var execs []*domain.Execution
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row from %q: %w", s.path, err)
		}
		exec, err := parseRow(row, sourceFile)
		if err != nil {
			return nil, err
		}
		execs = append(execs, exec)
	}

	s.logger.Info(ctx, "Parsed execution records from CSV", map[string]interface{}{
		"file":  sourceFile,
		"count": len(execs),
	})
	return execs, nil
}

func checkHeader(got []string) error {
	if len(got) != len(header) {
		return &ports.ValidationError{Field: "header", Record: strings.Join(got, ",")}
	}
	for i, want := range header {
		if !strings.EqualFold(strings.TrimSpace(got[i]), want) {
			return &ports.ValidationError{Field: "header", Record: strings.Join(got, ",")}
		}
	}
	return nil
}

func parseRow(row []string, sourceFile string) (*domain.Execution, error) {
	record := strings.Join(row, ",")
	if len(row) != len(header) {
		return nil, &ports.ValidationError{Field: "row", Record: record}
	}

	quantity, err := strconv.ParseInt(strings.TrimSpace(row[4]), 10, 64)
	if err != nil {
		return nil, &ports.ValidationError{Field: "quantity", Record: record}
	}
	price, err := decimal.NewFromString(strings.TrimSpace(row[5]))
	if err != nil {
		return nil, &ports.ValidationError{Field: "price", Record: record}
	}
	ts, err := time.Parse(timeLayout, strings.TrimSpace(row[6]))
	if err != nil {
		return nil, &ports.ValidationError{Field: "time", Record: record}
	}
	commission := decimal.Zero
	if raw := strings.TrimSpace(row[7]); raw != "" {
		if commission, err = decimal.NewFromString(raw); err != nil {
			return nil, &ports.ValidationError{Field: "commission", Record: record}
		}
	}

	var side domain.OrderSide
	switch strings.ToUpper(strings.TrimSpace(row[3])) {
	case "BUY", "B":
		side = domain.Buy
	case "SELL", "S":
		side = domain.Sell
	default:
		return nil, &ports.ValidationError{Field: "side", Record: record}
	}

	return &domain.Execution{
		BrokerExecID: strings.TrimSpace(row[0]),
		Instrument:   strings.TrimSpace(row[1]),
		Account:      strings.TrimSpace(row[2]),
		Side:         side,
		Quantity:     quantity,
		Price:        price,
		Time:         ts,
		Commission:   commission,
		SourceFile:   sourceFile,
	}, nil
}
