// Package export renders snapshots of the product collection for download.
package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/gocarina/gocsv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"product-inventory-service/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format is an export file format.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ParseFormat maps a user supplied name to a Format, defaulting to JSON.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("export: unsupported format %q", s)
	}
}

// FileName is the download name for a format.
func (f Format) FileName() string {
	return "products." + string(f)
}

// ContentType is the MIME type served for a format.
func (f Format) ContentType() string {
	if f == FormatCSV {
		return "text/csv"
	}
	return "application/json"
}

// Sink receives a rendered export file. It stands in for the host's
// save-file mechanism.
type Sink interface {
	Deliver(ctx context.Context, filename string, data []byte) error
}

// DirSink writes export files into a directory.
type DirSink struct {
	Dir string
}

func (s DirSink) Deliver(_ context.Context, filename string, data []byte) error {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return fmt.Errorf("export: failed to create export directory %s: %w", s.Dir, err)
	}
	target := filepath.Join(s.Dir, filename)
	tmp, err := os.CreateTemp(s.Dir, "."+filename+"-*.tmp")
	if err != nil {
		return fmt.Errorf("export: failed to create temp file for %s: %w", target, err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export: failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("export: failed to set mode on %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return fmt.Errorf("export: failed to move %s into place: %w", target, err)
	}
	return nil
}

// WriterSink copies every export into W, e.g. stdout when EXPORT_DIR is "-".
// Concurrent deliveries are not interleaved.
type WriterSink struct {
	mu sync.Mutex
	W  io.Writer
}

func (s *WriterSink) Deliver(_ context.Context, _ string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.W.Write(data)
	return err
}

// Exporter renders the collection in a fixed format and hands it to a Sink.
type Exporter struct {
	sink   Sink
	format Format
}

// NewExporter creates an Exporter delivering format files to sink. An empty
// format selects JSON.
func NewExporter(sink Sink, format Format) *Exporter {
	if format == "" {
		format = FormatJSON
	}
	return &Exporter{sink: sink, format: format}
}

// Format returns the format the Exporter renders.
func (e *Exporter) Format() Format {
	return e.format
}

// Export renders products and delivers the file.
func (e *Exporter) Export(ctx context.Context, products []domain.Product) error {
	data, err := Render(e.format, products)
	if err != nil {
		return err
	}
	name := e.format.FileName()
	if err := e.sink.Deliver(ctx, name, data); err != nil {
		return fmt.Errorf("export: delivery of %s failed: %w", name, err)
	}
	zap.L().Info("products exported", zap.String("file", name), zap.Int("count", len(products)))
	return nil
}

// Render encodes products in the given format.
func Render(format Format, products []domain.Product) ([]byte, error) {
	if products == nil {
		products = []domain.Product{}
	}
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(products, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("export: failed to encode JSON: %w", err)
		}
		return data, nil
	case FormatCSV:
		rows := make([]csvRow, 0, len(products))
		for _, p := range products {
			rows = append(rows, toCSVRow(p))
		}
		data, err := gocsv.MarshalString(&rows)
		if err != nil {
			return nil, fmt.Errorf("export: failed to encode CSV: %w", err)
		}
		return []byte(data), nil
	default:
		return nil, fmt.Errorf("export: unsupported format %q", format)
	}
}

// csvRow flattens a product for spreadsheets. Images and extensions are left out.
type csvRow struct {
	ID        string `csv:"id"`
	Name      string `csv:"name"`
	Brand     string `csv:"brand"`
	Category  string `csv:"category"`
	Model     string `csv:"model"`
	Storage   string `csv:"storage"`
	Color     string `csv:"color"`
	Source    string `csv:"source"`
	Warranty  string `csv:"warranty"`
	IMEI      string `csv:"imei"`
	Serial    string `csv:"serial"`
	Notes     string `csv:"notes"`
	CostPrice string `csv:"costPrice"`
	SalePrice string `csv:"salePrice"`
	QtyOnHand int    `csv:"qtyOnHand"`
	Status    string `csv:"status"`
}

func toCSVRow(p domain.Product) csvRow {
	return csvRow{
		ID:        p.ID,
		Name:      p.Name,
		Brand:     p.Brand,
		Category:  p.Category,
		Model:     p.Model,
		Storage:   p.Storage,
		Color:     p.Color,
		Source:    p.Source,
		Warranty:  p.Warranty,
		IMEI:      p.IMEI,
		Serial:    p.Serial,
		Notes:     p.Notes,
		CostPrice: formatPrice(p.CostPrice),
		SalePrice: formatPrice(p.SalePrice),
		QtyOnHand: p.QtyOnHand,
		Status:    string(p.Status),
	}
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
