package export

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"product-inventory-service/internal/domain"
)

func PtrTo[T any](v T) *T {
	return &v
}

func sample() []domain.Product {
	return []domain.Product{
		{ID: "prod-1", Name: "Pixel 8", Brand: "Google", Category: "Phones", CostPrice: PtrTo(380.0), SalePrice: PtrTo(499.5), QtyOnHand: 1, Status: domain.StatusLowStock},
		{ID: "prod-2", Name: "Cable, USB-C", Category: "Accessories", QtyOnHand: 12, Status: domain.StatusInStock, Image: "data:image/png;base64,AAAA"},
	}
}

type failingSink struct{}

func (failingSink) Deliver(context.Context, string, []byte) error { return errors.New("download blocked") }

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	f, err = ParseFormat("csv")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	assert.Equal(t, "products.csv", f.FileName())
	assert.Equal(t, "text/csv", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestRender_JSON(t *testing.T) {
	data, err := Render(FormatJSON, sample())
	require.NoError(t, err)

	text := string(data)
	assert.True(t, strings.HasPrefix(text, "[\n  {\n"), text)

	var decoded []domain.Product
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sample(), decoded)
}

func TestRender_JSONIsStable(t *testing.T) {
	a, err := Render(FormatJSON, sample())
	require.NoError(t, err)
	b, err := Render(FormatJSON, sample())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRender_EmptyCollection(t *testing.T) {
	data, err := Render(FormatJSON, nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestRender_CSV(t *testing.T) {
	data, err := Render(FormatCSV, sample())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,name,brand,category,model,storage,color,source,warranty,imei,serial,notes,costPrice,salePrice,qtyOnHand,status", lines[0])
	assert.Equal(t, "prod-1,Pixel 8,Google,Phones,,,,,,,,,380,499.5,1,Low Stock", lines[1])
	assert.Equal(t, `prod-2,"Cable, USB-C",,Accessories,,,,,,,,,,,12,In Stock`, lines[2])
}

func TestExporter_DirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sink := DirSink{Dir: dir}

	require.NoError(t, NewExporter(sink, "").Export(context.Background(), sample()))
	require.NoError(t, NewExporter(sink, FormatCSV).Export(context.Background(), sample()))

	data, err := os.ReadFile(filepath.Join(dir, "products.json"))
	require.NoError(t, err)
	want, err := Render(FormatJSON, sample())
	require.NoError(t, err)
	assert.Equal(t, want, data)

	_, err = os.Stat(filepath.Join(dir, "products.csv"))
	assert.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temp files are left behind")
}

func TestDirSink_ConcurrentDeliveries(t *testing.T) {
	dir := t.TempDir()
	e := NewExporter(DirSink{Dir: dir}, FormatJSON)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			products := []domain.Product{{ID: fmt.Sprintf("prod-%d", i), Name: "Item", Status: domain.StatusLowStock}}
			errs <- e.Export(context.Background(), products)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "products.json"))
	require.NoError(t, err)
	var decoded []domain.Product
	require.NoError(t, json.Unmarshal(data, &decoded), "the final file is one complete snapshot")
	assert.Len(t, decoded, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestExporter_WriterSink(t *testing.T) {
	var buf bytes.Buffer
	e := NewExporter(&WriterSink{W: &buf}, FormatCSV)

	require.NoError(t, e.Export(context.Background(), sample()))
	assert.Equal(t, FormatCSV, e.Format())
	assert.True(t, strings.HasPrefix(buf.String(), "id,name,brand"))
}

func TestExporter_SinkFailure(t *testing.T) {
	e := NewExporter(failingSink{}, FormatJSON)

	err := e.Export(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "download blocked")
	assert.Contains(t, err.Error(), "products.json")
}
