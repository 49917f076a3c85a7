package output_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/apache/arrow/go/v16/arrow/array"
	"github.com/apache/arrow/go/v16/arrow/memory"
	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/apache/arrow/go/v16/parquet/pqarrow"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/output"
	"github.com/cvmtools/cvmquery/internal/test"
	"github.com/paulmach/orb"
	orbjson "github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subset(names ...string) []*model.ValueSpec {
	metadata := model.DefaultMetadata()
	specs := []*model.ValueSpec{}
	for _, name := range names {
		specs = append(specs, metadata.Values[metadata.ValueIndex(name)])
	}
	return specs
}

func TestTextWriter(t *testing.T) {
	buffer := &bytes.Buffer{}
	writer := output.NewTextWriter(buffer, model.DefaultValues())

	loc := geo.Location{Lon: -122.5, Lat: 37.25, Elev: -1500}
	require.NoError(t, writer.Write(loc, []float64{5000, 2887, 2600.5, 250, 125, 1500, 3.9, -2}))
	nodata := []float64{-999, -999, -999, -999, -999, -999, -999, -999}
	require.NoError(t, writer.Write(geo.Location{Lon: 0, Lat: 0, Elev: 0}, nodata))
	require.NoError(t, writer.Close())

	expected := test.Dedent(`
		-122.5000 37.2500  -1500.0  5000.0  2887.0  2600.5    250.0    125.0   1500.0   3  -2
		   0.0000  0.0000      0.0  -999.0  -999.0  -999.0   -999.0   -999.0   -999.0-999-999
	`)
	assert.Equal(t, expected, buffer.String())
}

func TestTextWriterSubset(t *testing.T) {
	buffer := &bytes.Buffer{}
	writer := output.NewTextWriter(buffer, subset(model.ValueFaultBlock, model.ValueZone))

	require.NoError(t, writer.Write(geo.Location{Lon: -121.9, Lat: 37.1, Elev: -1500}, []float64{1, 12}))
	require.NoError(t, writer.Close())

	assert.Equal(t, "-121.9000 37.1000  -1500.0   1  12\n", buffer.String())
}

func TestTextWriterCustomValues(t *testing.T) {
	buffer := &bytes.Buffer{}
	specs := []*model.ValueSpec{
		{Name: "Temperature", Type: model.ValueTypeFloat},
		{Name: "Unit", Type: model.ValueTypeInt},
	}
	writer := output.NewTextWriter(buffer, specs)

	require.NoError(t, writer.Write(geo.Location{}, []float64{12.25, 7}))
	require.NoError(t, writer.Close())

	assert.Equal(t, "   0.0000  0.0000      0.0     12.2   7\n", buffer.String())
}

func TestTextWriterLengthMismatch(t *testing.T) {
	writer := output.NewTextWriter(io.Discard, model.DefaultValues())
	assert.ErrorContains(t, writer.Write(geo.Location{}, []float64{1}), "expected 8 values, got 1")
}

func TestGeoJSONWriter(t *testing.T) {
	buffer := &bytes.Buffer{}
	writer := output.NewGeoJSONWriter(buffer, subset(model.ValueVp, model.ValueZone))

	require.NoError(t, writer.Write(geo.Location{Lon: -122, Lat: 37, Elev: -10}, []float64{1500.5, 3}))
	require.NoError(t, writer.Write(geo.Location{Lon: -121, Lat: 38, Elev: 0}, []float64{-999, -999}))
	require.NoError(t, writer.Close())

	collection, err := orbjson.UnmarshalFeatureCollection(buffer.Bytes())
	require.NoError(t, err)
	require.Len(t, collection.Features, 2)

	first := collection.Features[0]
	assert.Equal(t, orb.Point{-122, 37}, first.Geometry)
	assert.Equal(t, -10.0, first.Properties["elevation"])
	assert.Equal(t, 1500.5, first.Properties["Vp"])
	assert.Equal(t, 3.0, first.Properties["Zone"])

	assert.Equal(t, -999.0, collection.Features[1].Properties["Vp"])
}

func TestGeoJSONWriterEmpty(t *testing.T) {
	buffer := &bytes.Buffer{}
	writer := output.NewGeoJSONWriter(buffer, model.DefaultValues())
	require.NoError(t, writer.Close())
	require.NoError(t, writer.Close())

	collection := map[string]any{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &collection))
	assert.Equal(t, "FeatureCollection", collection["type"])
	assert.Empty(t, collection["features"])
}

func TestParquetWriter(t *testing.T) {
	buffer := &bytes.Buffer{}
	writer, err := output.NewParquetWriter(buffer, subset(model.ValueVs, model.ValueFaultBlock), "snappy")
	require.NoError(t, err)

	require.NoError(t, writer.Write(geo.Location{Lon: -122, Lat: 37, Elev: -10}, []float64{800, 2}))
	require.NoError(t, writer.Write(geo.Location{Lon: -121, Lat: 38, Elev: -20}, []float64{-999, -999}))
	require.NoError(t, writer.Close())

	fileReader, err := file.NewParquetReader(bytes.NewReader(buffer.Bytes()))
	require.NoError(t, err)
	defer fileReader.Close()

	assert.Equal(t, int64(2), fileReader.NumRows())
	valuesMetadata := fileReader.MetaData().KeyValueMetadata().FindValue(output.ValuesMetadataKey)
	require.NotNil(t, valuesMetadata)
	assert.Contains(t, *valuesMetadata, `"name":"FaultBlock"`)

	arrowReader, err := pqarrow.NewFileReader(fileReader, pqarrow.ArrowReadProperties{}, memory.DefaultAllocator)
	require.NoError(t, err)
	table, err := arrowReader.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	schema := table.Schema()
	assert.Equal(t, []string{"lon", "lat", "elev", "Vs", "FaultBlock"}, []string{
		schema.Field(0).Name,
		schema.Field(1).Name,
		schema.Field(2).Name,
		schema.Field(3).Name,
		schema.Field(4).Name,
	})

	vs := table.Column(3).Data().Chunk(0).(*array.Float64)
	assert.Equal(t, []float64{800, -999}, vs.Float64Values())
	faultBlock := table.Column(4).Data().Chunk(0).(*array.Int32)
	assert.Equal(t, []int32{2, -999}, faultBlock.Int32Values())
}

func TestNewWriter(t *testing.T) {
	for _, format := range output.Formats {
		writer, err := output.NewWriter(&output.Config{Format: format, Writer: &bytes.Buffer{}, Values: model.DefaultValues()})
		require.NoError(t, err, format)
		require.NoError(t, writer.Close())
	}

	writer, err := output.NewWriter(&output.Config{Writer: io.Discard, Values: model.DefaultValues()})
	require.NoError(t, err)
	_, ok := writer.(*output.TextWriter)
	assert.True(t, ok)

	_, err = output.NewWriter(&output.Config{Format: "csv", Writer: io.Discard})
	assert.ErrorContains(t, err, `unsupported output format "csv"`)

	_, err = output.NewWriter(&output.Config{
		Format: output.FormatParquet,
		Writer: io.Discard,
		Values: []*model.ValueSpec{{Name: "lon", Type: model.ValueTypeFloat}},
	})
	assert.ErrorContains(t, err, `value name "lon" is reserved`)
}
