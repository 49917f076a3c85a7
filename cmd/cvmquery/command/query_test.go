package command_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/test"
)

const locations = `
-121.9  37.1 -1500
-121.6  37.4  -500
-121.1  37.9  -100
`

func (s *Suite) readLines(path string) []string {
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func (s *Suite) extendedModel() string {
	grid := test.Grid{
		Bounds: geo.Box{Xmin: -124, Ymin: 36, Zmin: -5000, Xmax: -120, Ymax: 39, Zmax: 0},
		Nx:     1,
		Ny:     1,
		Nz:     1,
	}
	blocks := test.GridBlocks(grid, func(i, j, k int) []float64 {
		return []float64{9001, 9002, 9003, 9004, 9005, 9006, 90, 91}
	})
	return test.ModelFile(s.T(), model.DefaultMetadata(), blocks, 0)
}

func fullLine(lon, lat, elev float64, base float64, faultBlock, zone int) string {
	return fmt.Sprintf("%9.4f%8.4f%9.1f%8.1f%8.1f%8.1f%9.1f%9.1f%9.1f%4d%4d",
		lon, lat, elev, base+1, base+2, base+3, base+4, base+5, base+6, faultBlock, zone)
}

func (s *Suite) TestQuery() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database))

	lines := s.readLines(output)
	s.Require().Len(lines, 3)
	s.Equal("-121.9000 37.1000  -1500.0     1.0     2.0     3.0      4.0      5.0      6.0   1   1", lines[0])
	s.Equal(fullLine(-121.6, 37.4, -500, 1110, 2, 2), lines[1])
	s.Equal(fullLine(-121.1, 37.9, -100, 1330, 4, 4), lines[2])
	s.Empty(s.readStderr())
}

func (s *Suite) TestQueryCommandName() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("query", "--input", input, "--output", output, "--database", database))
	s.Len(s.readLines(output), 3)
}

func (s *Suite) TestQueryValueSubset() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database, "--values", "FaultBlock,Zone"))

	lines := s.readLines(output)
	s.Require().Len(lines, 3)
	s.Equal("-121.9000 37.1000  -1500.0   1   1", lines[0])
	s.Equal("-121.6000 37.4000   -500.0   2   2", lines[1])
	s.Equal("-121.1000 37.9000   -100.0   4   4", lines[2])
}

func (s *Suite) TestQueryNotFound() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", `
		-121.9 37.1 -1500
		-100.0 37.1 -1500
		-121.6 37.4 -500
	`)
	output := s.tempPath("values.txt")
	logFile := s.tempPath("query.log")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database, "-l", logFile, "--values", "Vp,Zone"))

	lines := s.readLines(output)
	s.Require().Len(lines, 3)
	s.Equal("-100.0000 37.1000  -1500.0  -999.0-999", lines[1])
	s.Equal("-121.6000 37.4000   -500.0  1111.0   2", lines[2])

	stderr := s.readStderr()
	s.Contains(stderr, "Could not find location")
	s.Equal(1, strings.Count(stderr, "Could not find location"))

	logData, err := os.ReadFile(logFile)
	s.Require().NoError(err)
	s.Contains(string(logData), "Could not find location")
}

func (s *Suite) TestQueryMissingDatabase() {
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output))
	stderr := s.readStderr()
	s.Contains(stderr, "missing flags: --database")
	s.Contains(stderr, "Usage: cvmquery")
}

func (s *Suite) TestQueryMissingOutput() {
	input := s.writeTemp("locations.txt", locations)

	s.Equal(1, s.run("-i", input, "-d", "model.parquet"))
	stderr := s.readStderr()
	s.Contains(stderr, "--output")
	s.Contains(stderr, "Usage: cvmquery")
}

func (s *Suite) TestQueryExtraArgument() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database, "extra"))
	s.Contains(s.readStderr(), "Usage: cvmquery")
}

func (s *Suite) TestQueryMissingInputFile() {
	database := test.GridModelFile(s.T(), 4)
	input := s.tempPath("missing.txt")
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database))
	s.Contains(s.readStderr(), "could not open input file")
}

func (s *Suite) TestQueryMissingDatabaseFile() {
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", s.tempPath("missing.parquet")))
	s.Contains(s.readStderr(), "Could not open velocity model database")
	s.NoFileExists(output)
}

// damageRowGroup zeroes the column chunks of the row group whose extent
// contains p.  The footer is left intact so the model still opens.
func (s *Suite) damageRowGroup(data []byte, p geo.Point) []byte {
	fileReader, err := file.NewParquetReader(bytes.NewReader(data))
	s.Require().NoError(err)
	defer func() { _ = fileReader.Close() }()

	damaged := bytes.Clone(data)
	count := 0
	for i := 0; i < fileReader.NumRowGroups(); i += 1 {
		box, err := model.RowGroupBox(fileReader.MetaData(), i)
		s.Require().NoError(err)
		if !box.ContainsHalfOpen(p) {
			continue
		}
		count += 1
		rowGroup := fileReader.MetaData().RowGroup(i)
		for c := 0; c < rowGroup.NumColumns(); c += 1 {
			chunk, err := rowGroup.ColumnChunk(c)
			s.Require().NoError(err)
			start := chunk.DataPageOffset()
			if chunk.HasDictionaryPage() && chunk.DictionaryPageOffset() < start {
				start = chunk.DictionaryPageOffset()
			}
			clear(damaged[start : start+chunk.TotalCompressedSize()])
		}
	}
	s.Require().Equal(1, count)
	return damaged
}

func (s *Suite) TestQueryReadErrorIsFatal() {
	data, err := os.ReadFile(test.GridModelFile(s.T(), 4))
	s.Require().NoError(err)
	database := s.writeTemp("damaged.parquet", string(s.damageRowGroup(data, geo.Point{X: -121.1, Y: 37.9, Z: -100})))
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")
	logFile := s.tempPath("query.log")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database, "-l", logFile))

	stderr := s.readStderr()
	s.Contains(stderr, "cvmquery: error: Error querying location")
	s.NotContains(stderr, "Usage:")

	// locations before the failure are flushed
	s.Equal([]string{
		fullLine(-121.9, 37.1, -1500, 0, 1, 1),
		fullLine(-121.6, 37.4, -500, 1110, 2, 2),
	}, s.readLines(output))

	logData, err := os.ReadFile(logFile)
	s.Require().NoError(err)
	s.Contains(string(logData), "Error querying location")
}

func (s *Suite) TestQueryUnknownValue() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database, "--values", "Vp,Temperature"))
	s.Contains(s.readStderr(), "value 'Temperature' not found")
}

func (s *Suite) TestQueryMalformedInput() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", "-121.9 37.1 -1500\n-121.6 north -500\n")
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database))
	s.Contains(s.readStderr(), `location 2: invalid number "north"`)
	s.Len(s.readLines(output), 1)
}

func (s *Suite) TestQueryIncompleteLocation() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", "-121.9 37.1 -1500\n-121.6 37.4\n")
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database))
	s.Contains(s.readStderr(), "expected longitude, latitude and elevation")
}

func (s *Suite) TestQueryEmptyInput() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", "\n")
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database))
	data, err := os.ReadFile(output)
	s.Require().NoError(err)
	s.Empty(data)
}

func (s *Suite) TestQueryUnknownQueryType() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Equal(1, s.run("-i", input, "-o", output, "-d", database, "--query-type", "lowres"))
	s.Contains(s.readStderr(), "unknown query type 'lowres'")
}

func (s *Suite) TestQueryFixedRes() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", "-121.9 37.1 -1500\n")
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database, "--query-type", "fixedres", "--resolution", "100", "--values", "Vp"))
	s.Equal([]string{"-121.9000 37.1000  -1500.0     1.0"}, s.readLines(output))
}

func (s *Suite) TestQueryGeoJSON() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.geojson")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database, "--format", "geojson", "--values", "Vp,Zone"))

	data, err := os.ReadFile(output)
	s.Require().NoError(err)

	collection := struct {
		Type     string `json:"type"`
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}{}
	s.Require().NoError(json.Unmarshal(data, &collection))
	s.Equal("FeatureCollection", collection.Type)
	s.Require().Len(collection.Features, 3)
	s.Equal(1.0, collection.Features[0].Properties["Vp"])
	s.Equal(-1500.0, collection.Features[0].Properties["elevation"])
}

func (s *Suite) TestQueryParquet() {
	database := test.GridModelFile(s.T(), 4)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.parquet")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database, "--format", "parquet", "--compression", "snappy"))

	data, err := os.ReadFile(output)
	s.Require().NoError(err)
	fileReader, err := file.NewParquetReader(bytes.NewReader(data))
	s.Require().NoError(err)
	defer fileReader.Close()

	s.Equal(int64(3), fileReader.NumRows())
	s.Equal(11, fileReader.MetaData().Schema.NumColumns())
}

func (s *Suite) TestQueryConfigFile() {
	database := test.GridModelFile(s.T(), 4)
	configFile := s.writeTemp("cvmquery.yaml", fmt.Sprintf(`
query:
  database: %s
  values: [FaultBlock, Zone]
`, database))
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("--config", configFile, "-i", input, "-o", output))
	lines := s.readLines(output)
	s.Require().Len(lines, 3)
	s.Equal("-121.9000 37.1000  -1500.0   1   1", lines[0])
}

func (s *Suite) TestQueryFlagsOverrideConfig() {
	database := test.GridModelFile(s.T(), 4)
	configFile := s.writeTemp("cvmquery.yaml", `
query:
  database: missing.parquet
  values: [FaultBlock, Zone]
`)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("--config", configFile, "-i", input, "-o", output, "-d", database, "--values", "Zone"))
	lines := s.readLines(output)
	s.Require().Len(lines, 3)
	s.Equal("-121.9000 37.1000  -1500.0   1", lines[0])
}

func (s *Suite) TestQueryEnvironment() {
	database := test.GridModelFile(s.T(), 4)
	s.T().Setenv("CVMQUERY_QUERY_DATABASE", database)
	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("-i", input, "-o", output))
	s.Len(s.readLines(output), 3)
}

func (s *Suite) TestQueryRemoteDatabase() {
	database := test.GridModelFile(s.T(), 4)
	server := httptest.NewServer(http.FileServer(http.Dir(filepath.Dir(database))))
	defer server.Close()

	input := s.writeTemp("locations.txt", locations)
	output := s.tempPath("values.txt")

	url := server.URL + "/" + filepath.Base(database)
	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", url))
	lines := s.readLines(output)
	s.Require().Len(lines, 3)
	s.Equal(fullLine(-121.9, 37.1, -1500, 0, 1, 1), lines[0])
}

func (s *Suite) TestQueryExtendedDatabase() {
	database := test.GridModelFile(s.T(), 4)
	extended := s.extendedModel()
	input := s.writeTemp("locations.txt", "-121.9 37.1 -1500\n-123.0 37.1 -1500\n")
	output := s.tempPath("values.txt")

	s.Require().Equal(0, s.run("-i", input, "-o", output, "-d", database, "-e", extended, "--values", "Vp"))
	s.Equal([]string{
		"-121.9000 37.1000  -1500.0     1.0",
		"-123.0000 37.1000  -1500.0  9001.0",
	}, s.readLines(output))
	s.Empty(s.readStderr())
}
