package command_test

import (
	"bytes"
	"os"

	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/test"
)

const blocksCSV = `
xmin,ymin,zmin,xmax,ymax,zmax,Vp,Vs,FaultBlock,Temperature
-122.0,37.0,-1000,-121.5,37.5,0,5000,2900,3,12.5
-121.5,37.0,-1000,-121.0,37.5,0,5500,3100,4,13.5
`

func (s *Suite) readModel(path string) *model.Reader {
	data, err := os.ReadFile(path)
	s.Require().NoError(err)
	reader, err := model.NewReader(&model.ReaderConfig{Reader: bytes.NewReader(data)})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = reader.Close() })
	return reader
}

func (s *Suite) TestBuild() {
	input := s.writeTemp("blocks.csv", test.Dedent(blocksCSV))
	output := s.tempPath("model.parquet")

	s.Require().Equal(0, s.run("build", input, output, "--name", "tiny", "--units", "Temperature=C", "--row-group-length", "1"))

	reader := s.readModel(output)
	s.Equal(int64(2), reader.NumRows())
	s.Equal(2, reader.NumRowGroups())

	metadata := reader.Metadata()
	s.Equal("tiny", metadata.Name)
	s.Equal(model.Version, metadata.Version)
	s.Equal(-999.0, metadata.NoData)
	s.Equal([]float64{-122, 37, -1000, -121, 37.5, 0}, metadata.Bounds)
	s.Equal([]string{"Vp", "Vs", "FaultBlock", "Temperature"}, metadata.ValueNames())

	s.Equal("m/s", metadata.Values[0].Units)
	s.Equal(model.ValueTypeInt, metadata.Values[2].Type)
	s.Equal(model.ValueTypeFloat, metadata.Values[3].Type)
	s.Equal("C", metadata.Values[3].Units)
}

func (s *Suite) TestBuildThenQuery() {
	input := s.writeTemp("blocks.csv", test.Dedent(blocksCSV))
	database := s.tempPath("model.parquet")
	s.Require().Equal(0, s.run("build", input, database))

	locations := s.writeTemp("locations.txt", "-121.75 37.25 -500\n-121.25 37.25 -500\n")
	output := s.tempPath("values.txt")
	s.Require().Equal(0, s.run("-i", locations, "-o", output, "-d", database, "--values", "Vp,FaultBlock"))
	s.Equal([]string{
		"-121.7500 37.2500   -500.0  5000.0   3",
		"-121.2500 37.2500   -500.0  5500.0   4",
	}, s.readLines(output))
}

func (s *Suite) TestBuildFromStdin() {
	s.writeStdin([]byte(test.Dedent(blocksCSV)))
	output := s.tempPath("model.parquet")

	s.Require().Equal(0, s.run("build", "-", output, "--int-values", "Temperature"))

	reader := s.readModel(output)
	s.Equal(model.ValueTypeInt, reader.Metadata().Values[3].Type)
}

func (s *Suite) TestBuildMissingColumn() {
	input := s.writeTemp("blocks.csv", "xmin,ymin,zmin,xmax,ymax,Vp\n0,0,0,1,1,5000\n")
	output := s.tempPath("model.parquet")

	s.Equal(1, s.run("build", input, output))
	s.Contains(s.readStderr(), `missing required column "zmax"`)
}

func (s *Suite) TestBuildInvalidNumber() {
	input := s.writeTemp("blocks.csv", "xmin,ymin,zmin,xmax,ymax,zmax,Vp\n0,0,0,1,1,1,fast\n")
	output := s.tempPath("model.parquet")

	s.Equal(1, s.run("build", input, output))
	s.Contains(s.readStderr(), `line 2: invalid number "fast"`)
}

func (s *Suite) TestBuildDegenerateBlock() {
	input := s.writeTemp("blocks.csv", "xmin,ymin,zmin,xmax,ymax,zmax,Vp\n0,0,0,1,1,0,5000\n")
	output := s.tempPath("model.parquet")

	s.Equal(1, s.run("build", input, output))
	s.Contains(s.readStderr(), "has no volume")
}

func (s *Suite) TestBuildNoBlocks() {
	input := s.writeTemp("blocks.csv", "xmin,ymin,zmin,xmax,ymax,zmax,Vp\n")
	output := s.tempPath("model.parquet")

	s.Equal(1, s.run("build", input, output))
	s.Contains(s.readStderr(), "no blocks to write")
}
