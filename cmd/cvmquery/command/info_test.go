package command_test

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/cvmtools/cvmquery/cmd/cvmquery/command"
	"github.com/cvmtools/cvmquery/internal/test"
)

func (s *Suite) TestInfo() {
	database := test.GridModelFile(s.T(), 4)
	s.Require().Equal(0, s.run("info", "--format", "json", database))

	info := &command.ModelInfo{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), info))

	s.Equal(int64(32), info.NumRows)
	s.Equal(8, info.NumRowGroups)
	s.Equal([]float64{-122, 37, -2000, -121, 38, 0}, info.Bounds)
	s.Empty(info.Groups)

	s.Equal("test grid", info.Metadata.Name)
	s.Require().Len(info.Schema.Fields, 14)

	s.Equal("xmin", info.Schema.Fields[0].Name)
	s.Equal("double", info.Schema.Fields[0].Type)
	s.Equal("Vp", info.Schema.Fields[6].Name)
	s.Equal("double", info.Schema.Fields[6].Type)
	s.Equal("m/s", info.Schema.Fields[6].Units)
	s.Equal("Zone", info.Schema.Fields[13].Name)
	s.Equal("int32", info.Schema.Fields[13].Type)
}

func (s *Suite) TestInfoRowGroups() {
	database := test.GridModelFile(s.T(), 4)
	s.Require().Equal(0, s.run("info", "--format", "json", "--row-groups", database))

	info := &command.ModelInfo{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), info))

	s.Require().Len(info.Groups, 8)
	for i, group := range info.Groups {
		s.Equal(i, group.Index)
		s.Equal(int64(4), group.NumRows)
		s.Len(group.Extent, 6)
	}
}

func (s *Suite) TestInfoBbox() {
	database := test.GridModelFile(s.T(), 4)
	s.Require().Equal(0, s.run("info", "--format", "json", "--bbox=-121.9,37.1,-1900,-121.6,37.4,-1100", database))

	info := &command.ModelInfo{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), info))

	s.Require().Len(info.Groups, 1)
	s.Equal([]float64{-122, 37, -2000, -121.5, 37.5, -1000}, info.Groups[0].Extent)
}

func (s *Suite) TestInfoInvalidBbox() {
	database := test.GridModelFile(s.T(), 4)
	s.Equal(1, s.run("info", "--bbox", "1,2,3", database))
	s.Contains(s.readStderr(), "please provide 6 comma-separated values")
}

func (s *Suite) TestInfoFromStdin() {
	data, err := os.ReadFile(test.GridModelFile(s.T(), 4))
	s.Require().NoError(err)
	s.writeStdin(data)

	s.Require().Equal(0, s.run("info", "--format", "json"))

	info := &command.ModelInfo{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), info))
	s.Equal(int64(32), info.NumRows)
}

func (s *Suite) TestInfoText() {
	database := test.GridModelFile(s.T(), 4)
	s.Require().Equal(0, s.run("info", "--schema", database))

	output := strings.ToLower(string(s.readStdout()))
	s.Contains(output, "test grid")
	s.Contains(output, "geographic")
	s.Contains(output, "[-122, 37, -2000, -121, 38, 0]")
	s.Contains(output, "required double xmin;")
}

func (s *Suite) TestInfoNotAModel() {
	path := s.writeTemp("plain.parquet", string(test.ParquetWithoutMetadata(s.T(), "a", "b")))
	s.Equal(1, s.run("info", path))
	s.Contains(s.readStderr(), "failed to read")
}
