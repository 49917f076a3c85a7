package command_test

import (
	"encoding/json"

	"github.com/cvmtools/cvmquery/internal/test"
	"github.com/cvmtools/cvmquery/internal/validator"
)

func (s *Suite) TestValidate() {
	database := test.GridModelFile(s.T(), 4)
	s.Require().Equal(0, s.run("validate", "--format", "json", database))

	report := &validator.Report{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), report))
	s.False(report.MetadataOnly)
	s.Len(report.Checks, len(validator.MetadataOnlyRules())+len(validator.DataScanningRules()))
	for _, check := range report.Checks {
		s.True(check.Run, check.Title)
		s.True(check.Passed, check.Title)
	}
}

func (s *Suite) TestValidateMetadataOnly() {
	database := test.GridModelFile(s.T(), 4)
	s.Require().Equal(0, s.run("validate", "--format", "json", "--metadata-only", database))

	report := &validator.Report{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), report))
	s.True(report.MetadataOnly)
	s.Len(report.Checks, len(validator.MetadataOnlyRules()))
}

func (s *Suite) TestValidateMissingMetadata() {
	path := s.writeTemp("plain.parquet", string(test.ParquetWithoutMetadata(s.T(), "xmin", "ymin")))
	s.Equal(1, s.run("validate", "--format", "json", path))

	report := &validator.Report{}
	s.Require().NoError(json.Unmarshal(s.readStdout(), report))
	s.False(report.Passed())
	s.Require().NotEmpty(report.Checks)
	s.False(report.Checks[0].Passed)
	s.Contains(report.Checks[0].Message, `missing "cvm" metadata key`)
}

func (s *Suite) TestValidateMissingFile() {
	s.Equal(1, s.run("validate", s.tempPath("missing.parquet")))
	s.Contains(s.readStderr(), "trouble getting a reader")
}
