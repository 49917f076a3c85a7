// Copyright 2026 The cvmquery Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package validator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/apache/arrow/go/v16/parquet"
	"github.com/apache/arrow/go/v16/parquet/file"
	"github.com/cvmtools/cvmquery/internal/model"
)

type Validator struct {
	rules        []Rule
	metadataOnly bool
}

func MetadataOnlyRules() []Rule {
	return []Rule{
		RequiredModelKey(),
		RequiredMetadataType(),
		MetadataSchema(),
		RequiredVersion(),
		RequiredValues(),
		OptionalBbox(),
		OptionalCRS(),
		RequiredBoxColumns(),
		RequiredValueColumns(),
		RowGroupStatistics(),
	}
}

func DataScanningRules() []Rule {
	return []Rule{
		BlockVolume(),
		BlockBounds(),
		BlockRowGroupBounds(),
		FiniteValues(),
	}
}

// New creates a new Validator.  With metadataOnly, the blocks are not read.
func New(metadataOnly bool) *Validator {
	rules := MetadataOnlyRules()
	if !metadataOnly {
		rules = append(rules, DataScanningRules()...)
	}

	return &Validator{
		rules:        rules,
		metadataOnly: metadataOnly,
	}
}

type Report struct {
	Checks       []*Check `json:"checks"`
	MetadataOnly bool     `json:"metadataOnly"`
}

// Passed reports whether every check ran and passed.
func (r *Report) Passed() bool {
	for _, check := range r.Checks {
		if !check.Run || !check.Passed {
			return false
		}
	}
	return true
}

type Check struct {
	Title   string `json:"title"`
	Run     bool   `json:"run"`
	Passed  bool   `json:"passed"`
	Message string `json:"message,omitempty"`
}

// Validate opens and validates a model file.
func (v *Validator) Validate(ctx context.Context, input parquet.ReaderAtSeeker, name string) (*Report, error) {
	reader, readerErr := file.NewParquetReader(input)
	if readerErr != nil {
		return nil, fmt.Errorf("failed to create parquet reader from %q: %w", name, readerErr)
	}
	defer reader.Close()

	return v.Report(ctx, reader)
}

// Report generates a validation report for a model file.
func (v *Validator) Report(ctx context.Context, fileReader *file.Reader) (*Report, error) {
	checks := make([]*Check, len(v.rules))
	for i, rule := range v.rules {
		checks[i] = &Check{
			Title: rule.Title(),
		}
	}

	report := &Report{Checks: checks, MetadataOnly: v.metadataOnly}

	// run all file rules
	if err := run(v, checks, fileReader); err != nil {
		return report, nil
	}

	// run all metadata rules
	metadataValue, metadataErr := model.GetMetadataValue(fileReader.MetaData().KeyValueMetadata())
	if metadataErr != nil {
		return nil, metadataErr
	}

	metadataMap := MetadataMap{}
	if err := json.Unmarshal([]byte(metadataValue), &metadataMap); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if err := run(v, checks, metadataMap); err != nil {
		return report, nil
	}

	// run all rules that need the file and parsed metadata
	modelMetadata, err := model.GetMetadata(fileReader.MetaData().KeyValueMetadata())
	if err != nil {
		return nil, err
	}

	info := &FileInfo{Metadata: modelMetadata, File: fileReader}
	if err := run(v, checks, info); err != nil {
		return report, nil
	}

	if v.metadataOnly {
		return report, nil
	}

	// run all the data scanning rules
	reader, err := model.NewReader(&model.ReaderConfig{File: fileReader})
	if err != nil {
		return nil, err
	}

	blockRules := []*BlockRule{}
	blockChecks := []*Check{}
	for i, r := range v.rules {
		rule, ok := r.(*BlockRule)
		if ok {
			rule.Init(info)
			blockRules = append(blockRules, rule)
			blockChecks = append(blockChecks, checks[i])
		}
	}

	scanErr := reader.Blocks(ctx, func(rowGroup int, block model.Block) error {
		for i, rule := range blockRules {
			if err := rule.Value(reader.RowGroupBox(rowGroup), block); errors.Is(err, ErrFatal) {
				check := blockChecks[i]
				check.Message = err.Error()
				check.Run = true
				return err
			}
		}
		return nil
	})
	if scanErr != nil {
		if errors.Is(scanErr, ErrFatal) {
			return report, nil
		}
		return nil, fmt.Errorf("failed to read blocks: %w", scanErr)
	}

	for i, rule := range blockRules {
		check := blockChecks[i]
		check.Run = true
		if err := rule.Validate(); err != nil {
			check.Message = err.Error()
			if errors.Is(err, ErrFatal) {
				return report, nil
			}
			continue
		}
		check.Passed = true
	}

	return report, nil
}

func run[T RuleData](v *Validator, checks []*Check, data T) error {
	for i, r := range v.rules {
		check := checks[i]
		rule, ok := r.(*GenericRule[T])
		if !ok {
			continue
		}
		rule.Init(data)
		check.Run = true
		if err := rule.Validate(); err != nil {
			check.Message = err.Error()
			if errors.Is(err, ErrFatal) {
				return err
			}
			continue
		}
		check.Passed = true
	}
	return nil
}
