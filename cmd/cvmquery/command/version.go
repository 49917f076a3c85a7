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

package command

import (
	"fmt"
	"strings"

	"github.com/cvmtools/cvmquery/internal/geo"
	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/output"
)

type VersionCmd struct {
	Detail bool `help:"Include the commit, build date, model format version and PROJ version."`
}

type VersionInfo struct {
	Version string
	Commit  string
	Date    string
}

func (c *VersionCmd) Run(info *VersionInfo) error {
	if !c.Detail {
		fmt.Println(info.Version)
		return nil
	}
	fmt.Printf("%s (%s %s)\n", info.Version, info.Commit, info.Date)
	fmt.Printf("model format: %s\n", model.Version)
	fmt.Printf("output formats: %s\n", strings.Join(output.Formats, ", "))
	fmt.Printf("proj: %s\n", geo.ProjVersion())
	return nil
}
