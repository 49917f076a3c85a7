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

package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cvmtools/cvmquery/internal/model"
	"github.com/cvmtools/cvmquery/internal/query"
	"github.com/gin-gonic/gin"
)

type Location struct {
	Lon  float64 `json:"lon"`
	Lat  float64 `json:"lat"`
	Elev float64 `json:"elev"`
}

type Value struct {
	Name  string `json:"name"`
	Units string `json:"units,omitempty"`
	Value any    `json:"value"`
}

type QueryResponse struct {
	Location Location `json:"location"`
	Found    bool     `json:"found"`
	Values   []Value  `json:"values"`
	Error    string   `json:"error,omitempty"`
}

type ValuesResponse struct {
	Values []*model.ValueSpec `json:"values"`
	NoData float64            `json:"no_data"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// values handles GET /v1/values.
func (s *Server) values(c *gin.Context) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c.JSON(http.StatusOK, ValuesResponse{
		Values: s.session.Values(),
		NoData: s.session.NoData(),
	})
}

// query handles GET /v1/query.
func (s *Server) query(c *gin.Context) {
	loc := Location{}
	params := []struct {
		name  string
		value *float64
	}{
		{"lon", &loc.Lon},
		{"lat", &loc.Lat},
		{"elev", &loc.Elev},
	}
	for _, param := range params {
		str := c.Query(param.name)
		if str == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s parameter is required", param.name)})
			return
		}
		value, err := strconv.ParseFloat(str, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", param.name, err)})
			return
		}
		*param.value = value
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	handler := s.session.ErrorHandler()
	defer handler.ResetStatus()

	values, err := s.session.Query(c.Request.Context(), loc.Lon, loc.Lat, loc.Elev)
	if err != nil && !errors.Is(err, query.ErrNotFound) {
		s.logger.Error("query failed", "error", handler.Message())
		c.JSON(http.StatusInternalServerError, gin.H{"error": handler.Message()})
		return
	}

	response := QueryResponse{
		Location: loc,
		Found:    err == nil,
		Values:   s.namedValues(values),
	}
	if err != nil {
		response.Error = handler.Message()
		c.JSON(http.StatusNotFound, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (s *Server) namedValues(values []float64) []Value {
	specs := s.session.Values()
	named := make([]Value, len(values))
	for i, value := range values {
		named[i] = Value{Name: specs[i].Name, Units: specs[i].Units, Value: value}
		if specs[i].IsInt() {
			named[i].Value = int64(value)
		}
	}
	return named
}
