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

package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeFound    = "found"
	outcomeExtended = "extended"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvmquery_queries_total",
		Help: "The total number of location queries by outcome",
	}, []string{"outcome"})
	blockCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvmquery_block_cache_hits_total",
		Help: "The total number of hits on the row group block cache",
	})
	blockCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvmquery_block_cache_misses_total",
		Help: "The total number of misses on the row group block cache",
	})
	blockCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvmquery_block_cache_evictions_total",
		Help: "The total number of evictions from the row group block cache",
	})
)
