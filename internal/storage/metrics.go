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

package storage

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultOK    = "ok"
	resultError = "error"
)

var (
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cvmquery_remote_requests_total",
		Help: "The total number of range requests for remote model databases by result",
	}, []string{"result"})
	remoteBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cvmquery_remote_bytes_total",
		Help: "The total number of bytes read from remote model databases",
	})
)
