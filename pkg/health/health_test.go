/*
 * Copyright 2025 SREDiag Authors
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package health

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	name     string
	checkErr error
	shutdown bool
}

func (f *fakeChannel) Name() string     { return f.name }
func (f *fakeChannel) Check() error     { return f.checkErr }
func (f *fakeChannel) IsShutdown() bool { return f.shutdown }

type testResponseWriter struct {
	headers http.Header
	status  int
	body    []byte
}

func (w *testResponseWriter) Header() http.Header {
	if w.headers == nil {
		w.headers = make(http.Header)
	}
	return w.headers
}

func (w *testResponseWriter) Write(b []byte) (int, error) {
	w.body = append(w.body, b...)
	return len(b), nil
}

func (w *testResponseWriter) WriteHeader(statusCode int) {
	w.status = statusCode
}

func serve(h http.Handler, path string) *testResponseWriter {
	req, _ := http.NewRequest("GET", path, nil)
	rw := &testResponseWriter{}
	h.ServeHTTP(rw, req)
	return rw
}

func TestHandler_Healthy(t *testing.T) {
	h := NewHandler(nil, &fakeChannel{name: "a"}, &fakeChannel{name: "b"})
	assert.Equal(t, http.StatusOK, serve(h, "/live").status)
	assert.Equal(t, http.StatusOK, serve(h, "/ready").status)
}

func TestHandler_ShutdownIsNotReady(t *testing.T) {
	c := &fakeChannel{name: "a"}
	h := NewHandler(nil, c)
	c.shutdown = true
	assert.Equal(t, http.StatusOK, serve(h, "/live").status)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/ready").status)
}

func TestHandler_CorruptedIsNotLive(t *testing.T) {
	c := &fakeChannel{name: "a", checkErr: errors.New("bad magic")}
	h := NewHandler(nil, c)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/live").status)
	assert.Equal(t, http.StatusServiceUnavailable, serve(h, "/ready").status)

	rw := serve(h, "/live?full=1")
	assert.Contains(t, string(rw.body), "channel-a")
}

func TestHandler_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHandler(reg, &fakeChannel{name: "m", shutdown: true})
	serve(h, "/ready")

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			values[checkLabel(m)] = m.GetGauge().GetValue()
		}
	}
	assert.Equal(t, 0.0, values["channel-m"])
	assert.Equal(t, 1.0, values["channel-m-open"])
}

func checkLabel(m *dto.Metric) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == "check" {
			return l.GetValue()
		}
	}
	return ""
}
