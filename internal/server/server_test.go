package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/onsi/gomega"

	"github.com/san-kum/episim/internal/config"
	"github.com/san-kum/episim/internal/experiment"
	"github.com/san-kum/episim/internal/export"
)

func newTestServer(timeout time.Duration) *httptest.Server {
	return httptest.NewServer(New(experiment.NewRegistry(), nil, timeout).Handler())
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestSimulateDefaults(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(0)
	defer ts.Close()

	resp := get(t, ts.URL+"/api/simulate")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
	g.Expect(resp.Header.Get("Content-Type")).To(gomega.HavePrefix("application/json"))

	var report export.Report
	g.Expect(json.NewDecoder(resp.Body).Decode(&report)).To(gomega.Succeed())
	g.Expect(report.Model).To(gomega.Equal("sir"))
	g.Expect(report.Epoch).To(gomega.Equal("2020-04-02"))
	g.Expect(report.Times).To(gomega.HaveLen(170))
	g.Expect(report.Times[0]).To(gomega.Equal(-20.0))
	g.Expect(report.Series["I"][20]).To(gomega.Equal(54660.0))
	g.Expect(report.Observations.Dataset).To(gomega.Equal("sweden"))
}

func TestSimulateQuery(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(0)
	defer ts.Close()

	resp := get(t, ts.URL+"/api/simulate?model=seir&N=1e7&R0=2.5&D=17.5&I_0=7750&E_0=10&R_0=100&t_min=0&t_max=300&incubation=4&epoch=2020-03-13")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var report export.Report
	g.Expect(json.NewDecoder(resp.Body).Decode(&report)).To(gomega.Succeed())
	g.Expect(report.Compartments).To(gomega.Equal([]string{"S", "E", "I", "R"}))
	g.Expect(report.Params.IncubationDays).To(gomega.Equal(4.0))
	g.Expect(report.Times).To(gomega.HaveLen(300))
	g.Expect(report.Series["E"][0]).To(gomega.Equal(10.0))
	g.Expect(report.Series["S"][0]).To(gomega.Equal(1e7 - 10 - 7750 - 100))
}

func TestSimulateErrors(t *testing.T) {
	ts := newTestServer(0)
	defer ts.Close()

	tests := []struct {
		query  string
		status int
		field  string
	}{
		{"N=0", http.StatusBadRequest, "population"},
		{"N=lots", http.StatusBadRequest, "N"},
		{"t_min=5", http.StatusBadRequest, "t_min"},
		{"t_max=-1", http.StatusBadRequest, "t_max"},
		{"t_min=x", http.StatusBadRequest, "t_min"},
		{"I_0=1e9", http.StatusBadRequest, "susceptible"},
		{"resolution=0.0001&t_max=150000", http.StatusBadRequest, "resolution"},
		{"model=sirs", http.StatusBadRequest, ""},
		{"dataset=/etc/passwd", http.StatusBadRequest, ""},
		{"epoch=yesterday", http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			g := gomega.NewWithT(t)
			resp := get(t, ts.URL+"/api/simulate?"+tt.query)
			g.Expect(resp.StatusCode).To(gomega.Equal(tt.status))

			var body errorResponse
			g.Expect(json.NewDecoder(resp.Body).Decode(&body)).To(gomega.Succeed())
			g.Expect(body.Error).NotTo(gomega.BeEmpty())
			g.Expect(body.Field).To(gomega.Equal(tt.field))
		})
	}
}

func TestSimulateNumericalFailure(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(0)
	defer ts.Close()

	// Explicit Euler with a 0.1-day internal step overshoots at this rate.
	resp := get(t, ts.URL+"/api/simulate?integrator=euler&R0=1e6&D=0.01&N=1e6&I_0=10&t_max=50&t_min=0")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusUnprocessableEntity))
}

func TestGraph(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(0)
	defer ts.Close()

	resp := get(t, ts.URL+"/graph.txt?y_max=1e6&width=50&height=10")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))
	g.Expect(resp.Header.Get("Content-Type")).To(gomega.HavePrefix("text/plain"))

	body, err := io.ReadAll(resp.Body)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(string(body)).To(gomega.ContainSubstring("t=0 is 2020-04-02"))
	g.Expect(string(body)).To(gomega.ContainSubstring("observed"))
}

func TestGraphLongWindow(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(time.Minute)
	defer ts.Close()

	// more samples than the solver's per-interval step budget
	resp := get(t, ts.URL+"/graph.txt?t_min=0&t_max=120000")
	body, err := io.ReadAll(resp.Body)
	g.Expect(err).NotTo(gomega.HaveOccurred())
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK), string(body))
	g.Expect(string(body)).To(gomega.ContainSubstring("t=0..119999"))
}

func TestSimulateDerivesExposed(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(0)
	defer ts.Close()

	resp := get(t, ts.URL+"/api/simulate?model=seir")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var report export.Report
	g.Expect(json.NewDecoder(resp.Body).Decode(&report)).To(gomega.Succeed())
	g.Expect(report.Series["E"][20]).To(gomega.BeNumerically(">", 0))
	g.Expect(report.Series["E"][0]).To(gomega.BeNumerically(">", 0))
	g.Expect(report.Series["I"][0]).To(gomega.BeNumerically(">", 0))
	g.Expect(report.Metrics["peak_day"]).To(gomega.BeNumerically(">", 0))
}

func TestSimulateTimeout(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(time.Nanosecond)
	defer ts.Close()

	resp := get(t, ts.URL+"/api/simulate")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusGatewayTimeout))
}

func TestObservations(t *testing.T) {
	g := gomega.NewWithT(t)
	ts := newTestServer(0)
	defer ts.Close()

	resp := get(t, ts.URL+"/api/observations?epoch=2020-03-19")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	var body observationsResponse
	g.Expect(json.NewDecoder(resp.Body).Decode(&body)).To(gomega.Succeed())
	g.Expect(body.Reference).To(gomega.Equal("2020-03-01"))
	g.Expect(body.Epoch).To(gomega.Equal("2020-03-19"))
	g.Expect(body.Points[0]).To(gomega.Equal(observationPoint{Date: "2020-03-02", Day: 1 - 18, Count: 15}))

	resp = get(t, ts.URL+"/api/observations?dataset=nope")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusBadRequest))
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(0)
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/simulate", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestStatusOf(t *testing.T) {
	g := gomega.NewWithT(t)
	g.Expect(statusOf(context.DeadlineExceeded)).To(gomega.Equal(http.StatusGatewayTimeout))
}

func TestServeShutsDownWithContext(t *testing.T) {
	g := gomega.NewWithT(t)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	g.Expect(err).NotTo(gomega.HaveOccurred())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- New(experiment.NewRegistry(), config.DefaultConfig(), time.Second).Serve(ctx, l)
	}()

	resp := get(t, "http://"+l.Addr().String()+"/api/observations")
	g.Expect(resp.StatusCode).To(gomega.Equal(http.StatusOK))

	cancel()
	g.Eventually(done, 5*time.Second).Should(gomega.Receive(gomega.BeNil()))
}
