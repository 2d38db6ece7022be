package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/logtech/roadsafe/internal/adapters/http/api"
	"github.com/logtech/roadsafe/internal/adapters/repository"
	service "github.com/logtech/roadsafe/internal/app"
	"github.com/logtech/roadsafe/internal/domain/appeal"
	"github.com/logtech/roadsafe/internal/domain/fatigue"
	"github.com/logtech/roadsafe/internal/domain/model"
	"github.com/logtech/roadsafe/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeService records calls and returns canned errors.
type fakeService struct {
	batchID    string
	samples    []model.MotionSample
	ingestErr  error
	monitoring types.MonitoringState
	events     []model.RoadEvent
	appealErr  error
	reviewErr  error
	statement  string
	decision   string
}

func (f *fakeService) Ingest(_ context.Context, batchID string, samples []model.MotionSample) (types.IngestResult, error) {
	f.batchID = batchID
	f.samples = samples
	if f.ingestErr != nil {
		return types.IngestResult{}, f.ingestErr
	}
	return types.IngestResult{Accepted: len(samples)}, nil
}

func (f *fakeService) Monitoring() types.MonitoringState { return f.monitoring }

func (f *fakeService) SetMonitoring(_ context.Context, enabled bool, vehicle string) (types.MonitoringState, error) {
	if vehicle == "bicycle" {
		return f.monitoring, fmt.Errorf("%w: unknown vehicle class", types.ErrInvalidInput)
	}
	f.monitoring.Enabled = enabled
	if vehicle != "" {
		f.monitoring.VehicleClass = model.VehicleClass(vehicle)
	}
	return f.monitoring, nil
}

func (f *fakeService) Fatigue(_ context.Context, left, right []fatigue.Point) (fatigue.Report, error) {
	if err := fatigue.Validate(left, right); err != nil {
		return fatigue.Report{}, fmt.Errorf("%w: %w", types.ErrInvalidInput, err)
	}
	return fatigue.Analyze(left, right), nil
}

func (f *fakeService) Events(_ context.Context, includeMarkers bool) ([]model.RoadEvent, error) {
	if includeMarkers {
		return f.events, nil
	}
	var out []model.RoadEvent
	for _, ev := range f.events {
		if !ev.Kind.Marker() {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeService) Appeal(_ context.Context, id int64, statement string) (model.RoadEvent, error) {
	f.statement = statement
	if f.appealErr != nil {
		return model.RoadEvent{}, f.appealErr
	}
	return model.RoadEvent{ID: id, Status: model.AppealAppealed, VocalDefense: statement}, nil
}

func (f *fakeService) Review(_ context.Context, id int64, decision string) (model.RoadEvent, error) {
	f.decision = decision
	if f.reviewErr != nil {
		return model.RoadEvent{}, f.reviewErr
	}
	return model.RoadEvent{ID: id, Status: model.AppealStatus(decision)}, nil
}

func (f *fakeService) Verify(_ context.Context, id int64) (bool, error) {
	if id == 404 {
		return false, repository.ErrNotFound
	}
	return true, nil
}

func (f *fakeService) AddLearning(_ context.Context, topicID, personID string) (model.LearningRecord, error) {
	if topicID == "" {
		return model.LearningRecord{}, types.ErrInvalidInput
	}
	return model.LearningRecord{ID: 1, TopicID: topicID, PersonID: personID}, nil
}

func (f *fakeService) Report(context.Context) (model.SafetyReport, error) {
	return model.SafetyReport{SafetyIndex: 90, Currency: "PEN", ProjectedDiscount: 450}, nil
}

func (f *fakeService) Certificate(context.Context) (string, error) {
	return "CERTIFICADO DE SEGURIDAD VIAL\n", nil
}

func (f *fakeService) Stats(context.Context) types.Stats {
	return types.Stats{QueueCap: 16, StoreDriver: "memory"}
}

func newMux(svc api.Service) *http.ServeMux {
	mux := http.NewServeMux()
	api.NewServer(svc).Register(context.Background(), mux)
	return mux
}

func do(mux http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, http.NoBody)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func errorCode(w *httptest.ResponseRecorder) string {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body.Code
}

func TestServer_Samples(t *testing.T) {
	Convey("Given a server over a fake service", t, func() {
		svc := &fakeService{}
		mux := newMux(svc)

		Convey("A batch is decoded and accepted", func() {
			w := do(mux, http.MethodPost, "/samples",
				`{"batch_id":"b-1","samples":[{"x":1.5,"y":9.8,"z":-16,"audio_energy":0.5,"ts":1767254400000}]}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(svc.batchID, ShouldEqual, "b-1")
			So(svc.samples, ShouldHaveLength, 1)
			s := svc.samples[0]
			So(s.AccX, ShouldEqual, 1.5)
			So(s.AccZ, ShouldEqual, -16.0)
			So(*s.AudioEnergy, ShouldEqual, 0.5)
			So(s.At.UnixMilli(), ShouldEqual, int64(1767254400000))

			var res types.IngestResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res.Accepted, ShouldEqual, 1)
		})

		Convey("Missing and non-numeric axis values read as zero", func() {
			w := do(mux, http.MethodPost, "/samples", `{"samples":[{"x":"abc","y":"9.5","z":null},{"x":true}]}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(svc.samples, ShouldHaveLength, 2)
			So(svc.samples[0].AccX, ShouldEqual, 0.0)
			So(svc.samples[0].AccY, ShouldEqual, 9.5)
			So(svc.samples[0].AccZ, ShouldEqual, 0.0)
			So(svc.samples[0].AudioEnergy, ShouldBeNil)
			So(svc.samples[0].At.IsZero(), ShouldBeTrue)
			So(svc.samples[1].AccX, ShouldEqual, 0.0)
		})

		Convey("A raw audio frame is reduced to its mean-square energy", func() {
			w := do(mux, http.MethodPost, "/samples", `{"samples":[{"y":9.8,"audio_frame":[0.5,-0.5,"x",1]}]}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(svc.samples[0].AudioEnergy, ShouldNotBeNil)
			So(*svc.samples[0].AudioEnergy, ShouldAlmostEqual, 0.375, 1e-9)

			Convey("and audio_energy wins when both are sent", func() {
				do(mux, http.MethodPost, "/samples", `{"samples":[{"audio_energy":0.2,"audio_frame":[1]}]}`)
				So(*svc.samples[0].AudioEnergy, ShouldEqual, 0.2)
			})
		})

		Convey("Malformed JSON is a bad request", func() {
			w := do(mux, http.MethodPost, "/samples", `{"samples":`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "bad_request")
		})

		Convey("A stopped service is unavailable", func() {
			svc.ingestErr = types.ErrNotRunning
			w := do(mux, http.MethodPost, "/samples", `{"samples":[{"x":1}]}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("Other methods are not allowed", func() {
			w := do(mux, http.MethodGet, "/samples", "")
			So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
		})
	})
}

func TestServer_Monitoring(t *testing.T) {
	Convey("Given a server over a fake service", t, func() {
		svc := &fakeService{monitoring: types.MonitoringState{VehicleClass: model.VehicleTruck}}
		mux := newMux(svc)

		Convey("The switch can be read and flipped", func() {
			w := do(mux, http.MethodPut, "/monitoring", `{"enabled":true,"vehicle_class":"car"}`)
			So(w.Code, ShouldEqual, http.StatusOK)

			w = do(mux, http.MethodGet, "/monitoring", "")
			var st types.MonitoringState
			So(json.Unmarshal(w.Body.Bytes(), &st), ShouldBeNil)
			So(st.Enabled, ShouldBeTrue)
			So(st.VehicleClass, ShouldEqual, model.VehicleCar)
		})

		Convey("enabled is required", func() {
			w := do(mux, http.MethodPut, "/monitoring", `{"vehicle_class":"car"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Unknown vehicle classes are rejected", func() {
			w := do(mux, http.MethodPut, "/monitoring", `{"enabled":true,"vehicle_class":"bicycle"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(errorCode(w), ShouldEqual, "invalid_vehicle_class")
		})
	})
}

func TestServer_Appeals(t *testing.T) {
	Convey("Given a server over a fake service", t, func() {
		svc := &fakeService{}
		mux := newMux(svc)

		Convey("An appeal returns the sealed event", func() {
			w := do(mux, http.MethodPost, "/events/7/appeal", `{"statement":"frené por un perro"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(svc.statement, ShouldEqual, "frené por un perro")
		})

		Convey("Errors map to statuses", func() {
			cases := []struct {
				err    error
				status int
				code   string
			}{
				{appeal.ErrEmptyStatement, http.StatusBadRequest, "empty_statement"},
				{repository.ErrNotFound, http.StatusNotFound, "not_found"},
				{appeal.ErrAlreadyAppealed, http.StatusConflict, "conflict"},
				{repository.ErrConflict, http.StatusConflict, "conflict"},
				{appeal.ErrNotAppealable, http.StatusConflict, "not_appealable"},
				{errors.New("disk on fire"), http.StatusInternalServerError, "internal"},
			}
			for _, c := range cases {
				svc.appealErr = c.err
				w := do(mux, http.MethodPost, "/events/7/appeal", `{"statement":""}`)
				So(w.Code, ShouldEqual, c.status)
				So(errorCode(w), ShouldEqual, c.code)
			}
		})

		Convey("A resolved appeal cannot be reviewed again", func() {
			svc.reviewErr = appeal.ErrTerminalState
			w := do(mux, http.MethodPost, "/events/7/review", `{"decision":"validated"}`)
			So(w.Code, ShouldEqual, http.StatusConflict)
			So(errorCode(w), ShouldEqual, "appeal_resolved")
			So(svc.decision, ShouldEqual, "validated")
		})

		Convey("Invalid ids are bad requests", func() {
			So(do(mux, http.MethodPost, "/events/abc/appeal", `{}`).Code, ShouldEqual, http.StatusBadRequest)
			So(do(mux, http.MethodGet, "/events/0/verify", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Verification reports validity", func() {
			w := do(mux, http.MethodGet, "/events/3/verify", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"valid":true`)
			So(do(mux, http.MethodGet, "/events/404/verify", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_Reads(t *testing.T) {
	Convey("Given a server over a fake service holding a marker", t, func() {
		svc := &fakeService{events: []model.RoadEvent{
			{ID: 1, Kind: model.KindHarshBraking, Intensity: 16, Status: model.AppealNone},
			{ID: 2, Kind: model.KindCleanWindow, Status: model.AppealNone},
		}}
		mux := newMux(svc)

		Convey("Markers are hidden unless requested", func() {
			var evs []model.RoadEvent
			w := do(mux, http.MethodGet, "/events", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(json.Unmarshal(w.Body.Bytes(), &evs), ShouldBeNil)
			So(evs, ShouldHaveLength, 1)

			w = do(mux, http.MethodGet, "/events?include_markers=true", "")
			So(json.Unmarshal(w.Body.Bytes(), &evs), ShouldBeNil)
			So(evs, ShouldHaveLength, 2)

			So(do(mux, http.MethodGet, "/events?include_markers=maybe", "").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("An empty log is an empty array", func() {
			svc.events = nil
			w := do(mux, http.MethodGet, "/events", "")
			So(strings.TrimSpace(w.Body.String()), ShouldEqual, "[]")
		})

		Convey("An event that cannot be encoded is a well-formed internal error", func() {
			svc.events = []model.RoadEvent{{ID: 3, Kind: model.KindPotholeStrong, Intensity: math.Inf(1)}}
			w := do(mux, http.MethodGet, "/events", "")
			So(w.Code, ShouldEqual, http.StatusInternalServerError)
			So(json.Valid(w.Body.Bytes()), ShouldBeTrue)
			So(errorCode(w), ShouldEqual, "internal")
		})

		Convey("Report, certificate and stats are served", func() {
			w := do(mux, http.MethodGet, "/report", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"safety_index":90`)

			w = do(mux, http.MethodGet, "/report/certificate", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldStartWith, "text/plain")

			w = do(mux, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"store_driver":"memory"`)
		})

		Convey("Learning completions are created", func() {
			w := do(mux, http.MethodPost, "/learning", `{"topic_id":"t1","person_id":"p1"}`)
			So(w.Code, ShouldEqual, http.StatusCreated)
			So(do(mux, http.MethodPost, "/learning", `{"person_id":"p1"}`).Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Fatigue frames are graded", func() {
			w := do(mux, http.MethodPost, "/fatigue", `{"left_eye":[],"right_eye":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("Health serves the metrics registry", func() {
			_ = do(mux, http.MethodGet, "/stats", "")
			w := do(mux, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "roadsafe_safety_http_requests_total")
		})

		Convey("Unknown paths are not found", func() {
			So(do(mux, http.MethodGet, "/unknown", "").Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestServer_EndToEnd(t *testing.T) {
	Convey("Given a server over a running service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithMonitoring(true, model.VehicleTruck))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop(ctx)
		srv := httptest.NewServer(newMux(svc))
		defer srv.Close()

		post := func(path, body string) *http.Response {
			resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
			So(err, ShouldBeNil)
			return resp
		}

		Convey("A harsh brake can be appealed and reviewed over HTTP", func() {
			resp := post("/samples", `{"batch_id":"e2e","samples":[{"x":0,"y":9.8,"z":16}]}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusAccepted)

			deadline := time.Now().Add(5 * time.Second)
			for svc.Stats(ctx).Persisted < 1 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			events, err := svc.Events(ctx, false)
			So(err, ShouldBeNil)
			So(events, ShouldHaveLength, 1)
			id := events[0].ID

			resp = post(fmt.Sprintf("/events/%d/appeal", id), `{"statement":"   "}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusBadRequest)

			resp = post(fmt.Sprintf("/events/%d/appeal", id), `{"statement":"un bus se cruzó"}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp = post(fmt.Sprintf("/events/%d/review", id), `{"decision":"validated"}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusOK)

			resp = post(fmt.Sprintf("/events/%d/review", id), `{"decision":"rejected"}`)
			resp.Body.Close()
			So(resp.StatusCode, ShouldEqual, http.StatusConflict)

			resp, err = http.Get(srv.URL + "/report")
			So(err, ShouldBeNil)
			var report model.SafetyReport
			So(json.NewDecoder(resp.Body).Decode(&report), ShouldBeNil)
			resp.Body.Close()
			So(report.SafetyIndex, ShouldEqual, 95)
		})
	})
}
