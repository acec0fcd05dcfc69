package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zulandar/cellwatch/internal/cell"
	"github.com/zulandar/cellwatch/internal/controller"
	"github.com/zulandar/cellwatch/internal/decrement"
	"github.com/zulandar/cellwatch/internal/eventlog"
	"github.com/zulandar/cellwatch/internal/jobs"
	"github.com/zulandar/cellwatch/internal/models"
	"github.com/zulandar/cellwatch/internal/status"
)

type fakeService struct {
	err     error
	updates chan *status.CurrentStatus

	addedJobs    jobs.NewJobs
	expectedPrev string
	archived     string
	casting      []any
	material     []any
	setQueue     []any
	removed      int64
	mark         decrement.Mark
	decOpts      decrement.Options
	logAfter     int64
	logRange     []time.Time
	logKey       string
	assigned     []any
	inspection   []any
	note         string
	demand       []any
}

func (f *fakeService) GetCurrentStatus(ctx context.Context) (*status.CurrentStatus, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &status.CurrentStatus{LatestScheduleID: "sched1", Queues: map[string][]int64{"castings": {1}}}, nil
}

func (f *fakeService) Subscribe() (<-chan *status.CurrentStatus, func()) {
	return f.updates, func() {}
}

func (f *fakeService) AddJobs(ctx context.Context, nj jobs.NewJobs, expectedPrevious string) (string, error) {
	f.addedJobs = nj
	f.expectedPrev = expectedPrevious
	return "sched2", f.err
}

func (f *fakeService) ArchiveJob(ctx context.Context, unique string) error {
	f.archived = unique
	return f.err
}

func (f *fakeService) AddUnallocatedCastingToQueue(ctx context.Context, part, queue string, position int, serial string) (*eventlog.QueuedMaterial, error) {
	f.casting = []any{part, queue, position, serial}
	if f.err != nil {
		return nil, f.err
	}
	return &eventlog.QueuedMaterial{MaterialID: 7, Queue: queue, Position: 0, PartName: part, Serial: serial}, nil
}

func (f *fakeService) AddUnprocessedMaterialToQueue(ctx context.Context, unique string, lastProcess int, queue string, position int, serial string) (*eventlog.QueuedMaterial, error) {
	f.material = []any{unique, lastProcess, queue, position, serial}
	if f.err != nil {
		return nil, f.err
	}
	return &eventlog.QueuedMaterial{MaterialID: 8, Queue: queue, JobUnique: unique}, nil
}

func (f *fakeService) SetMaterialInQueue(ctx context.Context, id int64, queue string, position int) error {
	f.setQueue = []any{id, queue, position}
	return f.err
}

func (f *fakeService) RemoveMaterialFromAllQueues(ctx context.Context, id int64) error {
	f.removed = id
	return f.err
}

func (f *fakeService) DecrementJobQuantities(ctx context.Context, mark decrement.Mark, opts decrement.Options) ([]models.Decrement, error) {
	f.mark = mark
	f.decOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return []models.Decrement{{ID: 3, JobUnique: "uniq1", Proc1Path: 1, Quantity: 2}}, nil
}

func (f *fakeService) GetLog(after int64) ([]models.LogEntry, error) {
	f.logAfter = after
	return nil, f.err
}

func (f *fakeService) GetLogForMaterial(id int64) ([]models.LogEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []models.LogEntry{{Counter: 1, Type: models.LogQueueAdd}}, nil
}

func (f *fakeService) GetLogEntries(start, end time.Time) ([]models.LogEntry, error) {
	f.logRange = []time.Time{start, end}
	return nil, f.err
}

func (f *fakeService) GetLogForSerial(serial string) ([]models.LogEntry, error) {
	f.logKey = "serial:" + serial
	return []models.LogEntry{{Counter: 2, Type: models.LogSerialAssign}}, f.err
}

func (f *fakeService) GetLogForWorkorder(workorder string) ([]models.LogEntry, error) {
	f.logKey = "workorder:" + workorder
	return nil, f.err
}

func (f *fakeService) GetMaterialDetails(id int64) (*eventlog.MaterialDetails, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &eventlog.MaterialDetails{Material: models.Material{ID: id, PartName: "part1"}, Process: 1}, nil
}

func (f *fakeService) AssignSerial(ctx context.Context, id int64, serial string) (*models.LogEntry, error) {
	f.assigned = []any{id, "serial", serial}
	return &models.LogEntry{Counter: 4, Type: models.LogSerialAssign, Result: serial}, f.err
}

func (f *fakeService) AssignWorkorder(ctx context.Context, id int64, workorder string) (*models.LogEntry, error) {
	f.assigned = []any{id, "workorder", workorder}
	return &models.LogEntry{Counter: 5, Type: models.LogWorkorderAssign, Result: workorder}, f.err
}

func (f *fakeService) SignalInspection(ctx context.Context, id int64, insp cell.Inspection) (*models.LogEntry, error) {
	f.inspection = []any{"signal", id, insp}
	return &models.LogEntry{Type: models.LogInspectionSignal}, f.err
}

func (f *fakeService) CompleteInspection(ctx context.Context, id int64, insp cell.Inspection) (*models.LogEntry, error) {
	f.inspection = []any{"result", id, insp}
	return &models.LogEntry{Type: models.LogInspectionResult}, f.err
}

func (f *fakeService) AddMaterialNote(ctx context.Context, id int64, note string) (*models.LogEntry, error) {
	f.note = note
	return &models.LogEntry{Type: models.LogGeneral}, f.err
}

func (f *fakeService) OutstandingDemand(unique string, path int) (int, error) {
	f.demand = []any{unique, path}
	return 4, f.err
}

func do(t *testing.T, svc Service, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	NewRouter(svc).ServeHTTP(w, req)
	return w
}

func TestStart_NilService(t *testing.T) {
	err := Start(context.Background(), StartOpts{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service is required")
}

func TestGetStatus(t *testing.T) {
	w := do(t, &fakeService{}, http.MethodGet, "/api/v1/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st status.CurrentStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, "sched1", st.LatestScheduleID)
}

func TestAddJobs(t *testing.T) {
	svc := &fakeService{}
	body := `{"schedule_id":"s2","expected_previous_schedule_id":"s1","jobs":[{"unique":"uniq1","part":"part1"}]}`
	w := do(t, svc, http.MethodPost, "/api/v1/jobs", body)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"schedule_id":"sched2"}`, w.Body.String())
	assert.Equal(t, "s2", svc.addedJobs.ScheduleID)
	assert.Equal(t, "s1", svc.expectedPrev)
	require.Len(t, svc.addedJobs.Jobs, 1)
	assert.Equal(t, "part1", svc.addedJobs.Jobs[0].PartName)

	w = do(t, svc, http.MethodPost, "/api/v1/jobs", `{"schedule_id":"s2"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("cell: %w", controller.ErrBusy), http.StatusServiceUnavailable},
		{fmt.Errorf("jobs: %w", jobs.ErrStaleSchedule), http.StatusConflict},
		{jobs.ErrDuplicateJob, http.StatusConflict},
		{jobs.ErrArchived, http.StatusConflict},
		{jobs.ErrInvalidJob, http.StatusBadRequest},
		{jobs.ErrJobNotFound, http.StatusNotFound},
		{eventlog.ErrMaterialNotFound, http.StatusNotFound},
		{cell.ErrUnknownQueue, http.StatusBadRequest},
		{cell.ErrInvalidArgument, http.StatusBadRequest},
		{eventlog.ErrQueueGap, http.StatusInternalServerError},
		{fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := do(t, &fakeService{err: tt.err}, http.MethodPost, "/api/v1/jobs/uniq1/archive", "")
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), tt.err.Error())
		})
	}
}

func TestArchiveJob(t *testing.T) {
	svc := &fakeService{}
	w := do(t, svc, http.MethodPost, "/api/v1/jobs/uniq1/archive", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "uniq1", svc.archived)
}

func TestQueueRoutes(t *testing.T) {
	svc := &fakeService{}

	w := do(t, svc, http.MethodPost, "/api/v1/queues/castings/castings", `{"part":"part1","serial":"S1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{"part1", "castings", -1, "S1"}, svc.casting)

	w = do(t, svc, http.MethodPost, "/api/v1/queues/castings/castings", `{"serial":"S1"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, svc, http.MethodPost, "/api/v1/queues/transfer/material", `{"job_unique":"uniq1","last_process":1,"position":2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{"uniq1", 1, "transfer", 2, ""}, svc.material)

	w = do(t, svc, http.MethodPut, "/api/v1/material/5/queue", `{"queue":"castings","position":0}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []any{int64(5), "castings", 0}, svc.setQueue)

	w = do(t, svc, http.MethodPut, "/api/v1/material/abc/queue", `{"queue":"castings"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, svc, http.MethodDelete, "/api/v1/material/5/queue", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(5), svc.removed)
}

func TestLogRoutes(t *testing.T) {
	svc := &fakeService{}

	w := do(t, svc, http.MethodGet, "/api/v1/log?after=12", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	assert.Equal(t, int64(12), svc.logAfter)

	w = do(t, svc, http.MethodGet, "/api/v1/log?after=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, svc, http.MethodGet, "/api/v1/material/5/log", "")
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, models.LogQueueAdd, entries[0].Type)
}

func TestLogQueryRoutes(t *testing.T) {
	svc := &fakeService{}

	w := do(t, svc, http.MethodGet, "/api/v1/log?start=2024-03-04T10:00:00Z&end=2024-03-05T10:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	require.Len(t, svc.logRange, 2)
	assert.True(t, svc.logRange[0].Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))
	assert.True(t, svc.logRange[1].Equal(time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC)))

	w = do(t, svc, http.MethodGet, "/api/v1/log?start=2024-03-04T10:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, svc, http.MethodGet, "/api/v1/log/serial/S1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "serial:S1", svc.logKey)
	var entries []models.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)

	w = do(t, svc, http.MethodGet, "/api/v1/log/workorder/WO-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "workorder:WO-1", svc.logKey)
	assert.Equal(t, "[]", w.Body.String())
}

func TestMaterialRoutes(t *testing.T) {
	svc := &fakeService{}

	w := do(t, svc, http.MethodGet, "/api/v1/material/5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var d eventlog.MaterialDetails
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, 1, d.Process)

	w = do(t, svc, http.MethodPost, "/api/v1/material/5/serial", `{"serial":"S1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{int64(5), "serial", "S1"}, svc.assigned)

	w = do(t, svc, http.MethodPost, "/api/v1/material/5/serial", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, svc, http.MethodPost, "/api/v1/material/6/workorder", `{"workorder":"WO-1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{int64(6), "workorder", "WO-1"}, svc.assigned)

	w = do(t, svc, http.MethodPost, "/api/v1/material/5/inspections", `{"type":"CMM","passed":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{"signal", int64(5), cell.Inspection{Type: "CMM", Passed: true}}, svc.inspection)

	w = do(t, svc, http.MethodPost, "/api/v1/material/5/inspections/result", `{"type":"CMM","process":2}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []any{"result", int64(5), cell.Inspection{Type: "CMM", Process: 2}}, svc.inspection)

	w = do(t, svc, http.MethodPost, "/api/v1/material/5/notes", `{"note":"chipped"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "chipped", svc.note)

	w = do(t, &fakeService{err: eventlog.ErrMaterialNotFound}, http.MethodPost, "/api/v1/material/9/notes", `{"note":"x"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDemandRoute(t *testing.T) {
	svc := &fakeService{}
	w := do(t, svc, http.MethodGet, "/api/v1/jobs/uniq1/demand?path=2", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"job_unique":"uniq1","path":2,"outstanding":4}`, w.Body.String())
	assert.Equal(t, []any{"uniq1", 2}, svc.demand)

	w = do(t, svc, http.MethodGet, "/api/v1/jobs/uniq1/demand?path=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecrementRoute(t *testing.T) {
	svc := &fakeService{}

	w := do(t, svc, http.MethodPost, "/api/v1/decrements?after_id=2", `{"job_uniques":["uniq1"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.mark.AfterID)
	assert.Equal(t, int64(2), *svc.mark.AfterID)
	assert.Nil(t, svc.mark.AfterTime)
	assert.Equal(t, []string{"uniq1"}, svc.decOpts.JobUniques)
	var decs []models.Decrement
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decs))
	require.Len(t, decs, 1)
	assert.Equal(t, 2, decs[0].Quantity)

	w = do(t, svc, http.MethodPost, "/api/v1/decrements?after_time=2024-03-04T10:00:00Z", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.mark.AfterTime)
	assert.True(t, svc.mark.AfterTime.Equal(time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)))

	w = do(t, svc, http.MethodPost, "/api/v1/decrements?after_id=1&after_time=2024-03-04T10:00:00Z", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, svc, http.MethodPost, "/api/v1/decrements?after_time=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEvents_StreamsStatus(t *testing.T) {
	svc := &fakeService{updates: make(chan *status.CurrentStatus, 1)}
	srv := httptest.NewServer(NewRouter(svc))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() (string, string) {
		var event, data string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimRight(line, "\n")
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && event != "":
				return event, data
			}
		}
	}

	event, data := next()
	assert.Equal(t, "status", event)
	assert.Contains(t, data, `"latest_schedule_id":"sched1"`)

	svc.updates <- &status.CurrentStatus{LatestScheduleID: "sched9"}
	event, data = next()
	assert.Equal(t, "status", event)
	assert.Contains(t, data, `"latest_schedule_id":"sched9"`)
}

func TestWriteSSE(t *testing.T) {
	var b strings.Builder
	writeSSE(&b, "status", map[string]int{"n": 1})
	assert.Equal(t, "event: status\ndata: {\"n\":1}\n\n", b.String())
}
